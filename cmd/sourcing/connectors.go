package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/spf13/cobra"
)

func newConnectorsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connectors",
		Short: "Показать все ключи результатов и их настройки",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCANONICAL\tENABLED\tBASE URL")
			for _, name := range models.AllConnectors() {
				settings := cfg.Connectors[string(name.Canonical())]
				enabled := settings.Enabled
				if name == models.ConnectorSales || name == models.ConnectorPurchases {
					// история продаж и закупок хранится в PostgreSQL
					enabled = false
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", name, name.Canonical(), enabled, settings.BaseURL)
			}
			return tw.Flush()
		},
	}
}
