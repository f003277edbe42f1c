package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/app"
	"github.com/athebyme/gomarket-sourcing/internal/domain/models"
	"github.com/athebyme/gomarket-sourcing/internal/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	alternatives    bool
	nestedLevel     int
	maxAlternatives int
	connectors      []string
	format          string
	output          string
	timeout         time.Duration
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <part-number>",
		Short: "Найти предложения по артикулу",
		Example: `  sourcing search 0C19H --nested-level 2
  sourcing search 0C19H --alternatives=false --connectors ebay,brokerbin --format csv -o offers.csv
  sourcing search 0C19H --nested-level -1 --max-alternatives 100 --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.alternatives, "alternatives", models.DefaultUseAlternatives, "искать также альтернативные артикулы")
	flags.IntVar(&opts.nestedLevel, "nested-level", models.DefaultNestedLevel, "глубина поиска альтернатив: 0 - только прямые, -1 - без ограничения")
	flags.IntVar(&opts.maxAlternatives, "max-alternatives", 0, "максимум альтернатив, 0 - без ограничения; если флаг не задан, берется search.maxAlternatives")
	flags.StringSliceVar(&opts.connectors, "connectors", nil, "список коннекторов через запятую, по умолчанию все включенные")
	flags.StringVarP(&opts.format, "format", "f", string(report.FormatJSON), "формат выгрузки: json, yaml, toml, csv")
	flags.StringVarP(&opts.output, "output", "o", "", "файл для выгрузки, по умолчанию stdout")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "общий таймаут поиска")
	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, opts *searchOptions, partNumber string) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	searchOpts := cfg.DefaultSearchOptions(partNumber)
	flags := cmd.Flags()
	if flags.Changed("alternatives") {
		searchOpts.UseAlternatives = opts.alternatives
	}
	if flags.Changed("nested-level") {
		searchOpts.NestedLevel = opts.nestedLevel
	}
	if flags.Changed("max-alternatives") {
		searchOpts.MaxAlternatives = opts.maxAlternatives
	}
	for _, name := range opts.connectors {
		searchOpts.Connectors = append(searchOpts.Connectors, models.ConnectorName(strings.TrimSpace(name)))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	deps, err := app.New(ctx, cfg, log, app.Options{
		ClientID:   "sourcing-cli",
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}
	defer deps.Close()

	search, err := deps.Service.Run(ctx, searchOpts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := report.Write(out, search, format); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if opts.output != "" {
		summarize(cmd.ErrOrStderr(), search)
	}
	if search.Status == models.SearchFailed {
		return fmt.Errorf("search failed: %s", failureReason(search))
	}
	return nil
}

func summarize(w io.Writer, search *models.Search) {
	fmt.Fprintf(w, "%s: %s, предложений %d, альтернатив %d\n",
		search.Options.PartNumber, search.Status, search.Results.Total(), len(search.Alternatives))
	for _, name := range models.AllConnectors() {
		if msg, ok := search.Errors[name]; ok {
			fmt.Fprintf(w, "  %s: %s\n", name, msg)
		}
	}
}

func failureReason(search *models.Search) string {
	if search.Failure != "" {
		return search.Failure
	}
	parts := make([]string, 0, len(search.Errors))
	for _, name := range models.AllConnectors() {
		if msg, ok := search.Errors[name]; ok {
			parts = append(parts, string(name)+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}
