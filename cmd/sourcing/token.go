package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sourcing/internal/security"
	"github.com/spf13/cobra"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		userID     string
		username   string
		roles      []string
		expiration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Выпустить токен API, подписанный локальным RSA-ключом",
		Long: `Выпускает RS256 токен для API в режиме без Keycloak.
Нужен security.jwt.privateKeyPath в конфигурации или JWT_PRIVATE_KEY_PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Security.JWT.PrivateKeyPath == "" {
				return errors.New("security.jwt.privateKeyPath is not configured")
			}

			privatePEM, publicPEM, err := cfg.Security.JWT.ReadKeys()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("expiration") {
				cfg.Security.JWT.Expiration = expiration
			}

			manager, err := security.NewJWTManager(privatePEM, publicPEM, cfg.Security.JWT.Expiration, cfg.Security.JWT.Issuer)
			if err != nil {
				return err
			}
			token, err := manager.Generate(userID, username, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "идентификатор пользователя (sub)")
	cmd.Flags().StringVar(&username, "username", "", "имя пользователя")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{security.RoleBuyer}, "роли через запятую")
	cmd.Flags().DurationVar(&expiration, "expiration", time.Hour, "срок действия токена")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
