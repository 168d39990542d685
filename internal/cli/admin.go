package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/auth"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/config"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/infra/postgres"
)

// NewGrantAdminCmd gives a user admin rights. Operator-only: it talks to the store directly.
func NewGrantAdminCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "grant-admin",
		Short: "Grant admin rights to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminRegistry(cmd.Context(), *configPath, func(ctx context.Context, admins app.AdminRegistry) error {
				if err := admins.GrantAdmin(ctx, userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "granted admin to %s\n", userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to promote")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// NewRevokeAdminCmd removes a user's admin rights.
func NewRevokeAdminCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "revoke-admin",
		Short: "Revoke admin rights from a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminRegistry(cmd.Context(), *configPath, func(ctx context.Context, admins app.AdminRegistry) error {
				if err := admins.RevokeAdmin(ctx, userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked admin from %s\n", userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to demote")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// NewTokenCmd mints a bearer token for a user, for operators and local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var identity domain.Identity
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errors.New("auth.secret not configured")
			}
			tokens := auth.NewService(cfg.Auth.Secret, config.TTLDuration(cfg.Auth.TokenTTL, 0))
			token, err := tokens.Issue(identity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&identity.UserID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&identity.Email, "email", "", "user email")
	cmd.Flags().StringVar(&identity.DisplayName, "name", "", "display name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func withAdminRegistry(ctx context.Context, configPath string, fn func(context.Context, app.AdminRegistry) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return errors.New("postgres url not configured; admin rights of the in-memory store do not outlive the server")
	}
	db := postgres.OpenDB(cfg.Postgres.URL)
	defer db.Close()
	return fn(ctx, postgres.NewStore(db))
}
