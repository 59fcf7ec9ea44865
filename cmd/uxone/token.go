package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TIPA-VN/uxone-sub003/internal/auth"
	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

var (
	tokenUserID int64
	tokenEmail  string
	tokenRole   string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a JWT for the notification stream",
	Long: `Token signs a stream token with auth.jwt_secret. The web frontend
normally issues these; the command exists for testing and service accounts.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not configured")
		}
		if tokenUserID <= 0 {
			return errors.New("--user-id is required")
		}
		m := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tokenTTL)
		tok, err := m.GenerateToken(tokenUserID, tokenEmail, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 0, "user id the token authenticates")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", models.RoleManager, "role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
