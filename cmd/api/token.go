package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/pattern-analyzer/internal/auth"
)

func tokenCmd() *cobra.Command {
	var uid, email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			tok, err := m.GenerateToken(uid, email)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "user id")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}
