package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/consulting-site/internal/config"
	"github.com/JakeFAU/consulting-site/internal/server"
)

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			app, err := server.Build(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("build application failed: %w", err)
			}
			return app.Run(cmd.Context())
		},
	}
}

func newCheckConfigCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then report which providers are set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "port: %d\n", cfg.Server.Port)
			fmt.Fprintf(out, "rate limit: %s (%d per %s)\n", cfg.RateLimit.Backend, cfg.RateLimit.Max, cfg.RateLimit.Window)
			fmt.Fprintf(out, "publications: %s\n", cfg.Publications.Backend)
			fmt.Fprintf(out, "turnstile secret: %s\n", presence(cfg.Contact.TurnstileSecret))
			fmt.Fprintf(out, "resend api key: %s\n", presence(cfg.Contact.ResendAPIKey))
			fmt.Fprintf(out, "contact to: %s\n", presence(cfg.Contact.ToEmail))
			fmt.Fprintf(out, "contact from: %s\n", presence(cfg.Contact.FromEmail))
			return nil
		},
	}
}

func presence(v string) string {
	if v == "" {
		return "missing"
	}
	return "set"
}
