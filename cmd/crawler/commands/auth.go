package commands

import (
	"fmt"
	"log/slog"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/lib/serviceutil"

	"github.com/spf13/cobra"
)

var authSite *string

func init() {
	authSite = authCmd.Flags().String("site", "example", "The registered site to authenticate.")
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth [--site <name>]",
	Short: "Runs a registered site's auth handler and persists auth.json.",
	Run: func(cmd *cobra.Command, args []string) {
		factory, ok := sites[*authSite]
		if !ok {
			serviceutil.Fatal("unknown site", fmt.Errorf("no site registered as %q", *authSite))
		}
		if driverFactory == nil {
			serviceutil.Fatal("cannot authenticate", errNoDriver)
		}

		cfg := factory()
		paths := pipeline.PathsFor(cfg.Runtime, cfg.StartURL)

		browser, primary, err := driverFactory()
		if err != nil {
			serviceutil.Fatal("failed to start browser driver", err)
		}

		auth := pipeline.NewAuthManager(cfg.Auth)
		if err := auth.EnsureAuth(cmd.Context(), browser, primary, paths.AuthFile); err != nil {
			serviceutil.Fatal("authentication failed", err)
		}
		slog.Info("authentication succeeded", "site", *authSite, "auth_file", paths.AuthFile)
	},
}
