package commands

import (
	"context"
	"fmt"
	"log/slog"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/lib/serviceutil"
	"catalogcrawler/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	runSite    *string
	runRebuild *bool
)

func init() {
	runSite = runCmd.Flags().String("site", "example", "The registered site to crawl.")
	runRebuild = runCmd.Flags().Bool("rebuild", false, "Discard progress.json and reprocess every page.")
	rootCmd.AddCommand(runCmd)

	resumeCmd.Flags().String("site", "example", "The registered site to resume.")
	rootCmd.AddCommand(resumeCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--site <name>] [--rebuild]",
	Short: "Runs a registered site's crawl from scratch or from saved progress.",
	Run: func(cmd *cobra.Command, args []string) {
		runSiteByName(cmd.Context(), *runSite, *runRebuild)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [--site <name>]",
	Short: "Continues a registered site's crawl using saved progress.json.",
	Run: func(cmd *cobra.Command, args []string) {
		site, _ := cmd.Flags().GetString("site")
		runSiteByName(cmd.Context(), site, false)
	},
}

func runSiteByName(ctx context.Context, siteName string, rebuild bool) {
	factory, ok := sites[siteName]
	if !ok {
		serviceutil.Fatal("unknown site", fmt.Errorf("no site registered as %q", siteName))
	}
	if driverFactory == nil {
		serviceutil.Fatal("cannot start crawl", errNoDriver)
	}

	cfg := factory()
	cfg.Runtime.Progress.Rebuild = rebuild
	if err := applyRuntimeOverrides(siteName, &cfg); err != nil {
		serviceutil.Fatal("failed to read runtime overrides", err)
	}

	orch, err := pipeline.NewOrchestrator(cfg)
	if err != nil {
		serviceutil.Fatal("failed to build orchestrator", err)
	}
	if err := orch.Load(); err != nil {
		serviceutil.Fatal("failed to load prior state", err)
	}

	browser, primary, err := driverFactory()
	if err != nil {
		serviceutil.Fatal("failed to start browser driver", err)
	}

	runCtx := serviceutil.SignalContext()
	cancelCtx, cancel := context.WithCancel(runCtx)
	orch.WatchSignals(cancelCtx, cancel)

	telemetry.InstrumentPerfStats(cancelCtx, siteName)

	if err := orch.Run(cancelCtx, browser, primary); err != nil {
		slog.Error("crawl finished with an error", "site", siteName, "err", err)
		return
	}
	slog.Info("crawl finished", "site", siteName)
}
