package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"catalogcrawler/internal/pipeline/pathkey"
	"catalogcrawler/internal/pipeline/state"
)

// SiteConfig is the fully-resolved configuration record consumed by the
// orchestrator — the record the out-of-scope declarative fluent builder
// produces, per §9's re-architecture note ("the core should accept a
// fully-resolved configuration record, not a builder").
type SiteConfig struct {
	StartURL string
	Runtime  RuntimeConfig

	Auth    AuthConfig
	Collect CollectConfig

	LinkExecutor LinkExecutorConfig
	Block        BlockProcessorConfig
	Page         *PageProcessor // nil when this site is block-mode, not page-mode

	ScriptsBeforeOpen []InjectedScript
	ScriptsAfterOpen  []InjectedScript
}

// Orchestrator owns every state recorder and the scheduler, per §3's
// ownership rules, and drives a complete run of a SiteConfig end to end.
type Orchestrator struct {
	cfg   SiteConfig
	paths PerSitePaths

	recorders *Recorders
	norm      *pathkey.Normalizer
}

// NewOrchestrator resolves paths for cfg.StartURL and constructs empty state
// recorders; call Load before Run to hydrate them from disk.
func NewOrchestrator(cfg SiteConfig) (*Orchestrator, error) {
	if cfg.Runtime.MaxConcurrency == 0 {
		cfg.Runtime = DefaultRuntimeConfig()
	}
	paths := PathsFor(cfg.Runtime, cfg.StartURL)

	norm, err := pathkey.NewNormalizer(cfg.StartURL)
	if err != nil {
		return nil, err
	}

	recorders := &Recorders{
		Progress:        state.NewProgress(cfg.Runtime.Progress.Enable),
		Free:            state.NewFreeRecord(),
		Mismatch:        state.NewMismatchRecord(),
		FilenameMapping: state.NewFilenameMapping(),
		Meta:            state.NewSiteMeta(cfg.StartURL),
	}

	return &Orchestrator{cfg: cfg, paths: paths, recorders: recorders, norm: norm}, nil
}

// Load hydrates every state recorder from disk, honoring
// Progress.Rebuild (§4.A/§9).
func (o *Orchestrator) Load() error {
	if o.cfg.Runtime.Progress.Rebuild {
		// Intentionally skip loading progress.json entirely: rebuild means
		// starting over, not loading-then-discarding.
	} else if err := o.recorders.Progress.Load(o.paths.ProgressFile); err != nil {
		return fmt.Errorf("orchestrator: load progress: %w", err)
	}
	if err := o.recorders.Free.Load(o.paths.FreeFile); err != nil {
		return fmt.Errorf("orchestrator: load free: %w", err)
	}
	if err := o.recorders.Mismatch.Load(o.paths.MismatchFile); err != nil {
		return fmt.Errorf("orchestrator: load mismatch: %w", err)
	}
	if err := o.recorders.FilenameMapping.Load(o.paths.FilenameMapFile); err != nil {
		return fmt.Errorf("orchestrator: load filename mapping: %w", err)
	}
	if err := o.recorders.Meta.Load(o.paths.MetaFile); err != nil {
		return fmt.Errorf("orchestrator: load meta: %w", err)
	}
	return nil
}

// Run executes the full four-phase pipeline: authenticate, collect,
// navigate+extract (scheduler-driven), and a final state flush.
func (o *Orchestrator) Run(ctx context.Context, browser Browser, primary Page) error {
	ctx, span := tracer.Start(ctx, "orchestrator.run")
	defer span.End()

	auth := NewAuthManager(o.cfg.Auth)
	if err := auth.EnsureAuth(ctx, browser, primary, o.paths.AuthFile); err != nil {
		return fmt.Errorf("orchestrator: auth: %w", err)
	}

	collector, err := NewLinkCollector(o.cfg.Collect)
	if err != nil {
		return fmt.Errorf("orchestrator: build collector: %w", err)
	}
	result, err := collector.Collect(ctx, primary, o.paths.CollectFile)
	if err != nil {
		return fmt.Errorf("orchestrator: collect: %w", err)
	}

	links := make([]state.CollectionLinkSummary, 0, len(result.Collections))
	for _, l := range result.Collections {
		links = append(links, state.CollectionLinkSummary{Link: l.Link, Name: l.Name, BlockCount: l.BlockCount})
	}
	o.recorders.Meta.SetCollectionLinks(links, result.TotalLinks, result.TotalBlocks)

	absoluteURLFunc = func(path string) string { return resolveAgainstBase(o.cfg.StartURL, path) }

	injector := NewScriptInjector(o.paths.ScriptsDir)

	dispatch := o.buildDispatch()

	o.cfg.LinkExecutor.BeforeOpenScripts = o.cfg.ScriptsBeforeOpen
	o.cfg.LinkExecutor.AfterOpenScripts = o.cfg.ScriptsAfterOpen
	o.cfg.LinkExecutor.Dispatch = dispatch

	executor := NewLinkExecutor(o.cfg.LinkExecutor, browser, primary, injector, o.recorders)
	scheduler := NewScheduler(o.cfg.Runtime, o.recorders, o.norm, executor)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	go RunStatsMonitor(monitorCtx, scheduler.Stats())
	defer stopMonitor()

	runErr := scheduler.Run(ctx, result)

	stats := scheduler.Stats()
	actualLinks := int(stats.Completed.Load())
	o.recorders.Meta.SetTotals(
		actualLinks,
		result.TotalBlocks,
		o.recorders.Free.PageCount(),
		o.recorders.Free.BlockCount(),
	)
	o.recorders.Meta.Finish(runErr == nil && stats.Failed.Load() == 0)

	if flushErr := o.Flush(); flushErr != nil {
		if runErr == nil {
			return fmt.Errorf("orchestrator: flush: %w", flushErr)
		}
		slog.Error("orchestrator: flush after run error", "err", flushErr)
	}

	return runErr
}

func (o *Orchestrator) buildDispatch() func(context.Context, Page, CollectionLink) error {
	if o.cfg.Page != nil {
		return func(ctx context.Context, page Page, link CollectionLink) error {
			return o.cfg.Page.Process(ctx, page)
		}
	}

	if o.cfg.Block.AutoConfig != nil && o.cfg.Block.AutoConfig.OutputDir == "" {
		o.cfg.Block.AutoConfig.OutputDir = o.paths.OutputDir
	}
	blockProc := NewBlockProcessor(o.cfg.Block, o.recorders, NewAutoFileProcessor(o.recorders.FilenameMapping))
	return func(ctx context.Context, page Page, link CollectionLink) error {
		logger := slog.With("link", link.Link)
		return blockProc.Process(ctx, logger, page, link.Link, link.BlockCount)
	}
}

// Flush runs the synchronous flush every teardown path (normal completion,
// signal handler, fatal error) funnels through, per §4.D/§9.
func (o *Orchestrator) Flush() error {
	return o.recorders.Flush(o.paths)
}

// WatchSignals installs the OS-signal handler of §4.D: on INT/TERM, flush
// every recorder synchronously and cancel ctx so Run's scheduler loop stops
// accepting new dispatches.
func (o *Orchestrator) WatchSignals(ctx context.Context, cancel context.CancelFunc) {
	go func() {
		<-ctx.Done()
		if err := o.Flush(); err != nil {
			slog.Error("signal flush failed", "err", err)
		}
		cancel()
	}()
}

// resolveAgainstBase turns a normalized link-path key back into a navigable
// URL by resolving it against the crawl's start URL.
func resolveAgainstBase(base, path string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return path
	}
	resolved, err := baseURL.Parse(path)
	if err != nil {
		return path
	}
	return resolved.String()
}
