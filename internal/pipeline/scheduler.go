package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"catalogcrawler/internal/pipeline/pathkey"
	"catalogcrawler/internal/pipeline/state"
)

var tracer = otel.Tracer("catalogcrawler/pipeline")

// RunStats are the per-run counters referenced by §4.D's "Result
// accounting", kept as atomics so the periodic stats logger can read them
// without locking.
type RunStats struct {
	Completed  atomic.Int64
	Failed     atomic.Int64
	UserAborts atomic.Int64
	Skipped    atomic.Int64
}

// Recorders bundles the state modules the Orchestrator owns and shares by
// reference with the scheduler and every link task, per §3's ownership rules.
type Recorders struct {
	Progress         *state.Progress
	Free             *state.FreeRecord
	Mismatch         *state.MismatchRecord
	FilenameMapping  *state.FilenameMapping
	Meta             *state.SiteMeta
}

// Flush performs the synchronous flush every teardown path funnels through,
// per §9's re-architecture note about signal handlers.
func (r *Recorders) Flush(paths PerSitePaths) error {
	if err := r.Progress.SaveSync(paths.ProgressFile); err != nil {
		return err
	}
	if err := r.Free.SaveSync(paths.FreeFile); err != nil {
		return err
	}
	if err := r.Mismatch.SaveSync(paths.MismatchFile); err != nil {
		return err
	}
	if err := r.FilenameMapping.SaveSync(paths.FilenameMapFile); err != nil {
		return err
	}
	return r.Meta.SaveSync(paths.MetaFile)
}

// LinkProcessor is invoked per collected link by the scheduler after
// pre-dispatch gating. It is implemented by the link executor (§4.E).
type LinkProcessor interface {
	ProcessLink(ctx context.Context, logger *slog.Logger, link CollectionLink, first bool) error
}

// Scheduler implements §4.D, the concurrent executor: a bounded-parallel
// dispatcher over collected links, owning progress accounting, skip logic,
// and error classification. The pool is a semaphore-style limiter over a
// fixed work list, since every link is already known from collect.json.
type Scheduler struct {
	cfg       RuntimeConfig
	recorders *Recorders
	norm      *pathkey.Normalizer
	processor LinkProcessor

	stats RunStats

	firstTaskDone chan struct{}
	firstOnce     sync.Once
}

func NewScheduler(cfg RuntimeConfig, recorders *Recorders, norm *pathkey.Normalizer, processor LinkProcessor) *Scheduler {
	return &Scheduler{
		cfg:           cfg,
		recorders:     recorders,
		norm:          norm,
		processor:     processor,
		firstTaskDone: make(chan struct{}),
	}
}

// Run dispatches every link in result.Collections with at most
// cfg.MaxConcurrency in flight, per §4.D's scheduling model. It returns once
// every link has been attempted (or the context is cancelled).
func (s *Scheduler) Run(ctx context.Context, result CollectResult) error {
	ctx, span := tracer.Start(ctx, "scheduler.run")
	defer span.End()

	sem := make(chan struct{}, max(s.cfg.MaxConcurrency, 1))
	var wg sync.WaitGroup

dispatchLoop:
	for i, link := range result.Collections {
		if ctx.Err() != nil {
			break
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatchLoop
		}

		wg.Add(1)
		go func(idx int, link CollectionLink) {
			defer wg.Done()
			defer func() { <-sem }()
			s.dispatch(ctx, idx, link)
		}(i, link)
	}

	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) dispatch(ctx context.Context, idx int, link CollectionLink) {
	logger := slog.With("link", link.Link)

	first := idx == 0
	if first {
		// Release waiters on idx==0's context-reuse decision no matter which
		// path this dispatch takes below, including an early skip gate, so a
		// completed or known-free first link can never hang every other
		// goroutine on firstTaskDone (§5 ordering guarantee (b)).
		defer s.firstOnce.Do(func() { close(s.firstTaskDone) })
	} else {
		select {
		case <-s.firstTaskDone:
		case <-ctx.Done():
			return
		}
	}

	if s.recorders.Progress.IsPageComplete(link.Link) {
		logger.Info("skip-completed")
		s.stats.Skipped.Add(1)
		s.stats.Completed.Add(1)
		return
	}

	if s.recorders.Free.IsPageFree(link.Link) {
		logger.Info("skip-known-free")
		s.recorders.Free.AddFreePage(link.Link)
		s.stats.Skipped.Add(1)
		s.stats.Completed.Add(1)
		return
	}

	ctx, span := tracer.Start(ctx, "scheduler.dispatch")
	defer span.End()

	err := s.processor.ProcessLink(ctx, logger, link, first)
	err = classifyDriverError(err)

	switch {
	case err == nil:
		s.stats.Completed.Add(1)
	case IsUserAbort(err):
		s.stats.UserAborts.Add(1)
		logger.Debug("user abort, not counted", "err", err)
	default:
		s.stats.Failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "link processing failed")
		if s.cfg.LogLevel == LogDebug {
			logger.Error("link processing failed", "err", err)
		} else if s.cfg.LogLevel == LogInfo {
			logger.Error("link processing failed")
		}
	}
}

// PreviousCompletedPages reports progress.CompletedPageCount() at the time of
// the call; called before Run, that is the count left by earlier runs, for
// the scheduler's final-success-count accounting in §4.D.
func (s *Scheduler) PreviousCompletedPages() int {
	return s.recorders.Progress.CompletedPageCount()
}

// Stats exposes the run's counters, e.g. for the resource monitor's
// periodic log line or the final summary.
func (s *Scheduler) Stats() *RunStats {
	return &s.stats
}

// RunStatsMonitor logs RunStats on a 30s tick until ctx is cancelled.
func RunStatsMonitor(ctx context.Context, stats *RunStats) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			slog.Info("crawl stats",
				"completed", stats.Completed.Load(),
				"failed", stats.Failed.Load(),
				"skipped", stats.Skipped.Load(),
				"user_aborts", stats.UserAborts.Load(),
			)
		case <-ctx.Done():
			return
		}
	}
}
