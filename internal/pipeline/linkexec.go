package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

// AutoScrollConfig configures §4.E step 6.
type AutoScrollConfig struct {
	Enabled  bool
	StepPx   float64
	Interval time.Duration
	Timeout  time.Duration
}

// LinkExecutorConfig bundles the per-link options named throughout §4.E.
type LinkExecutorConfig struct {
	UseIndependentContext bool
	StorageState          *StorageState

	BeforeOpenScripts []InjectedScript
	AfterOpenScripts  []InjectedScript

	WaitUntil WaitUntil

	SkipFree FreeChecker

	AutoScroll AutoScrollConfig

	// Dispatch is called once the page is loaded, not free, and (if
	// configured) finished autoscrolling. It delegates to the block or
	// page processor.
	Dispatch func(ctx context.Context, page Page, link CollectionLink) error
}

// LinkExecutor implements the per-link protocol of §4.E.
type LinkExecutor struct {
	cfg       LinkExecutorConfig
	browser   Browser
	primary   Page
	injector  *ScriptInjector
	recorders *Recorders
}

func NewLinkExecutor(cfg LinkExecutorConfig, browser Browser, primary Page, injector *ScriptInjector, recorders *Recorders) *LinkExecutor {
	if cfg.WaitUntil == "" {
		cfg.WaitUntil = WaitLoad
	}
	if cfg.AutoScroll.StepPx == 0 {
		cfg.AutoScroll.StepPx = DefaultAutoScrollStepPx
	}
	if cfg.AutoScroll.Interval == 0 {
		cfg.AutoScroll.Interval = DefaultAutoScrollInterval
	}
	if cfg.AutoScroll.Timeout == 0 {
		cfg.AutoScroll.Timeout = DefaultAutoScrollTimeout
	}
	return &LinkExecutor{cfg: cfg, browser: browser, primary: primary, injector: injector, recorders: recorders}
}

// ProcessLink implements LinkProcessor, satisfying the scheduler's callback
// contract.
func (e *LinkExecutor) ProcessLink(ctx context.Context, logger *slog.Logger, link CollectionLink, first bool) error {
	ctx, span := tracer.Start(ctx, "linkexec.process")
	defer span.End()

	page, ctxToClose, err := e.openPage(ctx, first)
	if err != nil {
		return fmt.Errorf("linkexec: open page: %w", err)
	}
	defer func() {
		_ = page.Close(ctx)
		if ctxToClose != nil {
			_ = ctxToClose.Close(ctx)
		}
	}()

	if !first {
		logger = logger.With("tab", uuid.New().String())
	}

	if !first && len(e.cfg.BeforeOpenScripts) > 0 {
		if err := e.injector.InjectBeforeLoad(ctx, page, e.cfg.BeforeOpenScripts); err != nil {
			return fmt.Errorf("linkexec: inject before-open scripts: %w", err)
		}
	}

	if err := page.Goto(ctx, absoluteURL(link.Link), GotoOptions{WaitUntil: e.cfg.WaitUntil}); err != nil {
		return fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
	}

	if len(e.cfg.AfterOpenScripts) > 0 {
		if err := e.injector.InjectAfterLoad(ctx, page, e.cfg.AfterOpenScripts); err != nil {
			return fmt.Errorf("linkexec: inject after-open scripts: %w", err)
		}
	}

	free, err := CheckPageFree(ctx, page, e.cfg.SkipFree)
	if err != nil {
		return fmt.Errorf("linkexec: check page free: %w", err)
	}
	if free {
		logger.Info("page is free, skipping")
		e.recorders.Free.AddFreePage(link.Link)
		e.recorders.Progress.MarkPageComplete(link.Link)
		return nil
	}

	if e.cfg.AutoScroll.Enabled {
		if err := autoScroll(ctx, page, e.cfg.AutoScroll); err != nil {
			return fmt.Errorf("linkexec: autoscroll: %w", err)
		}
	}

	if err := e.cfg.Dispatch(ctx, page, link); err != nil {
		return err
	}

	e.recorders.Progress.MarkPageComplete(link.Link)
	return nil
}

func (e *LinkExecutor) openPage(ctx context.Context, first bool) (Page, BrowserContext, error) {
	if first {
		return e.primary, nil, nil
	}

	if e.cfg.UseIndependentContext || e.cfg.StorageState != nil {
		bctx, err := e.browser.NewContext(ctx, e.cfg.StorageState)
		if err != nil {
			return nil, nil, err
		}
		page, err := bctx.NewPage(ctx)
		if err != nil {
			_ = bctx.Close(ctx)
			return nil, nil, err
		}
		return page, bctx, nil
	}

	page, err := e.primary.Context().NewPage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return page, nil, nil
}

// absoluteURL resolves a normalized path key back into a navigable URL.
// Declared here as a seam; Orchestrator.Run replaces it with a resolver
// against the site's base URL. Exposed as a package-level var so no base URL
// has to be plumbed through every CollectionLink.
var absoluteURLFunc = func(path string) string { return path }

func absoluteURL(path string) string { return absoluteURLFunc(path) }

// autoScroll implements §4.E step 6: simulate wheel scrolls until scroll
// position plus viewport reaches content height, scroll position stalls for
// three consecutive ticks, or timeout elapses.
func autoScroll(ctx context.Context, page Page, cfg AutoScrollConfig) error {
	deadline := time.Now().Add(cfg.Timeout)
	stallTicks := 0
	var lastScrollY float64 = -1

	for time.Now().Before(deadline) {
		result, err := page.Evaluate(ctx, `() => ({ scrollY: window.scrollY, innerHeight: window.innerHeight, scrollHeight: document.body.scrollHeight })`, nil)
		if err != nil {
			return err
		}
		m, _ := result.(map[string]any)
		scrollY := toFloat(m["scrollY"])
		innerHeight := toFloat(m["innerHeight"])
		scrollHeight := toFloat(m["scrollHeight"])

		if math.Abs((scrollY+innerHeight)-scrollHeight) <= 10 {
			return nil
		}

		if scrollY == lastScrollY {
			stallTicks++
			if stallTicks >= 3 {
				return nil
			}
		} else {
			stallTicks = 0
		}
		lastScrollY = scrollY

		if err := page.Mouse().Wheel(ctx, 0, cfg.StepPx); err != nil {
			return err
		}
		if err := page.WaitForTimeout(ctx, cfg.Interval); err != nil {
			return err
		}
	}

	return fmt.Errorf("linkexec: autoscroll timed out after %s", cfg.Timeout)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
