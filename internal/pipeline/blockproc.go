package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"catalogcrawler/internal/pipeline/pathkey"
)

// BlockMode selects traditional (one-shot) or progressive (lazy-load)
// iteration, per §4.F.
type BlockMode int

const (
	BlockTraditional BlockMode = iota
	BlockProgressive
)

// BlockHandler is the user-supplied shape (a) of §4.F step 4.
type BlockHandler func(ctx context.Context, block Locator) error

// ConditionalBlockConfig is one entry of the conditional-config list
// consulted in §4.F step 2: if its When locator becomes visible within
// 100ms, it is the matched config for that block.
type ConditionalBlockConfig struct {
	When          func(block Locator) Locator
	WhenLocator   func(block Locator) Locator
	CodeRegion    string
	SkipPreChecks bool
}

// BlockProcessorConfig declares everything §4.F needs: how blocks are
// located, named, checked for completion/free, and handled.
type BlockProcessorConfig struct {
	Mode BlockMode

	// BlocksLocator returns the page's blocks. In progressive mode it is
	// re-invoked on every iteration.
	BlocksLocator func(page Page) Locator

	NameExtractor *BlockNameExtractor

	SkipFree FreeChecker

	Conditionals []ConditionalBlockConfig

	Handler    BlockHandler
	AutoConfig *AutoFileConfig

	VerifyBlockCompletion bool
	IgnoreMismatch        bool
	PauseOnError          bool
	DebugMode             bool
}

// BlockProcessor implements §4.F.
type BlockProcessor struct {
	cfg       BlockProcessorConfig
	recorders *Recorders
	regions   *searchRegionCache
	extractor *AutoFileProcessor
}

func NewBlockProcessor(cfg BlockProcessorConfig, recorders *Recorders, extractor *AutoFileProcessor) *BlockProcessor {
	if cfg.NameExtractor == nil {
		cfg.NameExtractor = DefaultBlockNameExtractor()
	}
	return &BlockProcessor{cfg: cfg, recorders: recorders, regions: newSearchRegionCache(256), extractor: extractor}
}

// Process runs the block processor over pagePath's blocks on page.
// expectedBlockCount comes from this page's CollectionLink (0 means
// unknown) and is passed per-call rather than stored on BlockProcessor
// because one BlockProcessor is shared across concurrently-dispatched
// pages.
func (b *BlockProcessor) Process(ctx context.Context, logger *slog.Logger, page Page, pagePath string, expectedBlockCount int) error {
	ctx, span := tracer.Start(ctx, "blockproc.process")
	defer span.End()

	switch b.cfg.Mode {
	case BlockTraditional:
		return b.processTraditional(ctx, logger, page, pagePath, expectedBlockCount)
	case BlockProgressive:
		return b.processProgressive(ctx, logger, page, pagePath)
	default:
		return errConfig("unknown block mode %d", b.cfg.Mode)
	}
}

func (b *BlockProcessor) processTraditional(ctx context.Context, logger *slog.Logger, page Page, pagePath string, expectedBlockCount int) error {
	blocks, err := b.cfg.BlocksLocator(page).All(ctx)
	if err != nil {
		return fmt.Errorf("blockproc: list blocks: %w", err)
	}

	if expectedBlockCount > 0 && len(blocks) != expectedBlockCount {
		b.recorders.Mismatch.Add(pagePath, expectedBlockCount, len(blocks))
		if !b.cfg.IgnoreMismatch {
			logger.Warn("block count mismatch, skipping page",
				"expected", expectedBlockCount, "actual", len(blocks))
			return fmt.Errorf("%w: expected %d, got %d", ErrBlockCountMismatch, expectedBlockCount, len(blocks))
		}
		logger.Warn("block count mismatch, continuing",
			"expected", expectedBlockCount, "actual", len(blocks))
	}

	processed := 0
	for i, block := range blocks {
		ok, err := b.processOne(ctx, logger, page, pagePath, block, i)
		if err != nil {
			return err
		}
		if ok {
			processed++
		}
	}

	if b.cfg.VerifyBlockCompletion && processed != len(blocks) {
		logger.Warn("block completion verification failed", "processed", processed, "found", len(blocks))
		if b.cfg.DebugMode {
			_ = page.Pause(ctx)
		}
	}
	return nil
}

// processProgressive implements §4.F's lazy-load mode: repeatedly re-query
// the block locator, process the slice of newly-appeared blocks (dedup by
// name), loop until a query returns no new blocks.
func (b *BlockProcessor) processProgressive(ctx context.Context, logger *slog.Logger, page Page, pagePath string) error {
	seen := make(map[string]struct{})

	for {
		blocks, err := b.cfg.BlocksLocator(page).All(ctx)
		if err != nil {
			return fmt.Errorf("blockproc: list blocks: %w", err)
		}

		newCount := 0
		for i, block := range blocks {
			name, err := b.cfg.NameExtractor.Extract(ctx, page, block)
			if err != nil || name == "" {
				// Name resolution failures surface through processOne's own
				// retry/report path below; here we only use the name for
				// dedup, so fall through and let processOne handle it.
				name = fmt.Sprintf("__unnamed_%d", i)
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			newCount++

			if _, err := b.processOne(ctx, logger, page, pagePath, block, i); err != nil {
				return err
			}
		}

		if newCount == 0 {
			return nil
		}
	}
}

// processOne runs the full per-block protocol of §4.F steps 1-5 for a
// single block. It returns (true, nil) on success, (false, nil) on a
// recorded skip/failure that should not abort the page, and a non-nil error
// when the page itself must be aborted.
func (b *BlockProcessor) processOne(ctx context.Context, logger *slog.Logger, page Page, pagePath string, block Locator, index int) (bool, error) {
	if err := block.ScrollIntoViewIfNeeded(ctx); err != nil {
		return false, classifyDriverError(err)
	}

	matched, matchedIdx := b.matchConditional(ctx, block)

	if matched == nil || !matched.SkipPreChecks {
		skip, ok, err := b.preChecks(ctx, logger, page, pagePath, block)
		if err != nil {
			return false, err
		}
		if skip {
			return ok, nil
		}
	}

	blockName, err := b.cfg.NameExtractor.Extract(ctx, page, block)
	if err != nil {
		logger.Warn("block name extraction failed", "index", index, "err", err)
		return false, nil
	}
	blockPath := pathkey.BlockPath(pagePath, blockName)

	if err := b.dispatch(ctx, logger, page, block, blockName, matched); err != nil {
		if b.cfg.DebugMode && b.cfg.PauseOnError {
			_ = page.Pause(ctx)
		}
		if IsUserAbort(err) {
			return false, nil
		}
		logger.Error("block handler failed", "block", blockName, "index", index, "conditional", matchedIdx, "err", err)
		return false, fmt.Errorf("%w: %v", ErrHandlerError, err)
	}

	b.recorders.Progress.MarkBlockComplete(blockPath)
	return true, nil
}

func (b *BlockProcessor) matchConditional(ctx context.Context, block Locator) (*ConditionalBlockConfig, int) {
	for i := range b.cfg.Conditionals {
		cond := &b.cfg.Conditionals[i]
		var loc Locator
		if cond.When != nil {
			loc = cond.When(block)
		} else if cond.WhenLocator != nil {
			loc = cond.WhenLocator(block)
		} else {
			continue
		}
		if visible, _ := loc.IsVisible(ctx, VisibleOptions{Timeout: DefaultFreeCheckTimeout}); visible {
			return cond, i
		}
	}
	return nil, -1
}

// preChecks implements §4.F's pre-checks a/b/c. Returns (skip=true,
// success, nil) when the block should be skipped (either because it's
// already complete or free), or (skip=false, _, err) to continue to
// dispatch, or a non-nil err for a page-fatal condition.
func (b *BlockProcessor) preChecks(ctx context.Context, logger *slog.Logger, page Page, pagePath string, block Locator) (bool, bool, error) {
	blockName, err := b.extractNameWithRetry(ctx, page, block, logger)
	if err != nil {
		return true, false, nil // NameExtractionFailed: counted as failure, page continues
	}

	blockPath := pathkey.BlockPath(pagePath, blockName)
	if b.recorders.Progress.IsBlockComplete(blockPath) {
		logger.Debug("skip-completed block", "block", blockName)
		return true, true, nil
	}

	free, err := b.checkBlockFree(ctx, page, block, blockName)
	if err != nil {
		return true, false, fmt.Errorf("blockproc: check block free %q: %w", blockName, err)
	}
	if free {
		logger.Debug("skip-free block", "block", blockName)
		b.recorders.Free.AddFreeBlock(pagePath, blockName)
		return true, true, nil
	}

	return false, false, nil
}

func (b *BlockProcessor) extractNameWithRetry(ctx context.Context, page Page, block Locator, logger *slog.Logger) (string, error) {
	var lastErr error
	for attempt := 0; attempt < DefaultBlockNameRetries; attempt++ {
		name, err := b.cfg.NameExtractor.Extract(ctx, page, block)
		if err == nil && name != "" {
			return name, nil
		}
		lastErr = err
		time.Sleep(DefaultBlockNameRetryDelay)
	}

	html, _ := block.InnerHTML(ctx)
	logger.Warn("name extraction failed", "err", lastErr, "html", html)
	if b.cfg.DebugMode {
		_ = page.Pause(ctx)
	}
	return "", fmt.Errorf("%w: %v", ErrNameExtractionFailed, lastErr)
}

// checkBlockFree implements §4.F's block-scoped free checker: the function
// form invokes SkipFree.Func directly; the string form resolves a cached
// search-region strategy and applies the exactly-one-hit rule.
func (b *BlockProcessor) checkBlockFree(ctx context.Context, page Page, block Locator, blockName string) (bool, error) {
	if b.cfg.SkipFree.Func != nil {
		return b.cfg.SkipFree.Func(ctx, block)
	}
	if b.cfg.SkipFree.Pattern == "" {
		return false, nil
	}

	heading := b.cfg.NameExtractor.HeadingLocator(block)
	strategy, err := b.regions.strategyFor(ctx, page.URL(), heading)
	if err != nil {
		return false, err
	}
	region := regionLocator(strategy, block, heading)

	return matchFreePattern(ctx, region, b.cfg.SkipFree.Pattern)
}

// dispatch implements §4.F step 4. When Conditionals is configured and the
// block matched none of them, and no Handler/AutoConfig fallback is
// configured either, this is the boundary case from §8: warn, record the
// block name (the caller marks it complete), and move on rather than abort
// the page.
func (b *BlockProcessor) dispatch(ctx context.Context, logger *slog.Logger, page Page, block Locator, blockName string, matched *ConditionalBlockConfig) error {
	switch {
	case matched != nil:
		var whenLoc Locator
		if matched.When != nil {
			whenLoc = matched.When(block)
		} else {
			whenLoc = matched.WhenLocator(block)
		}
		if err := whenLoc.Click(ctx); err != nil {
			return err
		}
		codeRegion := matched.CodeRegion
		return b.extractor.Process(ctx, page, block, AutoFileConfig{
			CodeRegion: func(blk Locator) Locator { return blk.Locator(codeRegion) },
		})
	case b.cfg.Handler != nil:
		return b.cfg.Handler(ctx, block)
	case b.cfg.AutoConfig != nil:
		return b.extractor.Process(ctx, page, block, *b.cfg.AutoConfig)
	case len(b.cfg.Conditionals) > 0:
		logger.Warn("block matched no conditional and no fallback handler is configured, skipping", "block", blockName)
		return nil
	default:
		return errConfig("block processor has no handler, auto-config, or matched conditional")
	}
}
