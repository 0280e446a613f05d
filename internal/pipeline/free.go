package pipeline

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FreeChecker is §4.F's "free checker" contract, usable at both page and
// block scope. The zero FreeChecker (no Func, empty Pattern) means "never
// free".
//
// Exactly one of Func or Pattern should be set: Func implements the
// function form (invoke the user's skipFree(block)); Pattern implements the
// string-or-"default" form described below.
type FreeChecker struct {
	Func func(ctx context.Context, scope Locator) (bool, error)
	// Pattern is either "default" (matched case-insensitively against
	// /free/i) or a literal string matched exactly.
	Pattern string
}

// CheckPageFree implements PageProcessor.CheckPageFree (§4.E step 5): the
// page-scoped form of the free checker, searching the whole page body.
func CheckPageFree(ctx context.Context, page Page, checker FreeChecker) (bool, error) {
	if checker.Func == nil && checker.Pattern == "" {
		return false, nil
	}
	if checker.Func != nil {
		return checker.Func(ctx, page.Locator("body"))
	}
	return matchFreePattern(ctx, page.Locator("body"), checker.Pattern)
}

// matchFreePattern counts text-matching elements within scope and applies
// §4.F's exactly-one rule: 0 hits -> not free, 1 hit -> free, >1 hits ->
// ErrFreeAmbiguous.
func matchFreePattern(ctx context.Context, scope Locator, pattern string) (bool, error) {
	var target Locator
	if pattern == "default" || pattern == "" {
		target = scope.Locator("text=/free/i")
	} else {
		target = scope.Locator(fmt.Sprintf("text=%q", pattern))
	}

	count, err := target.Count(ctx)
	if err != nil {
		return false, err
	}
	switch {
	case count == 0:
		return false, nil
	case count == 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %d matches for pattern %q", ErrFreeAmbiguous, count, pattern)
	}
}

// searchRegionCache caches the block-scoped "search region strategy"
// decided for a page (§4.F "Free checker (block-scoped)"), keyed by a
// caller-supplied page identifier so concurrent link tasks on different
// pages don't contend, the same way a derived per-key value gets cached
// instead of recomputed on every call.
type searchRegionCache struct {
	cache *lru.Cache[string, SearchRegionStrategy]
}

type SearchRegionStrategy int

const (
	SearchInHeading SearchRegionStrategy = iota
	SearchInGrandparent
	SearchInParent
	SearchInWholeBlock
)

func newSearchRegionCache(size int) *searchRegionCache {
	c, _ := lru.New[string, SearchRegionStrategy](size)
	return &searchRegionCache{cache: c}
}

func (c *searchRegionCache) strategyFor(ctx context.Context, pageID string, heading Locator) (SearchRegionStrategy, error) {
	if s, ok := c.cache.Get(pageID); ok {
		return s, nil
	}

	strategy, err := DecideSearchRegion(ctx, heading)
	if err != nil {
		return 0, err
	}
	c.cache.Add(pageID, strategy)
	return strategy, nil
}

// DecideSearchRegion implements the decision tree from §4.F: if heading has
// >1 element children, search the heading; else if heading's parent has
// only that one child, search the grandparent; else search the heading's
// parent. With no heading at all, search the whole block.
func DecideSearchRegion(ctx context.Context, heading Locator) (SearchRegionStrategy, error) {
	if heading == nil {
		return SearchInWholeBlock, nil
	}
	headingCount, err := heading.Count(ctx)
	if err != nil {
		return 0, err
	}
	if headingCount == 0 {
		return SearchInWholeBlock, nil
	}

	childCount, err := heading.Locator("> *").Count(ctx)
	if err != nil {
		return 0, err
	}
	if childCount > 1 {
		return SearchInHeading, nil
	}

	parentSiblingCount, err := heading.Locator("xpath=parent::*/*").Count(ctx)
	if err != nil {
		return 0, err
	}
	if parentSiblingCount <= 1 {
		return SearchInGrandparent, nil
	}
	return SearchInParent, nil
}

func regionLocator(strategy SearchRegionStrategy, block, heading Locator) Locator {
	switch strategy {
	case SearchInHeading:
		return heading
	case SearchInGrandparent:
		return heading.Locator("xpath=../..")
	case SearchInParent:
		return heading.Locator("xpath=..")
	default:
		return block
	}
}
