package pipeline

import (
	"context"
	"fmt"

	"catalogcrawler/lib/htmlutil"
)

// BlockNameExtractor resolves a block's display name, per §4.F
// "BlockNameExtractor": in order, a configured GetBlockName function, a
// configured non-default locator, or the default in-page heading walk.
type BlockNameExtractor struct {
	GetBlockName     func(ctx context.Context, block Locator) (string, error)
	BlockNameLocator string // non-empty and non-default overrides the walk
}

// DefaultBlockNameExtractor returns the extractor that performs the
// heading-walk described in §4.F with no overrides configured.
func DefaultBlockNameExtractor() *BlockNameExtractor {
	return &BlockNameExtractor{}
}

// Extract resolves the block's name.
func (e *BlockNameExtractor) Extract(ctx context.Context, page Page, block Locator) (string, error) {
	if e.GetBlockName != nil {
		return e.GetBlockName(ctx, block)
	}
	if e.BlockNameLocator != "" {
		text, err := block.Locator(e.BlockNameLocator).TextContent(ctx)
		if err != nil {
			return "", err
		}
		return text, nil
	}
	return e.defaultExtract(ctx, block)
}

// HeadingLocator returns the block's heading element, used both by the
// default name-extraction walk and by the block-scoped free checker's
// search-region decision (§4.F).
func (e *BlockNameExtractor) HeadingLocator(block Locator) Locator {
	return block.Locator("h1, h2, h3, h4, h5, h6").Nth(0)
}

// defaultExtract implements §4.F's default strategy: locate the first
// h1..h6; if it has multiple element children, take the first <a> child's
// text, else take the heading's own text. A heading with multiple element
// children and no link child fails with ErrComplexHeading.
func (e *BlockNameExtractor) defaultExtract(ctx context.Context, block Locator) (string, error) {
	heading := e.HeadingLocator(block)
	count, err := heading.Count(ctx)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", fmt.Errorf("%w: no heading found", ErrNameExtractionFailed)
	}

	childCount, err := heading.Locator("> *").Count(ctx)
	if err != nil {
		return "", err
	}

	if childCount <= 1 {
		text, err := heading.TextContent(ctx)
		if err != nil {
			return "", err
		}
		return trimName(text), nil
	}

	anchors, err := heading.Locator("a").All(ctx)
	if err != nil {
		return "", err
	}
	if len(anchors) == 0 {
		return "", ErrComplexHeading
	}

	text, err := anchors[0].TextContent(ctx)
	if err != nil {
		return "", err
	}
	return trimName(text), nil
}

func trimName(s string) string {
	return htmlutil.CleanText(firstNonEmptyLine(s))
}
