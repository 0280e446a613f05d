package pipeline_test

import (
	"context"
	"testing"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/internal/pipeline/pipelinetest"

	"github.com/stretchr/testify/require"
)

func TestBlockNameExtractorPlainHeading(t *testing.T) {
	block := pipelinetest.NewNode("div", "").Add(
		pipelinetest.NewNode("h2", "Button"),
	)

	extractor := pipeline.DefaultBlockNameExtractor()
	name, err := extractor.Extract(context.Background(), nil, wrapLocator(block))
	require.NoError(t, err)
	require.Equal(t, "Button", name)
}

func TestBlockNameExtractorHeadingWithSingleLink(t *testing.T) {
	block := pipelinetest.NewNode("div", "").Add(
		pipelinetest.NewNode("h2", "").Add(
			pipelinetest.NewNode("a", "Button"),
		),
	)

	extractor := pipeline.DefaultBlockNameExtractor()
	name, err := extractor.Extract(context.Background(), nil, wrapLocator(block))
	require.NoError(t, err)
	require.Equal(t, "Button", name)
}

func TestBlockNameExtractorComplexHeadingWithoutLinkFails(t *testing.T) {
	block := pipelinetest.NewNode("div", "").Add(
		pipelinetest.NewNode("h2", "").Add(
			pipelinetest.NewNode("span", "Button"),
			pipelinetest.NewNode("span", "(beta)"),
		),
	)

	extractor := pipeline.DefaultBlockNameExtractor()
	_, err := extractor.Extract(context.Background(), nil, wrapLocator(block))
	require.ErrorIs(t, err, pipeline.ErrComplexHeading)
}

func TestBlockNameExtractorNoHeadingFails(t *testing.T) {
	block := pipelinetest.NewNode("div", "").Add(
		pipelinetest.NewNode("p", "no heading here"),
	)

	extractor := pipeline.DefaultBlockNameExtractor()
	_, err := extractor.Extract(context.Background(), nil, wrapLocator(block))
	require.ErrorIs(t, err, pipeline.ErrNameExtractionFailed)
}

func TestBlockNameExtractorGetBlockNameOverride(t *testing.T) {
	extractor := &pipeline.BlockNameExtractor{
		GetBlockName: func(ctx context.Context, block pipeline.Locator) (string, error) {
			return "Override", nil
		},
	}
	name, err := extractor.Extract(context.Background(), nil, wrapLocator(pipelinetest.NewNode("div", "")))
	require.NoError(t, err)
	require.Equal(t, "Override", name)
}

// wrapLocator builds a standalone Driver/Page just to obtain a Locator
// rooted at block, mirroring how the real pipeline always resolves
// locators relative to an open page.
func wrapLocator(block *pipelinetest.Node) pipeline.Locator {
	root := pipelinetest.NewNode("html", "").Add(block)
	driver := pipelinetest.NewDriver()
	driver.Register("https://example.com/fixture", root)

	ctx := context.Background()
	bctx, _ := driver.NewContext(ctx, nil)
	page, _ := bctx.NewPage(ctx)
	_ = page.Goto(ctx, "https://example.com/fixture", pipeline.GotoOptions{})
	return page.Locator("div").Nth(0)
}
