package pipeline_test

import (
	"context"
	"testing"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/internal/pipeline/pipelinetest"

	"github.com/stretchr/testify/require"
)

func newPageWithBody(body *pipelinetest.Node) pipeline.Page {
	root := pipelinetest.NewNode("html", "").Add(body)
	driver := pipelinetest.NewDriver()
	driver.Register("https://example.com/fixture", root)

	ctx := context.Background()
	bctx, _ := driver.NewContext(ctx, nil)
	page, _ := bctx.NewPage(ctx)
	_ = page.Goto(ctx, "https://example.com/fixture", pipeline.GotoOptions{})
	return page
}

func TestCheckPageFreeNilCheckerNeverFree(t *testing.T) {
	page := newPageWithBody(pipelinetest.NewNode("body", "nothing here"))
	free, err := pipeline.CheckPageFree(context.Background(), page, pipeline.FreeChecker{})
	require.NoError(t, err)
	require.False(t, free)
}

func TestCheckPageFreeFuncForm(t *testing.T) {
	page := newPageWithBody(pipelinetest.NewNode("body", "this component is free to use"))
	checker := pipeline.FreeChecker{
		Func: func(ctx context.Context, scope pipeline.Locator) (bool, error) {
			text, err := scope.TextContent(ctx)
			if err != nil {
				return false, err
			}
			return len(text) > 0, nil
		},
	}
	free, err := pipeline.CheckPageFree(context.Background(), page, checker)
	require.NoError(t, err)
	require.True(t, free)
}

func TestDecideSearchRegionHeadingWithMultipleChildrenSearchesHeading(t *testing.T) {
	heading := pipelinetest.NewNode("h2", "").Add(
		pipelinetest.NewNode("span", "Usage"),
		pipelinetest.NewNode("span", "(beta)"),
	)
	page := newPageWithBody(pipelinetest.NewNode("div", "").Add(heading))
	headingLoc := page.Locator("h2").Nth(0)

	strategy, err := pipeline.DecideSearchRegion(context.Background(), headingLoc)
	require.NoError(t, err)
	require.Equal(t, pipeline.SearchInHeading, strategy)
}

func TestDecideSearchRegionNilHeadingSearchesWholeBlock(t *testing.T) {
	strategy, err := pipeline.DecideSearchRegion(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, pipeline.SearchInWholeBlock, strategy)
}
