package pipeline_test

import (
	"context"
	"log/slog"
	"testing"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/internal/pipeline/pipelinetest"
	"catalogcrawler/internal/pipeline/state"

	"github.com/stretchr/testify/require"
)

func newTestSite() (*pipelinetest.Driver, pipeline.Browser, pipeline.Page) {
	driver := pipelinetest.NewDriver()
	driver.Register("https://example.com/components/button", pipelinetest.NewNode("html", "").Add(
		pipelinetest.NewNode("div", "Button docs"),
	))
	driver.Register("https://example.com/components/legacy", pipelinetest.NewNode("html", "").Add(
		pipelinetest.NewNode("body", "").Add(
			pipelinetest.NewNode("span", "this component is free now"),
		),
	))

	ctx := context.Background()
	bctx, _ := driver.NewContext(ctx, nil)
	primary, _ := bctx.NewPage(ctx)
	return driver, driver, primary
}

func newRecordersForLinkExec() *pipeline.Recorders {
	return &pipeline.Recorders{
		Progress:        state.NewProgress(true),
		Free:            state.NewFreeRecord(),
		Mismatch:        state.NewMismatchRecord(),
		FilenameMapping: state.NewFilenameMapping(),
		Meta:            state.NewSiteMeta("https://example.com/"),
	}
}

func TestLinkExecutorDispatchesAndMarksComplete(t *testing.T) {
	_, browser, primary := newTestSite()
	recorders := newRecordersForLinkExec()

	var dispatched []string
	cfg := pipeline.LinkExecutorConfig{
		Dispatch: func(ctx context.Context, page pipeline.Page, link pipeline.CollectionLink) error {
			dispatched = append(dispatched, link.Link)
			return nil
		},
	}
	executor := pipeline.NewLinkExecutor(cfg, browser, primary, pipeline.NewScriptInjector(t.TempDir()), recorders)

	link := pipeline.CollectionLink{Link: "https://example.com/components/button"}
	err := executor.ProcessLink(context.Background(), slog.Default(), link, true)
	require.NoError(t, err)
	require.Equal(t, []string{link.Link}, dispatched)
	require.True(t, recorders.Progress.IsPageComplete(link.Link))
}

func TestLinkExecutorSkipsFreePages(t *testing.T) {
	_, browser, primary := newTestSite()
	recorders := newRecordersForLinkExec()

	dispatchCalled := false
	cfg := pipeline.LinkExecutorConfig{
		SkipFree: pipeline.FreeChecker{Pattern: "default"},
		Dispatch: func(ctx context.Context, page pipeline.Page, link pipeline.CollectionLink) error {
			dispatchCalled = true
			return nil
		},
	}
	executor := pipeline.NewLinkExecutor(cfg, browser, primary, pipeline.NewScriptInjector(t.TempDir()), recorders)

	link := pipeline.CollectionLink{Link: "https://example.com/components/legacy"}
	err := executor.ProcessLink(context.Background(), slog.Default(), link, true)
	require.NoError(t, err)
	require.False(t, dispatchCalled)
	require.True(t, recorders.Free.IsPageFree(link.Link))
	require.True(t, recorders.Progress.IsPageComplete(link.Link))
}
