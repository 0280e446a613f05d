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

func blockRecorders() *pipeline.Recorders {
	return &pipeline.Recorders{
		Progress:        state.NewProgress(true),
		Free:            state.NewFreeRecord(),
		Mismatch:        state.NewMismatchRecord(),
		FilenameMapping: state.NewFilenameMapping(),
		Meta:            state.NewSiteMeta("https://example.com/"),
	}
}

func blockNode(name string) *pipelinetest.Node {
	return pipelinetest.NewNode("div", "").Add(
		pipelinetest.NewNode("h2", name),
	)
}

func newBlockPage(t *testing.T, blocks ...*pipelinetest.Node) pipeline.Page {
	t.Helper()
	root := pipelinetest.NewNode("html", "").Add(
		pipelinetest.NewNode("body", "").Add(blocks...),
	)
	driver := pipelinetest.NewDriver()
	driver.Register("https://example.com/fixture", root)

	ctx := context.Background()
	bctx, err := driver.NewContext(ctx, nil)
	require.NoError(t, err)
	page, err := bctx.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Goto(ctx, "https://example.com/fixture", pipeline.GotoOptions{}))
	return page
}

func blocksLocator(page pipeline.Page) pipeline.Locator {
	return page.Locator("div")
}

func countingHandler(seen *[]string) pipeline.BlockHandler {
	return func(ctx context.Context, block pipeline.Locator) error {
		text, err := block.Locator("h2").TextContent(ctx)
		if err != nil {
			return err
		}
		*seen = append(*seen, text)
		return nil
	}
}

func TestBlockProcessorTraditionalHappyPath(t *testing.T) {
	page := newBlockPage(t, blockNode("Button"), blockNode("Card"))

	var seen []string
	recorders := blockRecorders()
	bp := pipeline.NewBlockProcessor(pipeline.BlockProcessorConfig{
		Mode:          pipeline.BlockTraditional,
		BlocksLocator: blocksLocator,
		Handler:       countingHandler(&seen),
	}, recorders, pipeline.NewAutoFileProcessor(recorders.FilenameMapping))

	err := bp.Process(context.Background(), slog.Default(), page, "components/list", 2)
	require.NoError(t, err)

	require.Equal(t, []string{"Button", "Card"}, seen)
	require.True(t, recorders.Progress.IsBlockComplete("components/list/Button"))
	require.True(t, recorders.Progress.IsBlockComplete("components/list/Card"))
	require.Empty(t, recorders.Mismatch.Entries())
}

func TestBlockProcessorTraditionalMismatchAborts(t *testing.T) {
	page := newBlockPage(t, blockNode("Button"))

	var seen []string
	recorders := blockRecorders()
	bp := pipeline.NewBlockProcessor(pipeline.BlockProcessorConfig{
		Mode:          pipeline.BlockTraditional,
		BlocksLocator: blocksLocator,
		Handler:       countingHandler(&seen),
	}, recorders, pipeline.NewAutoFileProcessor(recorders.FilenameMapping))

	err := bp.Process(context.Background(), slog.Default(), page, "components/list", 2)
	require.ErrorIs(t, err, pipeline.ErrBlockCountMismatch)
	require.Empty(t, seen)

	entries := recorders.Mismatch.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, state.Mismatch{PagePath: "components/list", Expected: 2, Actual: 1}, entries[0])
}

func TestBlockProcessorTraditionalMismatchIgnored(t *testing.T) {
	page := newBlockPage(t, blockNode("Button"))

	var seen []string
	recorders := blockRecorders()
	bp := pipeline.NewBlockProcessor(pipeline.BlockProcessorConfig{
		Mode:           pipeline.BlockTraditional,
		BlocksLocator:  blocksLocator,
		Handler:        countingHandler(&seen),
		IgnoreMismatch: true,
	}, recorders, pipeline.NewAutoFileProcessor(recorders.FilenameMapping))

	err := bp.Process(context.Background(), slog.Default(), page, "components/list", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"Button"}, seen)

	entries := recorders.Mismatch.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, 2, entries[0].Expected)
	require.Equal(t, 1, entries[0].Actual)
}

func TestBlockProcessorVerifyCompletionWarnsOnPartialFailure(t *testing.T) {
	page := newBlockPage(t, blockNode("Button"), blockNode(""))

	var seen []string
	recorders := blockRecorders()
	bp := pipeline.NewBlockProcessor(pipeline.BlockProcessorConfig{
		Mode:                  pipeline.BlockTraditional,
		BlocksLocator:         blocksLocator,
		Handler:               countingHandler(&seen),
		VerifyBlockCompletion: true,
	}, recorders, pipeline.NewAutoFileProcessor(recorders.FilenameMapping))

	// second block has an empty heading, so name extraction fails and
	// processOne reports it as a non-fatal skip: Process must still return
	// nil (§8's "warn, don't crash") with processed < len(blocks).
	err := bp.Process(context.Background(), slog.Default(), page, "components/list", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"Button"}, seen)
	require.False(t, recorders.Progress.IsBlockComplete("components/list/"))
}

func TestBlockProcessorProgressiveDedupsByName(t *testing.T) {
	// blocksLocator always returns all block nodes currently attached to the
	// page; the fixture simulates lazy-loading by having the handler itself
	// grow the DOM on its first call, mimicking §4.F's re-query loop.
	root := pipelinetest.NewNode("html", "").Add(
		pipelinetest.NewNode("body", "").Add(blockNode("Button")),
	)
	driver := pipelinetest.NewDriver()
	driver.Register("https://example.com/fixture", root)

	ctx := context.Background()
	bctx, err := driver.NewContext(ctx, nil)
	require.NoError(t, err)
	page, err := bctx.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Goto(ctx, "https://example.com/fixture", pipeline.GotoOptions{}))

	body := root.Children[0]
	grown := false

	var seen []string
	recorders := blockRecorders()
	bp := pipeline.NewBlockProcessor(pipeline.BlockProcessorConfig{
		Mode:          pipeline.BlockProgressive,
		BlocksLocator: blocksLocator,
		Handler: func(ctx context.Context, block pipeline.Locator) error {
			text, err := block.Locator("h2").TextContent(ctx)
			if err != nil {
				return err
			}
			seen = append(seen, text)
			if !grown {
				grown = true
				body.Add(blockNode("Card"))
			}
			return nil
		},
	}, recorders, pipeline.NewAutoFileProcessor(recorders.FilenameMapping))

	err = bp.Process(ctx, slog.Default(), page, "components/list", 0)
	require.NoError(t, err)

	require.Equal(t, []string{"Button", "Card"}, seen)
	require.True(t, recorders.Progress.IsBlockComplete("components/list/Button"))
	require.True(t, recorders.Progress.IsBlockComplete("components/list/Card"))
}

func TestBlockProcessorConditionalNoMatchWarnsAndSkips(t *testing.T) {
	page := newBlockPage(t, blockNode("Button"))

	recorders := blockRecorders()
	bp := pipeline.NewBlockProcessor(pipeline.BlockProcessorConfig{
		Mode:          pipeline.BlockTraditional,
		BlocksLocator: blocksLocator,
		Conditionals: []pipeline.ConditionalBlockConfig{
			{
				WhenLocator: func(block pipeline.Locator) pipeline.Locator {
					return block.Locator("does-not-exist")
				},
				CodeRegion: "pre",
			},
		},
	}, recorders, pipeline.NewAutoFileProcessor(recorders.FilenameMapping))

	err := bp.Process(context.Background(), slog.Default(), page, "components/list", 1)
	require.NoError(t, err)
	require.True(t, recorders.Progress.IsBlockComplete("components/list/Button"))
}
