package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/internal/pipeline/pipelinetest"

	"github.com/stretchr/testify/require"
)

func buildCatalogFixture() *pipelinetest.Node {
	section := pipelinetest.NewNode("section", "").Add(
		pipelinetest.NewNode("a", "").WithAttr("href", "/components/button").Add(
			pipelinetest.NewNode("strong", "Button"),
			pipelinetest.NewNode("em", "5 blocks"),
		),
		pipelinetest.NewNode("a", "").WithAttr("href", "/components/alert").Add(
			pipelinetest.NewNode("strong", "Alert"),
			pipelinetest.NewNode("em", "2 blocks"),
		),
		pipelinetest.NewNode("a", "no href link"),
	)
	return pipelinetest.NewNode("html", "").Add(section)
}

func TestLinkCollectorExtractsLinksNamesAndCounts(t *testing.T) {
	root := buildCatalogFixture()
	driver := pipelinetest.NewDriver()
	driver.Register("https://example.com/", root)

	ctx := context.Background()
	bctx, _ := driver.NewContext(ctx, nil)
	page, _ := bctx.NewPage(ctx)

	collector, err := pipeline.NewLinkCollector(pipeline.CollectConfig{
		StartURL:        "https://example.com/",
		Mode:            pipeline.SectionStatic,
		SectionsLocator: "section",
		LinkLocator:     "a",
		NameLocator:     "strong",
		CountLocator:    "em",
	})
	require.NoError(t, err)

	dir := t.TempDir()
	result, err := collector.Collect(ctx, page, filepath.Join(dir, "collect.json"))
	require.NoError(t, err)

	require.Len(t, result.Collections, 2)
	require.Equal(t, "components/button", result.Collections[0].Link)
	require.Equal(t, "Button", result.Collections[0].Name)
	require.Equal(t, 5, result.Collections[0].BlockCount)
	require.Equal(t, "components/alert", result.Collections[1].Link)
	require.Equal(t, 2, result.Collections[1].BlockCount)
	require.Equal(t, 7, result.TotalBlocks)
}

func TestLinkCollectorSkipsWhenCollectFileExists(t *testing.T) {
	root := buildCatalogFixture()
	driver := pipelinetest.NewDriver()
	driver.Register("https://example.com/", root)

	ctx := context.Background()
	bctx, _ := driver.NewContext(ctx, nil)
	page, _ := bctx.NewPage(ctx)

	collector, err := pipeline.NewLinkCollector(pipeline.CollectConfig{
		StartURL:        "https://example.com/",
		Mode:            pipeline.SectionStatic,
		SectionsLocator: "section",
		LinkLocator:     "a",
	})
	require.NoError(t, err)

	dir := t.TempDir()
	collectPath := filepath.Join(dir, "collect.json")

	first, err := collector.Collect(ctx, page, collectPath)
	require.NoError(t, err)

	// Remove the fixture so a second collection would see nothing; a
	// correctly memoized collector must still return the first result.
	driver.Register("https://example.com/", pipelinetest.NewNode("html", ""))
	second, err := collector.Collect(ctx, page, collectPath)
	require.NoError(t, err)
	require.Equal(t, first.TotalLinks, second.TotalLinks)
}

func TestResolveCollectConfigRejectsMixedModes(t *testing.T) {
	_, err := pipeline.ResolveCollectConfig(pipeline.CollectConfig{
		Mode:            pipeline.SectionStatic,
		SectionsLocator: "section",
		TabListLocator:  "[role=tab]",
		LinkLocator:     "a",
	})
	require.ErrorIs(t, err, pipeline.ErrConfigUnsupportedCombination)
}
