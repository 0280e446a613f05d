package commands

import (
	"catalogcrawler/internal/pipeline"
)

// SiteFactory builds a fully-resolved pipeline.SiteConfig. The out-of-scope
// declarative fluent builder is the intended production source of these —
// this repo registers factories directly so the CLI has something concrete
// to run without depending on that builder.
type SiteFactory func() pipeline.SiteConfig

var sites = map[string]SiteFactory{
	"example": exampleSite,
}

// RegisterSite lets an embedding program (or a future builder package) add
// a site without forking this CLI.
func RegisterSite(name string, factory SiteFactory) {
	sites[name] = factory
}

// exampleSite is a worked example of a catalog site declaration: a listing
// page grouped into static sections, each link leading to a page of blocks
// whose code is auto-extracted from a tabbed code region. It exists to give
// the CLI's run/resume/auth commands something runnable; real sites are
// declared the same way.
func exampleSite() pipeline.SiteConfig {
	return pipeline.SiteConfig{
		StartURL: "https://example.com/docs/components",
		Runtime:  pipeline.DefaultRuntimeConfig(),

		Collect: pipeline.CollectConfig{
			StartURL:        "https://example.com/docs/components",
			Mode:            pipeline.SectionStatic,
			SectionsLocator: "[data-catalog-section]",
			LinkLocator:     "a[data-catalog-entry]",
			NameLocator:     "[data-catalog-entry-name]",
			CountLocator:    "[data-catalog-entry-count]",
		},

		LinkExecutor: pipeline.LinkExecutorConfig{
			WaitUntil:  pipeline.WaitNetworkIdle,
			AutoScroll: pipeline.AutoScrollConfig{Enabled: true},
			SkipFree:   pipeline.FreeChecker{Pattern: "default"},
		},

		Block: pipeline.BlockProcessorConfig{
			Mode:          pipeline.BlockTraditional,
			BlocksLocator: func(page pipeline.Page) pipeline.Locator { return page.Locator("[data-catalog-block]") },
			SkipFree:      pipeline.FreeChecker{Pattern: "default"},
			AutoConfig: &pipeline.AutoFileConfig{
				TabContainer: func(block pipeline.Locator) pipeline.Locator {
					return block.Locator("[data-catalog-file-tabs]")
				},
				FileTabs: func(container pipeline.Locator) pipeline.Locator {
					return container.Locator("[role=tab]")
				},
				CodeRegion: func(block pipeline.Locator) pipeline.Locator {
					return block.Locator("[data-catalog-code]")
				},
				// OutputDir is left empty; the orchestrator fills it in
				// from the resolved per-site paths.
			},
			VerifyBlockCompletion: true,
		},
	}
}
