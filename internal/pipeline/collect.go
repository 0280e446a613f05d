package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"catalogcrawler/internal/pipeline/pathkey"
	"catalogcrawler/lib/htmlutil"
)

// CollectionLink is the pre-computed work-set entry of spec §3: a single
// link discovered under a section, with optional display name and expected
// block count.
type CollectionLink struct {
	Link       string `json:"link"`
	Name       string `json:"name,omitempty"`
	BlockCount int    `json:"blockCount,omitempty"`
}

// CollectResult is the immutable pre-computed work set produced by the link
// collector, serialized as collect.json.
type CollectResult struct {
	LastUpdate  string            `json:"lastUpdate"`
	TotalLinks  int               `json:"totalLinks"`
	TotalBlocks int               `json:"totalBlocks"`
	Collections []CollectionLink  `json:"collections"`
}

// SectionMode selects how the link collector finds sections on the start
// page, per the static-or-click-through dichotomy of §4.C. Per the §9 open
// question about LinkCollector/LinkCollectorChain/TabProcessor variants,
// this repo rejects any configuration naming both a static section locator
// and a tablist at resolve time (see ResolveCollectConfig) rather than
// trying to reconcile them.
type SectionMode int

const (
	// SectionStatic: a locator produces N sections directly in the initial
	// DOM.
	SectionStatic SectionMode = iota
	// SectionClickThrough: iterate tabs in a tablist; clicking each tab
	// reveals its panel, which is the section.
	SectionClickThrough
)

// CollectConfig declares how to find sections, and within each section how
// to find links/names/counts. LinkLocator/NameLocator/CountLocator are
// selectors resolved relative to a section locator.
type CollectConfig struct {
	StartURL  string
	WaitUntil WaitUntil
	Timeout   time.Duration

	Mode SectionMode

	// Static mode.
	SectionsLocator string

	// Click-through mode.
	TabListLocator string
	TabPanelLocator func(tabIndex int) string

	LinkLocator  string
	NameLocator  string // optional; defaults to first non-empty text node
	CountLocator string // optional; defaults to summing digit runs

	// ExtractName/ExtractCount override locator-based extraction entirely.
	ExtractName  func(ctx context.Context, link Locator) (string, error)
	ExtractCount func(ctx context.Context, link Locator) (int, error)
}

// ResolveCollectConfig validates a CollectConfig, rejecting unsupported
// static/click-through combinations at configuration time per §9.
func ResolveCollectConfig(cfg CollectConfig) (CollectConfig, error) {
	if cfg.WaitUntil == "" {
		cfg.WaitUntil = WaitLoad
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	switch cfg.Mode {
	case SectionStatic:
		if cfg.SectionsLocator == "" {
			return cfg, errConfig("static section mode requires SectionsLocator")
		}
		if cfg.TabListLocator != "" {
			return cfg, fmt.Errorf("%w: static mode configured alongside a tablist locator", ErrConfigUnsupportedCombination)
		}
	case SectionClickThrough:
		if cfg.TabListLocator == "" || cfg.TabPanelLocator == nil {
			return cfg, errConfig("click-through mode requires TabListLocator and TabPanelLocator")
		}
		if cfg.SectionsLocator != "" {
			return cfg, fmt.Errorf("%w: click-through mode configured alongside a static sections locator", ErrConfigUnsupportedCombination)
		}
	default:
		return cfg, errConfig("unknown section mode %d", cfg.Mode)
	}
	if cfg.LinkLocator == "" {
		return cfg, errConfig("LinkLocator is required")
	}
	return cfg, nil
}

var digitRun = regexp.MustCompile(`\d+`)

// sumDigitRuns implements the default count extractor of §4.C: summing all
// digit runs in the count text (e.g. "5 blocks, 2 hidden" -> 7).
func sumDigitRuns(text string) int {
	total := 0
	for _, m := range digitRun.FindAllString(text, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

// LinkCollector implements §4.C: visit the start page, walk its sections,
// extract (href, name, blockCount) per link, and persist collect.json
// idempotently.
type LinkCollector struct {
	cfg  CollectConfig
	norm *pathkey.Normalizer
}

// NewLinkCollector constructs a LinkCollector, building the path normalizer
// against the configured start URL.
func NewLinkCollector(cfg CollectConfig) (*LinkCollector, error) {
	cfg, err := ResolveCollectConfig(cfg)
	if err != nil {
		return nil, err
	}
	norm, err := pathkey.NewNormalizer(cfg.StartURL)
	if err != nil {
		return nil, err
	}
	return &LinkCollector{cfg: cfg, norm: norm}, nil
}

// Collect visits the start page and produces a CollectResult. If
// collectPath already exists, collection is skipped entirely (§4.C's
// primary idempotence axis) and the existing file is loaded instead.
func (c *LinkCollector) Collect(ctx context.Context, page Page, collectPath string) (CollectResult, error) {
	existing, ok, err := loadCollectResult(collectPath)
	if err != nil {
		return CollectResult{}, err
	}
	if ok {
		// §4.C: collection is skipped entirely when collect.json already
		// exists. ErrCollectExists is informational, not surfaced as a
		// failure to the caller.
		return existing, nil
	}

	if err := page.Goto(ctx, c.cfg.StartURL, GotoOptions{WaitUntil: c.cfg.WaitUntil, Timeout: c.cfg.Timeout}); err != nil {
		return CollectResult{}, fmt.Errorf("collect: goto start url: %w", err)
	}

	sections, err := c.resolveSections(ctx, page)
	if err != nil {
		return CollectResult{}, err
	}

	var links []CollectionLink
	for _, section := range sections {
		sectionLinks, err := c.extractSectionLinks(ctx, section)
		if err != nil {
			return CollectResult{}, err
		}
		links = append(links, sectionLinks...)
	}

	totalBlocks := 0
	for _, l := range links {
		totalBlocks += l.BlockCount
	}

	result := CollectResult{
		LastUpdate:  nowISO(),
		TotalLinks:  len(links),
		TotalBlocks: totalBlocks,
		Collections: links,
	}

	if err := saveCollectResult(collectPath, result); err != nil {
		return CollectResult{}, err
	}
	return result, nil
}

func (c *LinkCollector) resolveSections(ctx context.Context, page Page) ([]Locator, error) {
	switch c.cfg.Mode {
	case SectionStatic:
		sectionsLoc := page.Locator(c.cfg.SectionsLocator)
		return sectionsLoc.All(ctx)
	case SectionClickThrough:
		return c.clickThroughSections(ctx, page)
	default:
		return nil, errConfig("unknown section mode %d", c.cfg.Mode)
	}
}

func (c *LinkCollector) clickThroughSections(ctx context.Context, page Page) ([]Locator, error) {
	tabs, err := page.Locator(c.cfg.TabListLocator).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect: list tabs: %w", err)
	}

	panels := make([]Locator, 0, len(tabs))
	for i, tab := range tabs {
		if err := tab.Click(ctx); err != nil {
			return nil, fmt.Errorf("collect: click tab %d: %w", i, err)
		}
		if err := page.WaitForTimeout(ctx, DefaultTabSettleDelay); err != nil {
			return nil, err
		}
		panels = append(panels, page.Locator(c.cfg.TabPanelLocator(i)))
	}
	return panels, nil
}

func (c *LinkCollector) extractSectionLinks(ctx context.Context, section Locator) ([]CollectionLink, error) {
	linkLocators, err := section.Locator(c.cfg.LinkLocator).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect: list links: %w", err)
	}

	var out []CollectionLink
	for _, lnk := range linkLocators {
		href, ok, err := lnk.Attribute(ctx, "href")
		if err != nil {
			return nil, fmt.Errorf("collect: read href: %w", err)
		}
		if !ok || href == "" {
			// href is required; silently drop per §4.C.
			continue
		}

		key, err := c.norm.Key(href)
		if err != nil {
			return nil, fmt.Errorf("collect: normalize href %q: %w", href, err)
		}

		link := CollectionLink{Link: key}

		name, err := c.extractName(ctx, lnk)
		if err != nil {
			return nil, err
		}
		link.Name = name

		count, err := c.extractCount(ctx, lnk)
		if err != nil {
			return nil, err
		}
		link.BlockCount = count

		out = append(out, link)
	}
	return out, nil
}

func (c *LinkCollector) extractName(ctx context.Context, link Locator) (string, error) {
	if c.cfg.ExtractName != nil {
		return c.cfg.ExtractName(ctx, link)
	}
	if c.cfg.NameLocator != "" {
		text, err := link.Locator(c.cfg.NameLocator).TextContent(ctx)
		if err != nil {
			return "", nil //nolint:nilerr // missing name is simply omitted per §4.C
		}
		return htmlutil.CleanText(text), nil
	}
	text, err := link.TextContent(ctx)
	if err != nil {
		return "", nil //nolint:nilerr
	}
	return htmlutil.CleanText(firstNonEmptyLine(text)), nil
}

func (c *LinkCollector) extractCount(ctx context.Context, link Locator) (int, error) {
	if c.cfg.ExtractCount != nil {
		return c.cfg.ExtractCount(ctx, link)
	}
	if c.cfg.CountLocator == "" {
		return 0, nil
	}
	text, err := link.Locator(c.cfg.CountLocator).TextContent(ctx)
	if err != nil {
		return 0, nil //nolint:nilerr
	}
	return sumDigitRuns(text), nil
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func loadCollectResult(path string) (CollectResult, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CollectResult{}, false, nil
	}
	if err != nil {
		return CollectResult{}, false, fmt.Errorf("collect: read %s: %w", path, err)
	}
	var result CollectResult
	if err := json.Unmarshal(data, &result); err != nil {
		return CollectResult{}, false, fmt.Errorf("collect: unmarshal %s: %w", path, err)
	}
	return result, true, nil
}

func saveCollectResult(path string, result CollectResult) error {
	return atomicSaveFile(path, result)
}
