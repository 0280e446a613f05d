package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalogcrawler/internal/pipeline/state"
	"catalogcrawler/lib/htmlutil"
)

// AutoFileConfig declares a declarative block config for the auto-extractor
// of §4.F/§4.H: walk variants (if any), then file tabs within a
// tabContainer, extracting code from the declared codeRegion.
type AutoFileConfig struct {
	// VariantSwitcher, if set together with VariantOptions, scopes the
	// variant options: their texts are read once per Process call, and every
	// option after the first is clicked in turn. The switcher itself is not
	// clicked.
	VariantSwitcher func(block Locator) Locator
	VariantOptions  func(switcher Locator) Locator

	// TabContainer, if set, scopes FileTab lookups; a nil TabContainer
	// means a single file is written, named "<blockName>.tsx".
	TabContainer func(block Locator) Locator
	FileTabs     func(container Locator) Locator

	CodeRegion func(block Locator) Locator

	OutputDir string
}

// AutoFileProcessor implements §4.F's "Auto-extractor" and §4.H: the
// declarative block-config variant of code extraction.
type AutoFileProcessor struct {
	filenames *state.FilenameMapping
}

func NewAutoFileProcessor(filenames *state.FilenameMapping) *AutoFileProcessor {
	return &AutoFileProcessor{filenames: filenames}
}

// Process extracts code for block according to cfg and writes it under
// cfg.OutputDir, keyed by blockPath for filename-mapping stability.
func (a *AutoFileProcessor) Process(ctx context.Context, page Page, block Locator, cfg AutoFileConfig) error {
	ctx, span := tracer.Start(ctx, "autoextract.process")
	defer span.End()

	blockName, err := DefaultBlockNameExtractor().Extract(ctx, page, block)
	if err != nil {
		return err
	}
	blockPath := blockName

	variantTexts, err := a.resolveVariants(ctx, block, cfg)
	if err != nil {
		return err
	}

	if len(variantTexts) == 0 {
		return a.processVariant(ctx, block, cfg, blockPath, blockName)
	}

	for i, text := range variantTexts {
		if i > 0 {
			opts := cfg.VariantOptions(cfg.VariantSwitcher(block))
			if err := opts.Nth(i).Click(ctx); err != nil {
				return fmt.Errorf("autoextract: select variant %q: %w", text, err)
			}
		}
		variantPath := blockPath + "/" + sanitizeComponent(text)
		if err := a.processVariant(ctx, block, cfg, variantPath, blockName); err != nil {
			return err
		}
	}
	return nil
}

func (a *AutoFileProcessor) resolveVariants(ctx context.Context, block Locator, cfg AutoFileConfig) ([]string, error) {
	if cfg.VariantSwitcher == nil || cfg.VariantOptions == nil {
		return nil, nil
	}
	options, err := cfg.VariantOptions(cfg.VariantSwitcher(block)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("autoextract: list variants: %w", err)
	}
	texts := make([]string, 0, len(options))
	for _, o := range options {
		text, err := o.TextContent(ctx)
		if err != nil {
			return nil, err
		}
		texts = append(texts, htmlutil.CleanText(text))
	}
	return texts, nil
}

func (a *AutoFileProcessor) processVariant(ctx context.Context, block Locator, cfg AutoFileConfig, variantPath, blockName string) error {
	if cfg.TabContainer == nil {
		code, err := a.extractCode(ctx, cfg.CodeRegion(block))
		if err != nil {
			return err
		}
		filename := a.filenames.Resolve(variantPath, blockName+".tsx")
		return writeExtractedFile(filepath.Join(cfg.OutputDir, variantPath), filename, code)
	}

	tabs, err := cfg.FileTabs(cfg.TabContainer(block)).All(ctx)
	if err != nil {
		return fmt.Errorf("autoextract: list file tabs: %w", err)
	}

	for _, tab := range tabs {
		tabText, err := tab.TextContent(ctx)
		if err != nil {
			return err
		}
		filename := resolveTabFilename(htmlutil.CleanText(tabText))

		if err := tab.Click(ctx); err != nil {
			return fmt.Errorf("autoextract: click tab %q: %w", tabText, err)
		}

		code, err := a.extractCode(ctx, cfg.CodeRegion(block))
		if err != nil {
			return err
		}

		resolved := a.filenames.Resolve(variantPath, filename)
		if err := writeExtractedFile(filepath.Join(cfg.OutputDir, variantPath), resolved, code); err != nil {
			return err
		}
	}
	return nil
}

// languageTabNames maps a bare language-name tab (no path separator) to its
// conventional index filename, per §4.F: "language-name-only tabs like
// 'TypeScript' become index.tsx".
var languageTabNames = map[string]string{
	"typescript": "index.tsx",
	"javascript": "index.jsx",
	"css":        "index.css",
	"html":       "index.html",
	"json":       "index.json",
}

func resolveTabFilename(tabText string) string {
	if strings.Contains(tabText, "/") || strings.Contains(tabText, ".") {
		return tabText
	}
	if name, ok := languageTabNames[strings.ToLower(tabText)]; ok {
		return name
	}
	return tabText + ".tsx"
}

// extractCode reads code text from the last <pre> element inside region
// (last wins to avoid duplicates, per §4.F), applying the syntax-highlighter
// special case when the region contains .token-line spans.
func (a *AutoFileProcessor) extractCode(ctx context.Context, region Locator) (string, error) {
	pres := region.Locator("pre")
	count, err := pres.Count(ctx)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", fmt.Errorf("autoextract: no <pre> element found in code region")
	}
	last := pres.Nth(count - 1)

	html, err := last.InnerHTML(ctx)
	if err != nil {
		return "", err
	}
	return reconstructCode(html)
}

var copyDecorationSelectors = []string{".copy-button", ".ellipsis", "[aria-hidden=true]"}

// reconstructCode implements §4.F's "default code extractor ... with a
// special case for syntax-highlighter output that reconstructs code from
// .token-line children while removing copy/ellipsis decoration", using
// goquery the way lib/htmlutil.GetAnchors walks parsed DOM fragments rather
// than regexing HTML text directly.
func reconstructCode(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<pre>" + fragment + "</pre>"))
	if err != nil {
		return "", fmt.Errorf("autoextract: parse code fragment: %w", err)
	}

	tokenLines := doc.Find(".token-line")
	if tokenLines.Length() == 0 {
		return strings.TrimRight(doc.Find("pre").First().Text(), "\n"), nil
	}

	var lines []string
	tokenLines.Each(func(_ int, line *goquery.Selection) {
		clone := line.Clone()
		for _, sel := range copyDecorationSelectors {
			clone.Find(sel).Remove()
		}
		lines = append(lines, clone.Text())
	})
	return strings.Join(lines, "\n"), nil
}

var nonFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeComponent(s string) string {
	return nonFilenameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
}

func writeExtractedFile(dir, filename, contents string) error {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return fmt.Errorf("autoextract: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("autoextract: write %s: %w", path, err)
	}
	return nil
}
