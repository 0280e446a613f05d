// Package pathkey normalizes collection-link hrefs into the canonical keys
// used by Progress and FreeRecord: resolve against the site's base URL,
// then run purell's safe normalization flags to fold away query-order and
// trailing-slash noise that would otherwise make the same logical page
// round-trip to a different key between runs.
package pathkey

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

const normalizeFlags = purell.FlagsSafe |
	purell.FlagsUsuallySafeGreedy |
	purell.FlagRemoveDirectoryIndex |
	purell.FlagRemoveFragment |
	purell.FlagSortQuery

// Normalizer resolves relative link hrefs against a fixed base URL and
// returns the normalized path key used throughout Progress/Free/output
// paths.
type Normalizer struct {
	base *url.URL
}

// NewNormalizer constructs a Normalizer against the crawl's start URL.
func NewNormalizer(startURL string) (*Normalizer, error) {
	base, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("pathkey: parse base url: %w", err)
	}
	return &Normalizer{base: base}, nil
}

// Key resolves href against the base URL and returns its normalized,
// base-stripped path — the "normalized link path" referenced throughout
// spec §3/§4.
func (n *Normalizer) Key(href string) (string, error) {
	full, err := n.base.Parse(href)
	if err != nil {
		return "", fmt.Errorf("pathkey: resolve %q: %w", href, err)
	}

	normalized := purell.NormalizeURL(full, normalizeFlags)

	key, err := stripPrefix(normalized, n.base)
	if err != nil {
		return "", err
	}
	return key, nil
}

// stripPrefix removes the base URL's scheme+host+trailing-slash prefix from
// a normalized absolute URL, leaving a bare path suitable for use as a
// filesystem-mirrored relative path (e.g. "components/button").
func stripPrefix(normalized string, base *url.URL) (string, error) {
	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("pathkey: parse normalized url: %w", err)
	}

	path := strings.TrimPrefix(u.Path, "/")
	if u.RawQuery != "" {
		path = path + "?" + u.RawQuery
	}
	if path == "" {
		path = "."
	}
	return path, nil
}

// BlockPath joins a normalized page path with a block name, matching §3's
// "{normalized page path}/{block name}" composite key.
func BlockPath(pagePath, blockName string) string {
	return pagePath + "/" + blockName
}
