// Package pipeline implements the orchestration engine: the configuration
// resolver, authentication manager, link collector, scheduler, link and
// block/page processors, auto-extractor, script injector and the atomic
// state-persistence layer that together turn a declared site configuration
// into a crawl of that site.
//
// The package never talks to a real browser. It depends only on the
// capability interfaces declared in this file, which a driver binding
// (Playwright, chromedp, or a test fake) implements, so the orchestration
// logic is provable against a fake without pulling in a browser at all.
package pipeline

import (
	"context"
	"time"
)

// WaitUntil mirrors a browser driver's page-load wait condition.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// GotoOptions configures Page.Goto.
type GotoOptions struct {
	WaitUntil WaitUntil
	Timeout   time.Duration
}

// VisibleOptions configures Locator.IsVisible's polling window.
type VisibleOptions struct {
	Timeout time.Duration
}

// Cookie is the normalized shape a driver's context accepts, matching the
// native storage-state cookie fields enumerated in spec §4.B.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  float64
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// StorageState is the native browser-driver session snapshot: cookies plus
// per-origin localStorage entries.
type StorageState struct {
	Cookies []Cookie        `json:"cookies"`
	Origins []StorageOrigin `json:"origins"`
}

type StorageOrigin struct {
	Origin       string             `json:"origin"`
	LocalStorage []StorageKeyValue  `json:"localStorage"`
}

type StorageKeyValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Locator is a lazily-resolved reference to zero or more elements, mirroring
// a Playwright-style locator. Every method is a suspension point.
type Locator interface {
	All(ctx context.Context) ([]Locator, error)
	Count(ctx context.Context) (int, error)
	TextContent(ctx context.Context) (string, error)
	InnerHTML(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	WaitFor(ctx context.Context, opts VisibleOptions) error
	IsVisible(ctx context.Context, opts VisibleOptions) (bool, error)
	ScrollIntoViewIfNeeded(ctx context.Context) error
	Locator(selector string) Locator
	Nth(index int) Locator
	Attribute(ctx context.Context, name string) (string, bool, error)
}

// Mouse exposes the pointer operations used by autoscroll (§4.E step 6).
type Mouse interface {
	Wheel(ctx context.Context, deltaX, deltaY float64) error
}

// Page is a single browser tab.
type Page interface {
	Goto(ctx context.Context, url string, opts GotoOptions) error
	Locator(selector string) Locator
	GetByRole(role string, name string) Locator
	GetByText(text string) Locator
	Evaluate(ctx context.Context, script string, arg any) (any, error)
	AddInitScript(ctx context.Context, script string) error
	Mouse() Mouse
	WaitForTimeout(ctx context.Context, d time.Duration) error
	Pause(ctx context.Context) error
	URL() string
	Context() BrowserContext
	Close(ctx context.Context) error
}

// BrowserContext groups pages sharing cookies/storage, mirroring a
// Playwright BrowserContext.
type BrowserContext interface {
	NewPage(ctx context.Context) (Page, error)
	AddCookies(ctx context.Context, cookies []Cookie) error
	StorageState(ctx context.Context) (StorageState, error)
	Close(ctx context.Context) error
}

// Browser is the top-level driver handle. The core never constructs one; it
// is handed a Browser (and usually a primary Page already open on it) by the
// out-of-scope test-runner harness or CLI entrypoint.
type Browser interface {
	NewContext(ctx context.Context, storageState *StorageState) (BrowserContext, error)
}
