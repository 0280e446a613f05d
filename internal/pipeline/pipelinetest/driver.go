// Package pipelinetest is a fake, in-memory implementation of the
// pipeline.Browser/Page/Locator capability interfaces, standing in for the
// out-of-scope browser-driver binding so pipeline package tests can run
// against a small DOM fixture instead of a live browser.
package pipelinetest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"catalogcrawler/internal/pipeline"
)

// Node is a minimal DOM node: a tag, text content, attributes and children.
// Tests build a page's structure by constructing a tree of Nodes.
type Node struct {
	Tag      string
	Text     string
	Attrs    map[string]string
	Children []*Node
	Visible  bool
	Clicks   int
}

func NewNode(tag, text string) *Node {
	return &Node{Tag: tag, Text: text, Attrs: map[string]string{}, Visible: true}
}

func (n *Node) WithAttr(k, v string) *Node {
	n.Attrs[k] = v
	return n
}

func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

func (n *Node) Hide() *Node {
	n.Visible = false
	return n
}

// find walks n's subtree selecting by the tiny selector language this fake
// driver understands: a bare tag name ("h2"), "*" (any element), or a
// leading ">" restricted to direct children. Good enough to exercise the
// pipeline's own selector usage without needing a real CSS engine.
func (n *Node) find(selector string) []*Node {
	direct := false
	sel := selector
	if len(sel) > 0 && sel[0] == '>' {
		direct = true
		sel = trimSpace(sel[1:])
	}

	var out []*Node
	var walk func(*Node, bool)
	walk = func(cur *Node, top bool) {
		for _, c := range cur.Children {
			if matches(c, sel) {
				out = append(out, c)
			}
			if !direct {
				walk(c, false)
			}
		}
	}
	walk(n, true)
	return out
}

func matches(n *Node, sel string) bool {
	for _, part := range splitComma(sel) {
		if strings.HasPrefix(part, "text=") {
			if matchesTextSelector(n, part[len("text="):]) {
				return true
			}
			continue
		}
		switch part {
		case "*", "":
			return true
		default:
			if n.Tag == part {
				return true
			}
		}
	}
	return false
}

// matchesTextSelector emulates just enough of Playwright's text= selector
// engine (regex form "/pattern/flags" and a quoted literal form) for the
// free-checker's pattern matching to exercise against this fake driver.
func matchesTextSelector(n *Node, expr string) bool {
	text := collectText(n)
	if strings.HasPrefix(expr, "/") {
		end := strings.LastIndex(expr, "/")
		if end <= 0 {
			return false
		}
		pattern, flags := expr[1:end], expr[end+1:]
		if strings.Contains(flags, "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	literal := strings.Trim(expr, `"`)
	return containsFold(text, literal)
}

func splitComma(sel string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(sel); i++ {
		if i == len(sel) || sel[i] == ',' {
			out = append(out, trimSpace(sel[start:i]))
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}

// Driver is the fake pipeline.Browser. Pages map a URL to a root Node tree;
// navigating to an unregistered URL produces an empty page.
type Driver struct {
	mu    sync.Mutex
	pages map[string]*Node
}

func NewDriver() *Driver {
	return &Driver{pages: map[string]*Node{}}
}

func (d *Driver) Register(url string, root *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[url] = root
}

func (d *Driver) NewContext(ctx context.Context, storageState *pipeline.StorageState) (pipeline.BrowserContext, error) {
	return &fakeContext{driver: d}, nil
}

type fakeContext struct {
	driver  *Driver
	storage pipeline.StorageState
	closed  bool
}

func (c *fakeContext) NewPage(ctx context.Context) (pipeline.Page, error) {
	return &fakePage{ctx: c}, nil
}

func (c *fakeContext) AddCookies(ctx context.Context, cookies []pipeline.Cookie) error {
	c.storage.Cookies = append(c.storage.Cookies, cookies...)
	return nil
}

func (c *fakeContext) StorageState(ctx context.Context) (pipeline.StorageState, error) {
	return c.storage, nil
}

func (c *fakeContext) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

// fakePage is a single fake tab. url/root are swapped on Goto.
type fakePage struct {
	ctx     *fakeContext
	url     string
	root    *Node
	scrollY float64
	closed  bool
	paused  int
}

func (p *fakePage) Goto(ctx context.Context, url string, opts pipeline.GotoOptions) error {
	p.ctx.driver.mu.Lock()
	root, ok := p.ctx.driver.pages[url]
	p.ctx.driver.mu.Unlock()
	if !ok {
		root = NewNode("html", "")
	}
	p.url = url
	p.root = root
	p.scrollY = 0
	return nil
}

func (p *fakePage) Locator(selector string) pipeline.Locator {
	return &fakeLocator{page: p, nodes: p.root.find(selector)}
}

func (p *fakePage) GetByRole(role string, name string) pipeline.Locator {
	var out []*Node
	for _, n := range p.root.find("*") {
		if n.Attrs["role"] == role && containsFold(n.Text, name) {
			out = append(out, n)
		}
	}
	return &fakeLocator{page: p, nodes: out}
}

func (p *fakePage) GetByText(text string) pipeline.Locator {
	var out []*Node
	for _, n := range p.root.find("*") {
		if containsFold(n.Text, text) {
			out = append(out, n)
		}
	}
	return &fakeLocator{page: p, nodes: out}
}

func (p *fakePage) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	return nil, nil
}

func (p *fakePage) AddInitScript(ctx context.Context, script string) error { return nil }

func (p *fakePage) Mouse() pipeline.Mouse { return &fakeMouse{page: p} }

func (p *fakePage) WaitForTimeout(ctx context.Context, d time.Duration) error { return nil }

func (p *fakePage) Pause(ctx context.Context) error {
	p.paused++
	return nil
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Context() pipeline.BrowserContext { return p.ctx }

func (p *fakePage) Close(ctx context.Context) error {
	p.closed = true
	return nil
}

type fakeMouse struct{ page *fakePage }

func (m *fakeMouse) Wheel(ctx context.Context, deltaX, deltaY float64) error {
	m.page.scrollY += deltaY
	return nil
}

// fakeLocator resolves to a fixed slice of nodes captured at construction
// time, matching how a test builds the page tree up front.
type fakeLocator struct {
	page  *fakePage
	nodes []*Node
}

func (l *fakeLocator) All(ctx context.Context) ([]pipeline.Locator, error) {
	out := make([]pipeline.Locator, len(l.nodes))
	for i, n := range l.nodes {
		out[i] = &fakeLocator{page: l.page, nodes: []*Node{n}}
	}
	return out, nil
}

func (l *fakeLocator) Count(ctx context.Context) (int, error) {
	return len(l.nodes), nil
}

func (l *fakeLocator) TextContent(ctx context.Context) (string, error) {
	if len(l.nodes) == 0 {
		return "", fmt.Errorf("pipelinetest: no element")
	}
	return collectText(l.nodes[0]), nil
}

// collectText mirrors a browser's textContent: a node's own text plus every
// descendant's text, concatenated depth-first.
func collectText(n *Node) string {
	out := n.Text
	for _, c := range n.Children {
		out += collectText(c)
	}
	return out
}

func (l *fakeLocator) InnerHTML(ctx context.Context) (string, error) {
	if len(l.nodes) == 0 {
		return "", fmt.Errorf("pipelinetest: no element")
	}
	return renderHTML(l.nodes[0]), nil
}

func (l *fakeLocator) Click(ctx context.Context) error {
	if len(l.nodes) == 0 {
		return fmt.Errorf("pipelinetest: no element to click")
	}
	l.nodes[0].Clicks++
	return nil
}

func (l *fakeLocator) Fill(ctx context.Context, value string) error {
	if len(l.nodes) == 0 {
		return fmt.Errorf("pipelinetest: no element to fill")
	}
	l.nodes[0].Attrs["value"] = value
	return nil
}

func (l *fakeLocator) WaitFor(ctx context.Context, opts pipeline.VisibleOptions) error {
	if len(l.nodes) == 0 || !l.nodes[0].Visible {
		return fmt.Errorf("pipelinetest: element never became visible")
	}
	return nil
}

func (l *fakeLocator) IsVisible(ctx context.Context, opts pipeline.VisibleOptions) (bool, error) {
	if len(l.nodes) == 0 {
		return false, nil
	}
	return l.nodes[0].Visible, nil
}

func (l *fakeLocator) ScrollIntoViewIfNeeded(ctx context.Context) error { return nil }

func (l *fakeLocator) Locator(selector string) pipeline.Locator {
	if len(l.nodes) == 0 {
		return &fakeLocator{page: l.page}
	}
	return &fakeLocator{page: l.page, nodes: l.nodes[0].find(selector)}
}

func (l *fakeLocator) Nth(index int) pipeline.Locator {
	if index < 0 || index >= len(l.nodes) {
		return &fakeLocator{page: l.page}
	}
	return &fakeLocator{page: l.page, nodes: []*Node{l.nodes[index]}}
}

func (l *fakeLocator) Attribute(ctx context.Context, name string) (string, bool, error) {
	if len(l.nodes) == 0 {
		return "", false, nil
	}
	v, ok := l.nodes[0].Attrs[name]
	return v, ok, nil
}

func renderHTML(n *Node) string {
	out := "<" + n.Tag + ">"
	if n.Text != "" {
		out += n.Text
	}
	for _, c := range n.Children {
		out += renderHTML(c)
	}
	out += "</" + n.Tag + ">"
	return out
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	hl, nl := []rune(toLower(haystack)), []rune(toLower(needle))
	if len(nl) > len(hl) {
		return false
	}
	for i := 0; i+len(nl) <= len(hl); i++ {
		if string(hl[i:i+len(nl)]) == string(nl) {
			return true
		}
	}
	return false
}

func toLower(s string) string {
	r := []rune(s)
	for i, c := range r {
		if c >= 'A' && c <= 'Z' {
			r[i] = c + ('a' - 'A')
		}
	}
	return string(r)
}
