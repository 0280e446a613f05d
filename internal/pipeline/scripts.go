package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ScriptTiming is when an injected script runs relative to navigation,
// per §4.H/§4.J.
type ScriptTiming int

const (
	BeforePageLoad ScriptTiming = iota
	AfterPageLoad
)

// InjectedScript names a script file under a site's scripts/ directory and
// an explicit timing. Timing is optional: when ExplicitTiming is nil,
// loadScript falls back to the script's own @run-at header, and without one
// to the default timing of the injecting call.
type InjectedScript struct {
	Filename     string
	ExplicitTiming *ScriptTiming
}

// ScriptInjector implements §4.H/§4.J: load per-site user scripts and a
// user-script API shim, and inject them before/after navigation.
type ScriptInjector struct {
	scriptsDir string
	shim       string
}

// NewScriptInjector constructs an injector rooted at scriptsDir, loading the
// static user-script API shim once at startup (§9's re-architecture note:
// "keep the shim as a static resource loaded at startup, not generated per
// injection").
func NewScriptInjector(scriptsDir string) *ScriptInjector {
	return &ScriptInjector{scriptsDir: scriptsDir, shim: userScriptShim}
}

var userScriptHeader = regexp.MustCompile(`//\s*==UserScript==`)
var runAtDirective = regexp.MustCompile(`//\s*@run-at\s+(\S+)`)

// runAtToTiming maps a @run-at directive value to a ScriptTiming, per
// §4.H: document-start -> beforePageLoad, document-end|document-idle ->
// afterPageLoad.
func runAtToTiming(value string) (ScriptTiming, bool) {
	switch value {
	case "document-start":
		return BeforePageLoad, true
	case "document-end", "document-idle":
		return AfterPageLoad, true
	default:
		return 0, false
	}
}

// loadScript reads filename and determines whether it is a user script
// requiring the shim, plus its effective timing (explicit config takes
// precedence over @run-at, which takes precedence over the caller's
// default).
func (s *ScriptInjector) loadScript(spec InjectedScript, fallback ScriptTiming) (content string, timing ScriptTiming, isUserScript bool, err error) {
	path := filepath.Join(s.scriptsDir, spec.Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, false, fmt.Errorf("scripts: read %s: %w", path, err)
	}
	content = string(data)
	isUserScript = userScriptHeader.MatchString(content)

	timing = fallback
	if m := runAtDirective.FindStringSubmatch(content); m != nil {
		if t, ok := runAtToTiming(m[1]); ok {
			timing = t
		}
	}
	if spec.ExplicitTiming != nil {
		timing = *spec.ExplicitTiming
	}
	return content, timing, isUserScript, nil
}

// InjectBeforeLoad injects every script in specs whose effective timing is
// BeforePageLoad via the driver's pre-navigation hook, prefixing the shim
// when any of them is a user script.
func (s *ScriptInjector) InjectBeforeLoad(ctx context.Context, page Page, specs []InjectedScript) error {
	var bodies []string
	needsShim := false

	for _, spec := range specs {
		content, timing, isUserScript, err := s.loadScript(spec, BeforePageLoad)
		if err != nil {
			return err
		}
		if timing != BeforePageLoad {
			continue
		}
		if isUserScript {
			needsShim = true
		}
		bodies = append(bodies, content)
	}
	if len(bodies) == 0 {
		return nil
	}

	script := strings.Join(bodies, "\n;\n")
	if needsShim {
		script = s.shim + "\n;\n" + script
	}
	return page.AddInitScript(ctx, script)
}

// InjectAfterLoad evaluates every script in specs whose effective timing is
// AfterPageLoad in-page, in order, prefixing the shim when needed.
func (s *ScriptInjector) InjectAfterLoad(ctx context.Context, page Page, specs []InjectedScript) error {
	for _, spec := range specs {
		content, timing, isUserScript, err := s.loadScript(spec, AfterPageLoad)
		if err != nil {
			return err
		}
		if timing != AfterPageLoad {
			continue
		}
		if isUserScript {
			if _, err := page.Evaluate(ctx, s.shim, nil); err != nil {
				return fmt.Errorf("scripts: inject shim: %w", err)
			}
		}
		if _, err := page.Evaluate(ctx, content, nil); err != nil {
			return fmt.Errorf("scripts: evaluate %s: %w", spec.Filename, err)
		}
	}
	return nil
}

// userScriptShim provides GM_xmlhttpRequest (via fetch), GM_{get,set,
// delete,list}Value (via localStorage) and GM_info, per §4.H/GLOSSARY's
// "User-script" entry.
const userScriptShim = `
(function(){
  if (window.GM_info) return;
  window.GM_info = { script: { name: "injected", version: "1.0" } };
  window.GM_xmlhttpRequest = function(opts) {
    return fetch(opts.url, { method: opts.method || "GET", headers: opts.headers, body: opts.data })
      .then(function(res) { return res.text().then(function(text) {
        var response = { responseText: text, status: res.status, finalUrl: res.url };
        if (opts.onload) opts.onload(response);
        return response;
      }); })
      .catch(function(err) { if (opts.onerror) opts.onerror(err); throw err; });
  };
  function gmKey(k) { return "GM_" + k; }
  window.GM_setValue = function(k, v) { localStorage.setItem(gmKey(k), JSON.stringify(v)); };
  window.GM_getValue = function(k, def) {
    var raw = localStorage.getItem(gmKey(k));
    if (raw === null) return def;
    try { return JSON.parse(raw); } catch (e) { return def; }
  };
  window.GM_deleteValue = function(k) { localStorage.removeItem(gmKey(k)); };
  window.GM_listValues = function() {
    var out = [];
    for (var i = 0; i < localStorage.length; i++) {
      var key = localStorage.key(i);
      if (key && key.indexOf("GM_") === 0) out.push(key.slice(3));
    }
    return out;
  };
})();
`
