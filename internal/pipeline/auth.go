package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// AuthHandler performs a site-specific login flow against ctx's primary page
// and returns once the session is authenticated. The default handler
// (NewDefaultAuthHandler) covers the common username/password case; callers
// with a more exotic flow (SSO, OAuth popups) supply their own.
type AuthHandler func(ctx context.Context, page Page) error

// AuthConfig configures the Authentication Manager of spec §4.B.
type AuthConfig struct {
	// Handler is nil when the site requires no authentication, in which
	// case ensureAuth is a no-op.
	Handler AuthHandler
	LoginURL string
	// RedirectTimeout defaults to 15s when zero (NewAuthManager). EnsureAuth
	// does not read it; NewDefaultAuthHandler takes its own timeout argument.
	RedirectTimeout time.Duration
}

// AuthManager implements §4.B: ensure the browser session presents valid
// site credentials before any crawl page is opened, persisting and
// replaying auth.json across runs so a session is authenticated once and
// the storage state carries it forward.
type AuthManager struct {
	cfg AuthConfig
}

func NewAuthManager(cfg AuthConfig) *AuthManager {
	if cfg.RedirectTimeout == 0 {
		cfg.RedirectTimeout = 15 * time.Second
	}
	return &AuthManager{cfg: cfg}
}

// EnsureAuth implements the ensureAuth() contract of §4.B.
func (a *AuthManager) EnsureAuth(ctx context.Context, browser Browser, page Page, authPath string) error {
	if a.cfg.Handler == nil {
		return nil
	}

	if data, err := os.ReadFile(authPath); err == nil {
		state, err := parseStoredAuth(data)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrAuthMissing, authPath, err)
		}
		if err := page.Context().AddCookies(ctx, state.Cookies); err != nil {
			return fmt.Errorf("auth: apply stored cookies: %w", err)
		}
		slog.InfoContext(ctx, "replayed stored auth", "path", authPath)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %v", ErrAuthMissing, authPath, err)
	}

	if err := a.cfg.Handler(ctx, page); err != nil {
		return err
	}

	state, err := page.Context().StorageState(ctx)
	if err != nil {
		return fmt.Errorf("auth: read storage state: %w", err)
	}
	if err := writeStorageState(authPath, state); err != nil {
		return fmt.Errorf("auth: persist storage state: %w", err)
	}
	slog.InfoContext(ctx, "persisted auth", "path", authPath)
	return nil
}

// parseStoredAuth accepts either of the two formats named in §4.B: a native
// storage-state {cookies, origins} document, or a plain cookie-export
// array, normalizing the latter into the driver's Cookie shape.
func parseStoredAuth(data []byte) (StorageState, error) {
	var native StorageState
	if err := json.Unmarshal(data, &native); err == nil && len(native.Cookies) > 0 {
		return native, nil
	}

	var plain []map[string]any
	if err := json.Unmarshal(data, &plain); err != nil {
		return StorageState{}, fmt.Errorf("unrecognized auth.json shape")
	}

	cookies := make([]Cookie, 0, len(plain))
	for _, entry := range plain {
		cookies = append(cookies, normalizePlainCookie(entry))
	}
	return StorageState{Cookies: cookies}, nil
}

func normalizePlainCookie(entry map[string]any) Cookie {
	c := Cookie{}
	if v, ok := entry["name"].(string); ok {
		c.Name = v
	}
	if v, ok := entry["value"].(string); ok {
		c.Value = v
	}
	if v, ok := entry["domain"].(string); ok {
		c.Domain = v
	}
	if v, ok := entry["path"].(string); ok {
		c.Path = v
	}
	if v, ok := entry["expires"].(float64); ok {
		c.Expires = v
	}
	if v, ok := entry["secure"].(bool); ok {
		c.Secure = v
	}
	if v, ok := entry["httpOnly"].(bool); ok {
		c.HTTPOnly = v
	}
	if v, ok := entry["sameSite"].(string); ok {
		c.SameSite = v
	}
	return c
}

func writeStorageState(path string, state StorageState) error {
	return atomicSaveFile(path, state)
}

// NewDefaultAuthHandler builds the auto-handler described in §4.B: read
// EMAIL/PASSWORD from envFile, navigate loginURL, fill the two detected text
// inputs, click the sign-in button, and wait for redirect away from
// /login|/auth.
func NewDefaultAuthHandler(loginURL, envFile string, redirectTimeout time.Duration) AuthHandler {
	return func(ctx context.Context, page Page) error {
		env, err := readDotEnv(envFile)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrAuthMissing, envFile, err)
		}
		email, password := env["EMAIL"], env["PASSWORD"]
		if email == "" || password == "" {
			return fmt.Errorf("%w: %s missing EMAIL or PASSWORD", ErrAuthMissing, envFile)
		}

		if err := page.Goto(ctx, loginURL, GotoOptions{WaitUntil: WaitLoad}); err != nil {
			return fmt.Errorf("auth: goto login url: %w", err)
		}

		textInputs, err := page.Locator("input[type=text], input[type=email], input:not([type])").All(ctx)
		if err != nil {
			return fmt.Errorf("auth: list text inputs: %w", err)
		}
		if len(textInputs) != 2 {
			return fmt.Errorf("%w: found %d text inputs, want 2", ErrAuthFormUnsupported, len(textInputs))
		}

		signInButtons, err := page.GetByRole("button", "sign in").All(ctx)
		if err != nil {
			return fmt.Errorf("auth: list sign-in buttons: %w", err)
		}
		if len(signInButtons) != 1 {
			return fmt.Errorf("%w: found %d sign-in buttons, want 1", ErrAuthFormUnsupported, len(signInButtons))
		}

		if err := textInputs[0].Fill(ctx, email); err != nil {
			return fmt.Errorf("auth: fill email: %w", err)
		}
		if err := textInputs[1].Fill(ctx, password); err != nil {
			return fmt.Errorf("auth: fill password: %w", err)
		}
		if err := signInButtons[0].Click(ctx); err != nil {
			return fmt.Errorf("auth: click sign in: %w", err)
		}

		return waitForRedirectAway(ctx, page, redirectTimeout)
	}
}

// readDotEnv parses a simple KEY=VALUE env file, per-site at stateDir/.env.
// A minimal scanner is enough for the two expected keys; not worth a
// dotenv dependency.
func readDotEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, scanner.Err()
}

func waitForRedirectAway(ctx context.Context, page Page, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		url := page.URL()
		if !strings.Contains(url, "/login") && !strings.Contains(url, "/auth") {
			return nil
		}
		if err := page.WaitForTimeout(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: still on %s after %s", ErrAuthNotConfirmed, page.URL(), timeout)
}
