package pipeline

import (
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors forming the taxonomy in spec §7. Each is fatal at the
// boundary named in its comment; wrap with fmt.Errorf("...: %w", ErrX) to
// attach context while keeping errors.Is working.
var (
	// ErrAuthMissing — credential file missing or malformed. Fatal, abort
	// before any crawl work.
	ErrAuthMissing = errors.New("pipeline: auth credentials missing or malformed")
	// ErrAuthFormUnsupported — login form has != 2 text inputs, or
	// 0/>1 sign-in buttons.
	ErrAuthFormUnsupported = errors.New("pipeline: login form shape unsupported")
	// ErrAuthNotConfirmed — post-submit redirect away from /login|/auth was
	// not observed within timeout.
	ErrAuthNotConfirmed = errors.New("pipeline: login was not confirmed")
	// ErrCollectExists is informational: collect.json already exists, so
	// collection is skipped entirely.
	ErrCollectExists = errors.New("pipeline: collect.json already exists")
	// ErrUserAbort means the driver was torn down mid-task. Counted as
	// neither success nor failure.
	ErrUserAbort = errors.New("pipeline: user abort")
	// ErrNameExtractionFailed — BlockNameExtractor could not resolve a name
	// after retries.
	ErrNameExtractionFailed = errors.New("pipeline: block name extraction failed")
	// ErrComplexHeading — BlockNameExtractor's default strategy found a
	// heading with multiple element children and no anchor child.
	ErrComplexHeading = errors.New("pipeline: complex heading with no link child")
	// ErrFreeAmbiguous — the free-text matcher found more than one hit.
	ErrFreeAmbiguous = errors.New("pipeline: free marker matched more than once")
	// ErrBlockCountMismatch — expected vs actual block count differ and
	// ignoreMismatch is false.
	ErrBlockCountMismatch = errors.New("pipeline: block count mismatch")
	// ErrHandlerError wraps an error returned while dispatching a block to
	// its handler. Panics are not recovered.
	ErrHandlerError = errors.New("pipeline: handler error")
	// ErrNavigationTimeout wraps any Page.Goto failure in the link executor,
	// not only timeouts.
	ErrNavigationTimeout = errors.New("pipeline: navigation timeout")
	// ErrConfigUnsupportedCombination — §9: a link-collector config mixing
	// static and click-through extraction in an unsupported way.
	ErrConfigUnsupportedCombination = errors.New("pipeline: unsupported section-extraction configuration")
)

// userAbortPatterns matches driver error text that indicates the browser (or
// the test harness driving it) was torn down out from under the task,
// per §4.D and §4.F's error policy.
var userAbortPatterns = regexp.MustCompile(
	`(?i)Target page, context or browser has been closed|Test ended|Browser closed|Target closed`,
)

// classifyDriverError turns a raw driver error into ErrUserAbort when its
// message matches a known teardown signature, leaving other errors
// untouched for the caller to wrap/reclassify further.
func classifyDriverError(err error) error {
	if err == nil {
		return nil
	}
	if userAbortPatterns.MatchString(err.Error()) {
		return fmt.Errorf("%s: %w", err.Error(), ErrUserAbort)
	}
	return err
}

// IsUserAbort reports whether err (or anything it wraps) is a user-abort
// condition.
func IsUserAbort(err error) bool {
	return errors.Is(err, ErrUserAbort)
}
