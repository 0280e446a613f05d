package commands

import (
	"errors"
	"os"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/lib/configutil"
)

// RuntimeOverrides is an optional per-site config.json5 (merged with a
// config.local.json5 per configutil's base/local convention) letting an
// operator tune a registered site's RuntimeConfig without recompiling the
// CLI. A zero-value field leaves the SiteFactory's default untouched.
type RuntimeOverrides struct {
	MaxConcurrency int               `json:"maxConcurrency"`
	LogLevel       pipeline.LogLevel `json:"logLevel"`
	PauseOnError   *bool             `json:"pauseOnError"`
	IgnoreMismatch *bool             `json:"ignoreMismatch"`
	ProgressEnable *bool             `json:"progressEnable"`
}

// applyRuntimeOverrides reads "<site>.config.json5" (and its .local.json5
// sibling) from the working directory and layers it onto cfg.Runtime.
// A missing file is not an error: sites that don't need tuning simply run
// on their factory's defaults.
func applyRuntimeOverrides(siteName string, cfg *pipeline.SiteConfig) error {
	overrides, err := configutil.ReadConfig[RuntimeOverrides](siteName + ".config.json5")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if overrides.MaxConcurrency > 0 {
		cfg.Runtime.MaxConcurrency = overrides.MaxConcurrency
	}
	if overrides.LogLevel != "" {
		cfg.Runtime.LogLevel = overrides.LogLevel
	}
	if overrides.PauseOnError != nil {
		cfg.Runtime.PauseOnError = *overrides.PauseOnError
	}
	if overrides.IgnoreMismatch != nil {
		cfg.Runtime.IgnoreMismatch = *overrides.IgnoreMismatch
	}
	if overrides.ProgressEnable != nil {
		cfg.Runtime.Progress.Enable = *overrides.ProgressEnable
	}
	return nil
}
