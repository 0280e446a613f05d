// Package state implements the durable, atomically-persisted records of
// spec §4.I: Progress, FreeRecord, MismatchRecord, FilenameMapping and
// SiteMeta. Every record follows the same shape — initialize() (load or
// start empty), mutating accessor methods guarded by an internal mutex, and
// save()/saveSync() that write through atomicSaveJSON.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	saveRetries = 3
	saveBackoff = 100 * time.Millisecond
)

// atomicSaveJSON marshals v and writes it to path via a temp file + fsync +
// rename, retrying on failure, per §4.I. Write-temp, fsync, rename-over-
// target avoids ever leaving a truncated or partially written state file
// behind a crash or a killed process.
func atomicSaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}

	tmp := path + ".tmp"

	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(saveBackoff)
		}
		lastErr = writeAndRename(tmp, path, data)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("atomic save %s: %w", path, lastErr)
}

func writeAndRename(tmp, target string, data []byte) error {
	fh, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer fh.Close()

	if _, err := fh.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := fh.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// loadJSON loads path into v, returning (false, nil) when the file does not
// exist so callers can initialize an empty record instead of failing.
func loadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return true, nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
