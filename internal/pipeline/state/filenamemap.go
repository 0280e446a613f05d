package state

import (
	"regexp"
	"strings"
	"sync"
)

// illegalFilenameChars matches characters unsafe across common filesystems;
// everything else (including path separators inside a declared sub-path
// name such as "sub/dir/file.tsx") is left untouched.
var illegalFilenameChars = regexp.MustCompile(`[<>:"|?*\x00-\x1f]`)

// Sanitize maps a requested filename to a filesystem-safe filename. It is
// idempotent: Sanitize(Sanitize(x)) == Sanitize(x), satisfying the
// round-trip law in spec §8.
func Sanitize(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		p = illegalFilenameChars.ReplaceAllString(p, "_")
		p = strings.TrimRight(p, ". ")
		if p == "" {
			p = "_"
		}
		parts[i] = p
	}
	return strings.Join(parts, "/")
}

// FilenameMapping is the one-way requested-filename -> sanitized-filename
// record of spec §3, keyed by block path.
type FilenameMapping struct {
	mu  sync.RWMutex
	m   map[string]string
}

func NewFilenameMapping() *FilenameMapping {
	return &FilenameMapping{m: make(map[string]string)}
}

func (f *FilenameMapping) Load(path string) error {
	var m map[string]string
	found, err := loadJSON(path, &m)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m = m
	return nil
}

// Resolve returns the sanitized filename for blockPath/requestedName,
// reusing a previously-recorded mapping if one exists so the same logical
// block always resolves to the same file, even across runs where the
// sanitizer's rules might otherwise have produced a different collision
// resolution.
func (f *FilenameMapping) Resolve(blockPath, requestedName string) string {
	key := blockPath + "|" + requestedName

	f.mu.RLock()
	if existing, ok := f.m[key]; ok {
		f.mu.RUnlock()
		return existing
	}
	f.mu.RUnlock()

	sanitized := Sanitize(requestedName)

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.m[key]; ok {
		return existing
	}
	f.m[key] = sanitized
	return sanitized
}

func (f *FilenameMapping) snapshot() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.m))
	for k, v := range f.m {
		out[k] = v
	}
	return out
}

func (f *FilenameMapping) Save(path string) error {
	m := f.snapshot()
	if len(m) == 0 {
		return nil
	}
	return atomicSaveJSON(path, m)
}

func (f *FilenameMapping) SaveSync(path string) error {
	return f.Save(path)
}
