package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeIsIdempotent(t *testing.T) {
	cases := []string{
		`weird<name>.tsx`,
		`trailing. `,
		`sub/dir/file.tsx`,
		``,
		`normal-name.ts`,
	}
	for _, c := range cases {
		once := Sanitize(c)
		twice := Sanitize(once)
		require.Equal(t, once, twice, "Sanitize not idempotent for %q", c)
	}
}

func TestSanitizeReplacesIllegalCharsAndPreservesSeparators(t *testing.T) {
	require.Equal(t, "a_b_c.tsx", Sanitize(`a<b>c.tsx`))
	require.Equal(t, "sub/dir/file.tsx", Sanitize("sub/dir/file.tsx"))
}

func TestFilenameMappingResolveIsStableAcrossCalls(t *testing.T) {
	m := NewFilenameMapping()
	first := m.Resolve("components/button", "example.tsx")
	second := m.Resolve("components/button", "example.tsx")
	require.Equal(t, first, second)
}

func TestFilenameMappingResolvesSameNameUnderDifferentBlockPaths(t *testing.T) {
	m := NewFilenameMapping()
	a := m.Resolve("components/button", "example.tsx")
	b := m.Resolve("components/alert", "example.tsx")
	require.Equal(t, a, b) // same sanitized name is fine, they're under different block paths
}
