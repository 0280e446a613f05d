package pathkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyResolvesRelativeHrefs(t *testing.T) {
	n, err := NewNormalizer("https://example.com/docs/")
	require.NoError(t, err)

	key, err := n.Key("components/button")
	require.NoError(t, err)
	require.Equal(t, "docs/components/button", key)
}

func TestKeyStripsFragmentAndSortsQuery(t *testing.T) {
	n, err := NewNormalizer("https://example.com/")
	require.NoError(t, err)

	key, err := n.Key("/components/button?b=2&a=1#usage")
	require.NoError(t, err)
	require.Equal(t, "components/button?a=1&b=2", key)
}

func TestBlockPathJoinsPageAndBlockName(t *testing.T) {
	require.Equal(t, "components/button/Usage", BlockPath("components/button", "Usage"))
}
