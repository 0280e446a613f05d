package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreeRecordTracksPagesAndBlocks(t *testing.T) {
	f := NewFreeRecord()
	require.False(t, f.IsPageFree("components/button"))

	f.AddFreePage("components/legacy-widget")
	f.AddFreeBlock("components/button", "Deprecated usage")

	require.True(t, f.IsPageFree("components/legacy-widget"))
	require.False(t, f.IsPageFree("components/button"))
	require.Equal(t, 1, f.PageCount())
	require.Equal(t, 1, f.BlockCount())
}

func TestFreeRecordRoundTripsThroughSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "free.json")

	f1 := NewFreeRecord()
	f1.AddFreePage("components/legacy-widget")
	f1.AddFreeBlock("components/button", "Deprecated usage")
	require.NoError(t, f1.SaveSync(path))
	require.FileExists(t, path)

	f2 := NewFreeRecord()
	require.NoError(t, f2.Load(path))
	require.True(t, f2.IsPageFree("components/legacy-widget"))
	require.Equal(t, 1, f2.BlockCount())
}
