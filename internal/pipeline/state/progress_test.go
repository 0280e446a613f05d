package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgressMarkAndQuery(t *testing.T) {
	p := NewProgress(true)
	require.False(t, p.IsPageComplete("components/button"))

	p.MarkPageComplete("components/button")
	p.MarkBlockComplete("components/button/Usage")

	require.True(t, p.IsPageComplete("components/button"))
	require.True(t, p.IsBlockComplete("components/button/Usage"))
	require.False(t, p.IsBlockComplete("components/button/Other"))
	require.Equal(t, 1, p.CompletedPageCount())
}

func TestProgressDisabledDoesNotGrow(t *testing.T) {
	p := NewProgress(false)
	p.MarkPageComplete("components/button")
	require.False(t, p.IsPageComplete("components/button"))
	require.Equal(t, 0, p.CompletedPageCount())
}

func TestProgressSaveSkipsEmptyRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")

	p := NewProgress(true)
	require.NoError(t, p.Save(path))
	require.NoFileExists(t, path)

	p.MarkPageComplete("components/button")
	require.NoError(t, p.Save(path))
	require.FileExists(t, path)
}

func TestProgressRoundTripsThroughSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")

	p1 := NewProgress(true)
	p1.MarkPageComplete("components/button")
	p1.MarkBlockComplete("components/button/Usage")
	require.NoError(t, p1.SaveSync(path))

	p2 := NewProgress(true)
	require.NoError(t, p2.Load(path))
	require.True(t, p2.IsPageComplete("components/button"))
	require.True(t, p2.IsBlockComplete("components/button/Usage"))
}

func TestProgressRebuildDiscardsLoadedEntries(t *testing.T) {
	p := NewProgress(true)
	p.MarkPageComplete("components/button")
	p.Rebuild()
	require.False(t, p.IsPageComplete("components/button"))
	require.Equal(t, 0, p.CompletedPageCount())
}
