package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"catalogcrawler/internal/pipeline"
	"catalogcrawler/internal/pipeline/pathkey"
	"catalogcrawler/internal/pipeline/state"

	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]error
}

func (r *recordingProcessor) ProcessLink(ctx context.Context, logger *slog.Logger, link pipeline.CollectionLink, first bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, link.Link)
	return r.fail[link.Link]
}

func newRecorders(t *testing.T) *pipeline.Recorders {
	return &pipeline.Recorders{
		Progress:        state.NewProgress(true),
		Free:            state.NewFreeRecord(),
		Mismatch:        state.NewMismatchRecord(),
		FilenameMapping: state.NewFilenameMapping(),
		Meta:            state.NewSiteMeta("https://example.com/"),
	}
}

func TestSchedulerSkipsCompletedAndFreeLinks(t *testing.T) {
	recorders := newRecorders(t)
	recorders.Progress.MarkPageComplete("components/done")
	recorders.Free.AddFreePage("components/free")

	norm, err := pathkey.NewNormalizer("https://example.com/")
	require.NoError(t, err)

	proc := &recordingProcessor{fail: map[string]error{}}
	sched := pipeline.NewScheduler(pipeline.DefaultRuntimeConfig(), recorders, norm, proc)

	result := pipeline.CollectResult{Collections: []pipeline.CollectionLink{
		{Link: "components/done"},
		{Link: "components/free"},
		{Link: "components/button"},
	}}

	err = sched.Run(context.Background(), result)
	require.NoError(t, err)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Equal(t, []string{"components/button"}, proc.seen)

	stats := sched.Stats()
	require.EqualValues(t, 3, stats.Completed.Load())
	require.EqualValues(t, 2, stats.Skipped.Load())
	require.EqualValues(t, 0, stats.Failed.Load())
}

func TestSchedulerCountsHandlerFailuresAndUserAborts(t *testing.T) {
	recorders := newRecorders(t)
	norm, err := pathkey.NewNormalizer("https://example.com/")
	require.NoError(t, err)

	proc := &recordingProcessor{fail: map[string]error{
		"components/broken": errors.New("boom"),
		"components/closed": pipeline.ErrUserAbort,
	}}
	sched := pipeline.NewScheduler(pipeline.DefaultRuntimeConfig(), recorders, norm, proc)

	result := pipeline.CollectResult{Collections: []pipeline.CollectionLink{
		{Link: "components/broken"},
		{Link: "components/closed"},
		{Link: "components/ok"},
	}}

	err = sched.Run(context.Background(), result)
	require.NoError(t, err)

	stats := sched.Stats()
	require.EqualValues(t, 1, stats.Completed.Load())
	require.EqualValues(t, 1, stats.Failed.Load())
	require.EqualValues(t, 1, stats.UserAborts.Load())
}
