package tasks

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/guideline-extractor/constants"
	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
)

type staticReader struct{ text string }

func (r staticReader) Read(context.Context, string) string { return r.text }

type funcExtractor func(ctx context.Context, document, filename string, progress pipeline.ProgressFunc) (table.Table, error)

func (f funcExtractor) Extract(ctx context.Context, document, filename string, progress pipeline.ProgressFunc) (table.Table, error) {
	return f(ctx, document, filename, progress)
}

type recordingSink struct {
	mu    sync.Mutex
	saved []Snapshot
}

func (s *recordingSink) SaveTask(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// countingModel fails the test if any stage calls the model.
type countingModel struct {
	mu    sync.Mutex
	calls int
}

func (m *countingModel) ChatStream(context.Context, string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return nil, errors.New("unexpected model call")
}

func waitTerminal(t *testing.T, s *Store, id string) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = s.Get(id)
		return err == nil && snap.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return snap
}

func TestManager_CompletesTask(t *testing.T) {
	store := NewStore()
	sink := &recordingSink{}
	ext := funcExtractor(func(_ context.Context, doc, filename string, progress pipeline.ProgressFunc) (table.Table, error) {
		assert.Equal(t, "guideline text", doc)
		assert.Equal(t, "g.pdf", filename)
		progress(50, "half way")
		return table.Parse("e\tp\tv\tet\tvt\tA"), nil
	})
	m := NewManager(store, staticReader{text: "guideline text"}, ext, nil, WithResultSink(sink))
	defer m.Shutdown(context.Background())

	snap, err := m.SubmitFile("/data/g.pdf", "g.pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusPending, snap.Status)

	done := waitTerminal(t, store, snap.ID)
	assert.Equal(t, constants.TaskStatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.Result)
	assert.Equal(t, "g.pdf", done.Result.Filename)
	assert.Equal(t, 1, done.Result.Count)
	assert.Equal(t, "A", done.Result.Data[0].Level)
	assert.NotNil(t, done.EndTime)
	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestManager_FailureIsRecorded(t *testing.T) {
	store := NewStore()
	ext := funcExtractor(func(context.Context, string, string, pipeline.ProgressFunc) (table.Table, error) {
		return table.Table{}, errors.New("non-2xx status: 500")
	})
	m := NewManager(store, staticReader{text: "x"}, ext, nil)
	defer m.Shutdown(context.Background())

	snap, err := m.SubmitFile("g.pdf", "g.pdf")
	require.NoError(t, err)

	done := waitTerminal(t, store, snap.ID)
	assert.Equal(t, constants.TaskStatusFailed, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Contains(t, done.Message, "non-2xx status: 500")
	assert.Nil(t, done.Result)
}

func TestManager_PanicBecomesFailure(t *testing.T) {
	store := NewStore()
	ext := funcExtractor(func(context.Context, string, string, pipeline.ProgressFunc) (table.Table, error) {
		panic("progress observer exploded")
	})
	m := NewManager(store, staticReader{text: "x"}, ext, nil)
	defer m.Shutdown(context.Background())

	snap, err := m.SubmitFile("g.pdf", "g.pdf")
	require.NoError(t, err)
	done := waitTerminal(t, store, snap.ID)
	assert.Equal(t, constants.TaskStatusFailed, done.Status)
	assert.Contains(t, done.Message, "progress observer exploded")
}

func TestManager_EmptyDocumentCompletesWithoutModelCalls(t *testing.T) {
	model := &countingModel{}
	orch := pipeline.NewOrchestrator(model, nil, pipeline.Options{}, nil)
	store := NewStore()
	m := NewManager(store, staticReader{text: ""}, orch, nil)
	defer m.Shutdown(context.Background())

	snap, err := m.SubmitFile("empty.pdf", "empty.pdf")
	require.NoError(t, err)

	done := waitTerminal(t, store, snap.ID)
	assert.Equal(t, constants.TaskStatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, 0, done.Result.Count)
	assert.NotNil(t, done.Result.Data)
	assert.Zero(t, model.calls)
}

func TestManager_ProgressNeverDecreases(t *testing.T) {
	store := NewStore()
	release := make(chan struct{})
	var (
		mu   sync.Mutex
		seen []int
	)
	record := func(id string) {
		if s, err := store.Get(id); err == nil {
			mu.Lock()
			seen = append(seen, s.Progress)
			mu.Unlock()
		}
	}
	var id string
	ext := funcExtractor(func(_ context.Context, _, _ string, progress pipeline.ProgressFunc) (table.Table, error) {
		<-release
		for _, p := range []int{1, 5, 10, 15, 25, 30, 99, 100} {
			progress(p, "stage")
			record(id)
		}
		return table.Empty(), nil
	})
	m := NewManager(store, staticReader{text: "x"}, ext, nil)
	defer m.Shutdown(context.Background())

	snap, err := m.SubmitFile("g.pdf", "g.pdf")
	require.NoError(t, err)
	id = snap.ID
	close(release)

	done := waitTerminal(t, store, id)
	record(id)
	assert.Equal(t, 100, done.Progress)
	mu.Lock()
	defer mu.Unlock()
	assert.IsNonDecreasing(t, seen)
}

func TestManager_UploadIsRemovedAfterwards(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(tmp, []byte("text"), 0o644))

	store := NewStore()
	ext := funcExtractor(func(context.Context, string, string, pipeline.ProgressFunc) (table.Table, error) {
		return table.Empty(), nil
	})
	m := NewManager(store, staticReader{text: "text"}, ext, nil)

	snap, err := m.SubmitUpload(tmp, "guide.txt")
	require.NoError(t, err)
	waitTerminal(t, store, snap.ID)
	m.Shutdown(context.Background())

	_, statErr := os.Stat(tmp)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestManager_DeletedRunningTaskIsNotReinserted(t *testing.T) {
	store := NewStore()
	sink := &recordingSink{}
	started := make(chan struct{})
	release := make(chan struct{})
	ext := funcExtractor(func(_ context.Context, _, _ string, progress pipeline.ProgressFunc) (table.Table, error) {
		close(started)
		<-release
		progress(50, "after delete")
		return table.Parse("a\tb"), nil
	})
	m := NewManager(store, staticReader{text: "x"}, ext, nil, WithResultSink(sink))

	snap, err := m.SubmitFile("g.pdf", "g.pdf")
	require.NoError(t, err)
	<-started
	require.True(t, store.Delete(snap.ID))
	close(release)
	m.Shutdown(context.Background())

	_, err = store.Get(snap.ID)
	assert.Error(t, err)
	assert.Empty(t, store.List())
	assert.Zero(t, sink.count())
}

func TestManager_PoolRejectsWhenQueueFull(t *testing.T) {
	store := NewStore()
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	ext := funcExtractor(func(context.Context, string, string, pipeline.ProgressFunc) (table.Table, error) {
		started <- struct{}{}
		<-release
		return table.Empty(), nil
	})
	m := NewManager(store, staticReader{text: "x"}, ext, nil, WithWorkers(1), WithQueueSize(1))

	first, err := m.SubmitFile("1.pdf", "1.pdf")
	require.NoError(t, err)
	<-started // the only worker is busy

	second, err := m.SubmitFile("2.pdf", "2.pdf")
	require.NoError(t, err)

	_, err = m.SubmitFile("3.pdf", "3.pdf")
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Len(t, store.List(), 2)

	close(release)
	m.Shutdown(context.Background())

	for _, id := range []string{first.ID, second.ID} {
		s, err := store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusCompleted, s.Status)
	}

	_, err = m.SubmitFile("4.pdf", "4.pdf")
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestManager_TimeoutFailsTask(t *testing.T) {
	store := NewStore()
	ext := funcExtractor(func(ctx context.Context, _, _ string, _ pipeline.ProgressFunc) (table.Table, error) {
		<-ctx.Done()
		return table.Table{}, ctx.Err()
	})
	m := NewManager(store, staticReader{text: "x"}, ext, nil, WithProcessTimeout(20*time.Millisecond))
	defer m.Shutdown(context.Background())

	snap, err := m.SubmitFile("g.pdf", "g.pdf")
	require.NoError(t, err)
	done := waitTerminal(t, store, snap.ID)
	assert.Equal(t, constants.TaskStatusFailed, done.Status)
	assert.Contains(t, done.Message, context.DeadlineExceeded.Error())
}
