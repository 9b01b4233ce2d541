package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
)

// Extractor turns document text into a knowledge table.
type Extractor interface {
	Extract(ctx context.Context, document, filename string, progress pipeline.ProgressFunc) (table.Table, error)
}

// DocumentReader turns a file into text, returning "" when it cannot.
type DocumentReader interface {
	Read(ctx context.Context, path string) string
}

// ResultSink receives every finished task (for example an archive).
type ResultSink interface {
	SaveTask(ctx context.Context, snap Snapshot) error
}

var (
	ErrQueueFull    = errors.New("task queue is full")
	ErrShuttingDown = errors.New("task manager is shutting down")
)

// Job is one submitted document.
type Job struct {
	TaskID      string
	Path        string
	Filename    string
	Temporary   bool // remove Path when the task ends
	SubmittedAt time.Time
}

// Manager runs submitted documents through the reader and the extractor and records the
// outcome in the Store. With zero workers every task gets its own goroutine; otherwise a
// fixed pool drains a bounded queue.
type Manager struct {
	store     *Store
	reader    DocumentReader
	extractor Extractor
	sink      ResultSink
	logger    *slog.Logger
	workers   int
	queueSize int
	timeout   time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Manager)

// WithWorkers sets the pool size; 0 keeps one goroutine per task.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithProcessTimeout bounds one task end to end; 0 means no limit.
func WithProcessTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithResultSink(s ResultSink) Option {
	return func(m *Manager) {
		m.sink = s
	}
}

func NewManager(store *Store, reader DocumentReader, extractor Extractor, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:     store,
		reader:    reader,
		extractor: extractor,
		logger:    logger,
		queueSize: 256,
	}
	for _, o := range opts {
		o(m)
	}
	m.start()
	return m
}

// Store exposes the registry the manager writes to.
func (m *Manager) Store() *Store { return m.store }

func (m *Manager) start() {
	m.once.Do(func() {
		if m.workers == 0 {
			return
		}
		m.ch = make(chan Job, m.queueSize)
		for i := 0; i < m.workers; i++ {
			m.wg.Add(1)
			go func(workerID int) {
				defer m.wg.Done()
				m.logger.Info("tasks.worker.started", "worker_id", workerID)
				for job := range m.ch {
					m.process(job)
				}
				m.logger.Info("tasks.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// SubmitFile queues an existing file; the file is left in place.
func (m *Manager) SubmitFile(path, filename string) (Snapshot, error) {
	return m.submit(Job{Path: path, Filename: filename})
}

// SubmitUpload queues a temporary copy of an upload; the copy is removed when the task ends.
func (m *Manager) SubmitUpload(tmpPath, filename string) (Snapshot, error) {
	return m.submit(Job{Path: tmpPath, Filename: filename, Temporary: true})
}

// submit never blocks: it either hands the job off or fails immediately.
func (m *Manager) submit(job Job) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		m.logger.Warn("tasks.submit.rejected", "filename", job.Filename, "reason", "shutting down")
		return Snapshot{}, ErrShuttingDown
	}

	snap := m.store.Create(job.Filename)
	job.TaskID = snap.ID
	job.SubmittedAt = snap.Started

	if m.workers == 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.process(job)
		}()
		m.logger.Info("tasks.submitted", "task_id", job.TaskID, "filename", job.Filename)
		return snap, nil
	}

	select {
	case m.ch <- job:
		m.logger.Info("tasks.queued", "task_id", job.TaskID, "filename", job.Filename, "queued", len(m.ch))
		return snap, nil
	default:
		m.store.Delete(job.TaskID)
		m.logger.Warn("tasks.queue_full", "filename", job.Filename, "capacity", cap(m.ch))
		return Snapshot{}, ErrQueueFull
	}
}

// process runs one job and always leaves the task terminal (unless it was deleted meanwhile).
func (m *Manager) process(job Job) {
	log := m.logger.With("task_id", job.TaskID, "filename", job.Filename)
	ctx := common.WithTaskID(context.Background(), job.TaskID)
	ctx = common.WithLogger(ctx, log)
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	if job.Temporary {
		defer func() {
			if err := os.Remove(job.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("tasks.cleanup_failed", "path", job.Path, "error", err)
			}
		}()
	}

	res, err := m.execute(ctx, job)
	if err != nil {
		log.Error("tasks.failed", "error", err, "elapsed_ms", time.Since(job.SubmittedAt).Milliseconds())
		snap, ok := m.store.Fail(job.TaskID, fmt.Sprintf("error while processing %s: %v", job.Filename, err))
		m.archive(ctx, log, snap, ok)
		return
	}

	snap, ok := m.store.Complete(job.TaskID, res, fmt.Sprintf("extracted %d records from %s", res.Count, job.Filename))
	log.Info("tasks.completed", "records", res.Count, "elapsed_ms", time.Since(job.SubmittedAt).Milliseconds())
	m.archive(ctx, log, snap, ok)
}

func (m *Manager) execute(ctx context.Context, job Job) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	id := job.TaskID

	m.store.Progress(id, 5, "reading document")
	text := m.reader.Read(ctx, job.Path)
	m.store.Progress(id, 10, "document text ready, calling the model")
	m.store.MarkProcessing(id)

	tbl, err := m.extractor.Extract(ctx, text, job.Filename, func(percent int, message string) {
		m.store.Progress(id, percent, message)
	})
	if err != nil {
		return Result{}, err
	}
	m.store.Progress(id, 90, "model finished, organising results")

	return Result{Filename: job.Filename, Data: tbl.Records, Count: tbl.Len()}, nil
}

func (m *Manager) archive(ctx context.Context, log *slog.Logger, snap Snapshot, ok bool) {
	if !ok {
		log.Info("tasks.result_dropped", "reason", "task deleted")
		return
	}
	if m.sink == nil {
		return
	}
	if err := m.sink.SaveTask(context.WithoutCancel(ctx), snap); err != nil {
		log.Error("tasks.archive_failed", "error", err)
	}
}

// Shutdown stops accepting work and waits for running tasks until ctx ends.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.ch != nil {
		close(m.ch)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); m.wg.Wait() }()

	select {
	case <-ctx.Done():
		m.logger.Warn("tasks.shutdown.interrupted")
	case <-done:
		m.logger.Info("tasks.shutdown.complete")
	}
}
