// Package tasks tracks extraction tasks in memory and runs them in the background.
package tasks

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/guideline-extractor/constants"
	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
)

// TimeLayout is how start and end times are rendered to callers.
const TimeLayout = "2006-01-02 15:04:05"

// Result is the payload of a completed task.
type Result struct {
	Filename string         `json:"filename"`
	Data     []table.Record `json:"data"`
	Count    int            `json:"count"`
}

// Snapshot is a point-in-time copy of a task, safe to hand to readers.
type Snapshot struct {
	ID        string               `json:"task_id"`
	Tag       string               `json:"tag"`
	Status    constants.TaskStatus `json:"status"`
	Progress  int                  `json:"progress"`
	Message   string               `json:"message"`
	Result    *Result              `json:"result"`
	StartTime string               `json:"start_time"`
	EndTime   *string              `json:"end_time"`
	Duration  float64              `json:"duration"` // seconds; live while running

	Started time.Time `json:"-"`
	Ended   time.Time `json:"-"`
}

type entry struct {
	id       string
	tag      string
	status   constants.TaskStatus
	progress int
	message  string
	result   *Result
	started  time.Time
	ended    time.Time
}

// Store is the process-wide task registry. Entries never expire; they leave only via Delete.
// Writes addressed to a missing id are dropped, so a deleted task is never re-inserted.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*entry
	order []string
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]*entry), now: time.Now}
}

// Create registers a pending task tagged with tag (usually the file name).
func (s *Store) Create(tag string) Snapshot {
	e := &entry{
		id:      uuid.NewString(),
		tag:     tag,
		status:  constants.TaskStatusPending,
		message: "task created",
		started: s.now(),
	}
	s.mu.Lock()
	s.tasks[e.id] = e
	s.order = append(s.order, e.id)
	snap := s.snapshot(e, true)
	s.mu.Unlock()
	return snap
}

// Get returns the task or an error wrapping common.ErrNotFound.
func (s *Store) Get(id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tasks[id]
	if !ok {
		return Snapshot{}, common.NewAppError("TASK_NOT_FOUND", "task "+id, common.ErrNotFound)
	}
	return s.snapshot(e, true), nil
}

// List returns every task in submission order, without result payloads.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snapshot(s.tasks[id], false))
	}
	return out
}

// Delete removes the task. It does not stop a running task.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Progress records a progress update. Percent is clamped to [0,100] and never moves backwards;
// the message always replaces the previous one. Terminal tasks ignore updates.
func (s *Store) Progress(id string, percent int, message string) bool {
	return s.update(id, func(e *entry) {
		percent = max(0, min(percent, 100))
		if percent > e.progress {
			e.progress = percent
		}
		e.message = message
	})
}

// MarkProcessing moves a pending task to processing.
func (s *Store) MarkProcessing(id string) bool {
	return s.update(id, func(e *entry) {
		e.status = constants.TaskStatusProcessing
	})
}

// Complete moves the task to completed with its result, at 100%.
func (s *Store) Complete(id string, res Result, message string) (Snapshot, bool) {
	return s.finish(id, constants.TaskStatusCompleted, &res, message)
}

// Fail moves the task to failed, at 100%.
func (s *Store) Fail(id, message string) (Snapshot, bool) {
	return s.finish(id, constants.TaskStatusFailed, nil, message)
}

func (s *Store) finish(id string, status constants.TaskStatus, res *Result, message string) (Snapshot, bool) {
	var snap Snapshot
	ok := s.update(id, func(e *entry) {
		e.status = status
		e.progress = 100
		e.message = message
		e.result = res
		e.ended = s.now()
		snap = s.snapshot(e, true)
	})
	return snap, ok
}

// update applies fn under the write lock. Missing and terminal tasks are left alone.
func (s *Store) update(id string, fn func(e *entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[id]
	if !ok || e.status.Terminal() {
		return false
	}
	fn(e)
	return true
}

// snapshot must be called with the lock held.
func (s *Store) snapshot(e *entry, withResult bool) Snapshot {
	snap := Snapshot{
		ID:        e.id,
		Tag:       e.tag,
		Status:    e.status,
		Progress:  e.progress,
		Message:   e.message,
		StartTime: e.started.Format(TimeLayout),
		Started:   e.started,
		Ended:     e.ended,
	}
	end := s.now()
	if !e.ended.IsZero() {
		end = e.ended
		formatted := e.ended.Format(TimeLayout)
		snap.EndTime = &formatted
	}
	snap.Duration = math.Round(end.Sub(e.started).Seconds()*1000) / 1000
	if withResult && e.result != nil {
		r := *e.result
		snap.Result = &r
	}
	return snap
}
