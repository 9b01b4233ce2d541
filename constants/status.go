package constants

// TaskStatus is the lifecycle state of an extraction task.
type TaskStatus string

// Stable values (these exact strings are returned to API callers).
const (
	TaskStatusPending    TaskStatus = "pending"    // submitted, text extraction not finished
	TaskStatusProcessing TaskStatus = "processing" // pipeline running
	TaskStatusCompleted  TaskStatus = "completed"  // terminal success
	TaskStatusFailed     TaskStatus = "failed"     // terminal failure
)

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}
