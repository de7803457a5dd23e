package registry

import (
	"sync"

	"github.com/walletd/agent/pkg/log"
)

// TaskRecord remembers which connection is waiting for a task and which nym
// the eventual completion is attributed to
type TaskRecord struct {
	Connection []byte
	Owner      string
}

// TaskRegistry maps pending task ids to the connection and nym that issued
// them. Entries are consumed exactly once when the completion event arrives.
type TaskRegistry struct {
	mu    sync.Mutex
	tasks map[string]TaskRecord
}

// NewTaskRegistry creates an empty task registry
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]TaskRecord),
	}
}

// Register records a pending task. Empty arguments indicate a protocol
// violation by the caller and panic.
func (r *TaskRegistry) Register(taskID string, connection []byte, owner string) {
	if taskID == "" || len(connection) == 0 || owner == "" {
		clog1 := log.WithComponent("registry")
		clog1.Error().
			Str("task_id", taskID).
			Str("owner", owner).
			Msg("Task registration with empty argument")
		panic("registry: task registration with empty argument")
	}

	record := TaskRecord{
		Connection: append([]byte(nil), connection...),
		Owner:      owner,
	}

	r.mu.Lock()
	r.tasks[taskID] = record
	r.mu.Unlock()

	clog2 := log.WithConnection(connection)
	clog2.Debug().
		Str("task_id", taskID).
		Str("owner", owner).
		Msg("Connection is waiting for task")
}

// TakeAndRemove atomically looks up and deletes the record for a task id.
// An unknown id is a normal condition: the completion may belong to a task
// this process never registered.
func (r *TaskRegistry) TakeAndRemove(taskID string) (TaskRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.tasks[taskID]
	if !ok {
		return TaskRecord{}, false
	}

	delete(r.tasks, taskID)

	return record, true
}

// Len returns the number of pending tasks
func (r *TaskRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tasks)
}
