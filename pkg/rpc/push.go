package rpc

import (
	"encoding/json"
	"fmt"
)

// Wire versions for push payloads
const (
	PushVersion         = 2
	TaskCompleteVersion = 1
)

// PushType identifies the kind of push notification
type PushType string

const (
	PushTask PushType = "TASK"
)

// TaskComplete reports the final result of an asynchronously completed task
type TaskComplete struct {
	Version uint32 `json:"version"`
	ID      string `json:"id"`
	Result  bool   `json:"result"`
}

// Push is the payload of an unsolicited notification delivered to a client
// outside the request/reply cycle. ID names the nym the notification is
// attributed to.
type Push struct {
	Version      uint32        `json:"version"`
	Type         PushType      `json:"type"`
	ID           string        `json:"id"`
	TaskComplete *TaskComplete `json:"taskcomplete,omitempty"`
}

// NewTaskPush builds a task-completion push for the given nym
func NewTaskPush(nymID, taskID string, result bool) *Push {
	return &Push{
		Version: PushVersion,
		Type:    PushTask,
		ID:      nymID,
		TaskComplete: &TaskComplete{
			Version: TaskCompleteVersion,
			ID:      taskID,
			Result:  result,
		},
	}
}

// EncodePush serializes a push payload for the wire
func EncodePush(push *Push) ([]byte, error) {
	data, err := json.Marshal(push)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push: %w", err)
	}

	return data, nil
}

// DecodePush deserializes a wire push payload
func DecodePush(data []byte) (*Push, error) {
	var push Push
	if err := json.Unmarshal(data, &push); err != nil {
		return nil, fmt.Errorf("failed to decode push: %w", err)
	}

	return &push, nil
}
