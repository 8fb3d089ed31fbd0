package models

import (
	"encoding/json"
	"time"
)

// TaskState is the lifecycle state of an asynchronous generation task.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
)

// Terminal reports whether no further transitions will happen.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// GenerationTask tracks a background generation run.
type GenerationTask struct {
	ID          string          `json:"id"`
	State       TaskState       `json:"state"`
	Current     int             `json:"current"`
	Total       int             `json:"total"`
	Message     string          `json:"message,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	RequestedBy string          `json:"requested_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
