package models

import "time"

// ExecutionStatus defines the possible states of a workflow execution and of
// each node execution within it.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusRetrying  ExecutionStatus = "retrying"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// WorkflowExecution is the durable record of one workflow run. It is created
// at trigger time, mutated only by the executor and terminal once completed
// or failed.
type WorkflowExecution struct {
	ID             string                    `json:"id"`
	WorkflowID     string                    `json:"workflow_id"`
	BusinessID     string                    `json:"business_id"`
	Status         ExecutionStatus           `json:"status"`
	StartTime      time.Time                 `json:"start_time"`
	EndTime        *time.Time                `json:"end_time,omitempty"`
	InputData      *Message                  `json:"input_data,omitempty"`
	Variables      map[string]any            `json:"variables"`
	NodeExecutions map[string]*NodeExecution `json:"node_executions"`
	Error          string                    `json:"error,omitempty"`
}

// NodeExecution records one node's attempts within a single workflow run.
// Updated in place on each retry, never deleted.
type NodeExecution struct {
	NodeID     string          `json:"node_id"`
	Status     ExecutionStatus `json:"status"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    *time.Time      `json:"end_time,omitempty"`
	Output     map[string]any  `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	RetryCount int             `json:"retry_count"`
}
