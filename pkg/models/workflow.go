package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable on inbound messages
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// WorkflowType is the channel a workflow is triggered from.
type WorkflowType string

const (
	WorkflowTypeSMS   WorkflowType = "sms"
	WorkflowTypeEmail WorkflowType = "email"
	WorkflowTypeVoice WorkflowType = "voice"
)

// Known node types. Unknown types are rejected at save time, never
// discovered mid-execution.
const (
	NodeTypeRespondAI    = "respond-ai"
	NodeTypeCreateTicket = "create-ticket"
	NodeTypeSendWebhook  = "send-webhook"
	NodeTypeSendMessage  = "send-message"
	NodeTypeBranch       = "branch"
	NodeTypeDelay        = "delay"
	NodeTypeEnd          = "end"
)

// Workflow is a directed acyclic graph of action nodes triggered by an
// inbound message. Read-only to the executor.
type Workflow struct {
	ID         string          `json:"id"`
	BusinessID string          `json:"business_id" validate:"required"`
	Name       string          `json:"name"        validate:"required,min=3"`
	Type       WorkflowType    `json:"type"        validate:"required,oneof=sms email voice"`
	Status     WorkflowStatus  `json:"status"      validate:"required,oneof=draft active archived"`
	Nodes      []*WorkflowNode `json:"nodes"`
	Edges      []*WorkflowEdge `json:"edges"`
	Config     WorkflowConfig  `json:"config"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// WorkflowNode is a node instance in a workflow graph.
type WorkflowNode struct {
	ID       string         `json:"id"   validate:"required"`
	Type     string         `json:"type" validate:"required"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// Position is display-only layout metadata, irrelevant to execution.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// WorkflowEdge connects two nodes. SourceHandle selects the outcome label the
// edge follows ("next", "success", "failure", branch case labels); an empty
// handle on a node's single outgoing edge matches any successful outcome.
type WorkflowEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// NodeByID returns the node with the given id.
func (w *Workflow) NodeByID(id string) (*WorkflowNode, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return nil, false
}

// OutgoingEdges returns the edges leaving the given node.
func (w *Workflow) OutgoingEdges(nodeID string) []*WorkflowEdge {
	var out []*WorkflowEdge

	for _, e := range w.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}

	return out
}

// IsRequired reports whether a node failure must fail the whole execution.
// Nodes are required unless their data marks them optional.
func (n *WorkflowNode) IsRequired() bool {
	optional, ok := n.Data["optional"].(bool)

	return !ok || !optional
}

// MaxRetries returns the node's configured retry budget.
func (n *WorkflowNode) MaxRetries(fallback int) int {
	if v, ok := n.Data["max_retries"].(float64); ok && v >= 0 {
		return int(v)
	}

	return fallback
}
