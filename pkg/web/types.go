package web

import (
	"time"

	"github.com/threadlinehq/threadline/pkg/models"
)

// InboundMessageRequest is the carrier webhook payload for POST /webhooks/inbound.
type InboundMessageRequest struct {
	BusinessID        string         `json:"business_id"                   validate:"required"`
	From              string         `json:"from,omitempty"`
	Email             string         `json:"email,omitempty"`
	To                string         `json:"to,omitempty"`
	Body              string         `json:"body"                          validate:"required"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	ReceivedAt        *time.Time     `json:"received_at,omitempty"`
	ThreadHint        string         `json:"thread_hint,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// CreateWorkflowRequest is the body for POST /v1/workflows.
type CreateWorkflowRequest struct {
	BusinessID string                 `json:"business_id" validate:"required"`
	Name       string                 `json:"name"        validate:"required,min=3"`
	Type       models.WorkflowType    `json:"type"        validate:"required,oneof=sms email voice"`
	Status     models.WorkflowStatus  `json:"status"      validate:"omitempty,oneof=draft active archived"`
	Nodes      []*models.WorkflowNode `json:"nodes"`
	Edges      []*models.WorkflowEdge `json:"edges"`
	Config     models.WorkflowConfig  `json:"config"`
}

// MonitoringConfigRequest is the body for PUT /v1/businesses/:id/monitoring.
type MonitoringConfigRequest struct {
	AlertThresholds map[string]float64 `json:"alert_thresholds" validate:"required,min=1"`
	NotificationURL string             `json:"notification_url" validate:"omitempty,url"`
}
