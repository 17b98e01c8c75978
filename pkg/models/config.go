package models

// WorkflowConfig carries the typed integration settings for a workflow. It is
// validated at save time; handlers receive the already-validated structs and
// never re-parse raw config blobs.
type WorkflowConfig struct {
	AI         AIConfig         `json:"ai"`
	Messaging  MessagingConfig  `json:"messaging"`
	Ticketing  TicketingConfig  `json:"ticketing"`
	Webhook    WebhookConfig    `json:"webhook"`
	Monitoring MonitoringConfig `json:"monitoring"`
}

// AIConfig configures the AI-completion collaborator.
type AIConfig struct {
	Model           string  `json:"model,omitempty"`
	Tone            string  `json:"tone,omitempty"`
	BusinessContext string  `json:"business_context,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"   validate:"omitempty,min=1"`
	Temperature     float64 `json:"temperature,omitempty"  validate:"omitempty,min=0,max=2"`
}

// MessagingConfig configures outbound delivery. When InlineReply is set the
// reply is returned to the caller as a document instead of being sent through
// the messaging collaborator.
type MessagingConfig struct {
	FromNumber  string `json:"from_number,omitempty"`
	InlineReply bool   `json:"inline_reply,omitempty"`
}

// TicketingConfig configures the ticketing collaborator.
type TicketingConfig struct {
	Provider   string `json:"provider,omitempty"`
	ProjectKey string `json:"project_key,omitempty"`
}

// WebhookConfig configures outbound webhook calls.
type WebhookConfig struct {
	Headers map[string]string `json:"headers,omitempty"`
	Events  []string          `json:"events,omitempty"`
}

// MonitoringConfig holds per-business alert thresholds and the notification
// sink alerts are dispatched to.
type MonitoringConfig struct {
	AlertThresholds map[string]float64 `json:"alert_thresholds,omitempty"`
	NotificationURL string             `json:"notification_url,omitempty" validate:"omitempty,url"`
}
