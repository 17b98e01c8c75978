// Package persistence provides the data storage abstraction layer for
// messages, consent state, workflows and execution records.
package persistence

import (
	"context"
	"time"

	"github.com/threadlinehq/threadline/pkg/models"
)

// MessageRepository stores inbound and outbound messages.
type MessageRepository interface {
	SaveMessage(ctx context.Context, message *models.Message) error
	MessageByID(ctx context.Context, id string) (*models.Message, error)
	// LatestByContact returns the most recent message for the contact received
	// at or after the given cutoff, or ErrMessageNotFound.
	LatestByContact(ctx context.Context, businessID, contact string, since time.Time) (*models.Message, error)
	MessagesByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
}

// OptOutRepository stores the authoritative do-not-contact records.
type OptOutRepository interface {
	// RecordOptOut inserts an opt-out row. A duplicate for the same
	// (phone number, business) pair is a no-op, not an error.
	RecordOptOut(ctx context.Context, optOut *models.OptOut) error
	// RemoveOptOut deletes the opt-out row if present.
	RemoveOptOut(ctx context.Context, businessID, phoneNumber string) error
	OptOutByContact(ctx context.Context, businessID, phoneNumber string) (*models.OptOut, error)
}

// ConsentRepository stores opt-in history.
type ConsentRepository interface {
	SaveConsent(ctx context.Context, consent *models.Consent) error
	ConsentByContact(ctx context.Context, businessID, phoneNumber string) (*models.Consent, error)
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	// ActiveWorkflow returns the active workflow for a business and channel,
	// or ErrWorkflowNotFound.
	ActiveWorkflow(ctx context.Context, businessID string, workflowType models.WorkflowType) (*models.Workflow, error)
}

// ExecutionRepository stores workflow execution records, the audit trail
// exposed to operators.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
}

type Persistence interface {
	Messages() MessageRepository
	OptOuts() OptOutRepository
	Consents() ConsentRepository
	Workflows() WorkflowRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
