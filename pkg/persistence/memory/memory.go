// Package memory provides an in-memory persistence implementation used by
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence"
)

type Persistence struct {
	mu         sync.RWMutex
	messages   map[string]*models.Message
	optOuts    map[string]*models.OptOut  // keyed by businessID:phone
	consents   map[string]*models.Consent // keyed by businessID:phone
	workflows  map[string]*models.Workflow
	executions map[string]*models.WorkflowExecution
}

func NewPersistence() *Persistence {
	return &Persistence{
		messages:   make(map[string]*models.Message),
		optOuts:    make(map[string]*models.OptOut),
		consents:   make(map[string]*models.Consent),
		workflows:  make(map[string]*models.Workflow),
		executions: make(map[string]*models.WorkflowExecution),
	}
}

func contactKey(businessID, contact string) string {
	return businessID + ":" + contact
}

func (p *Persistence) Messages() persistence.MessageRepository     { return (*messageRepo)(p) }
func (p *Persistence) OptOuts() persistence.OptOutRepository       { return (*optOutRepo)(p) }
func (p *Persistence) Consents() persistence.ConsentRepository     { return (*consentRepo)(p) }
func (p *Persistence) Workflows() persistence.WorkflowRepository   { return (*workflowRepo)(p) }
func (p *Persistence) Executions() persistence.ExecutionRepository { return (*executionRepo)(p) }

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }
func (p *Persistence) Close(_ context.Context) error       { return nil }

type messageRepo Persistence

func (r *messageRepo) SaveMessage(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *message
	r.messages[message.ID] = &stored

	return nil
}

func (r *messageRepo) MessageByID(_ context.Context, id string) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	message, ok := r.messages[id]
	if !ok {
		return nil, persistence.ErrMessageNotFound
	}

	copied := *message

	return &copied, nil
}

func (r *messageRepo) LatestByContact(_ context.Context, businessID, contact string, since time.Time) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.Message

	for _, m := range r.messages {
		if m.BusinessID != businessID || m.Contact() != contact {
			continue
		}

		if m.ReceivedAt.Before(since) {
			continue
		}

		if latest == nil || m.ReceivedAt.After(latest.ReceivedAt) {
			latest = m
		}
	}

	if latest == nil {
		return nil, persistence.ErrMessageNotFound
	}

	copied := *latest

	return &copied, nil
}

func (r *messageRepo) MessagesByConversation(_ context.Context, conversationID string) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Message

	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			copied := *m
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })

	return out, nil
}

type optOutRepo Persistence

func (r *optOutRepo) RecordOptOut(_ context.Context, optOut *models.OptOut) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := contactKey(optOut.BusinessID, optOut.PhoneNumber)
	if _, exists := r.optOuts[key]; exists {
		// Insert-or-ignore semantics: duplicate opt-out requests are no-ops.
		return nil
	}

	stored := *optOut
	r.optOuts[key] = &stored

	return nil
}

func (r *optOutRepo) RemoveOptOut(_ context.Context, businessID, phoneNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.optOuts, contactKey(businessID, phoneNumber))

	return nil
}

func (r *optOutRepo) OptOutByContact(_ context.Context, businessID, phoneNumber string) (*models.OptOut, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	optOut, ok := r.optOuts[contactKey(businessID, phoneNumber)]
	if !ok {
		return nil, persistence.ErrOptOutNotFound
	}

	copied := *optOut

	return &copied, nil
}

type consentRepo Persistence

func (r *consentRepo) SaveConsent(_ context.Context, consent *models.Consent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *consent
	r.consents[contactKey(consent.BusinessID, consent.PhoneNumber)] = &stored

	return nil
}

func (r *consentRepo) ConsentByContact(_ context.Context, businessID, phoneNumber string) (*models.Consent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	consent, ok := r.consents[contactKey(businessID, phoneNumber)]
	if !ok {
		return nil, persistence.ErrConsentNotFound
	}

	copied := *consent

	return &copied, nil
}

type workflowRepo Persistence

func (r *workflowRepo) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *workflow
	r.workflows[workflow.ID] = &stored

	return nil
}

func (r *workflowRepo) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	copied := *workflow

	return &copied, nil
}

func (r *workflowRepo) ActiveWorkflow(_ context.Context, businessID string, workflowType models.WorkflowType) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.workflows {
		if w.BusinessID == businessID && w.Type == workflowType && w.Status == models.WorkflowStatusActive {
			copied := *w

			return &copied, nil
		}
	}

	return nil, persistence.ErrWorkflowNotFound
}

type executionRepo Persistence

func (r *executionRepo) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *execution
	stored.NodeExecutions = make(map[string]*models.NodeExecution, len(execution.NodeExecutions))

	for id, ne := range execution.NodeExecutions {
		copied := *ne
		stored.NodeExecutions[id] = &copied
	}

	r.executions[execution.ID] = &stored

	return nil
}

func (r *executionRepo) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution, ok := r.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	copied := *execution
	copied.NodeExecutions = make(map[string]*models.NodeExecution, len(execution.NodeExecutions))

	for nodeID, ne := range execution.NodeExecutions {
		nodeCopy := *ne
		copied.NodeExecutions[nodeID] = &nodeCopy
	}

	return &copied, nil
}

func (r *executionRepo) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.WorkflowExecution

	for _, e := range r.executions {
		if e.WorkflowID == workflowID {
			copied := *e
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })

	return out, nil
}
