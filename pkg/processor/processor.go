// Package processor runs the inbound message pipeline: per-contact
// serialization, consent keyword handling, conversation threading, workflow
// execution and outcome recording.
package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/threadlinehq/threadline/pkg/consent"
	"github.com/threadlinehq/threadline/pkg/conversation"
	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/monitoring"
	"github.com/threadlinehq/threadline/pkg/persistence"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/workflow"
)

// Pipeline outcomes.
const (
	OutcomeExecuted   = "executed"
	OutcomeOptedOut   = "opted_out"
	OutcomeOptedIn    = "opted_in"
	OutcomeSuppressed = "suppressed"
	OutcomeNoWorkflow = "no_workflow"
)

// ProcessResult describes what the pipeline did with a message. ReplyBody is
// filled when a send-message node produced an inline reply; it is best-effort
// and may be present even when the execution later failed.
type ProcessResult struct {
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
	ReplyBody   string `json:"reply_body,omitempty"`
}

type Processor struct {
	guard     *consent.Guard
	threader  *conversation.Threader
	workflows persistence.WorkflowRepository
	executor  *workflow.Executor
	monitor   *monitoring.Monitor
	locker    protocol.Locker
	logger    *slog.Logger
}

func NewProcessor(
	guard *consent.Guard,
	threader *conversation.Threader,
	workflows persistence.WorkflowRepository,
	executor *workflow.Executor,
	monitor *monitoring.Monitor,
	locker protocol.Locker,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		guard:     guard,
		threader:  threader,
		workflows: workflows,
		executor:  executor,
		monitor:   monitor,
		locker:    locker,
		logger:    logger.With("module", "processor"),
	}
}

// Process runs one inbound message through the pipeline. The whole pipeline
// holds the per-(business, contact) lock so messages from the same contact
// are handled strictly one at a time.
func (p *Processor) Process(ctx context.Context, message *models.Message, threadHint string) (*ProcessResult, error) {
	if message.ID == "" || message.BusinessID == "" || message.Contact() == "" {
		return nil, fmt.Errorf("message requires id, business id and a contact")
	}

	release, err := p.locker.Acquire(ctx, message.BusinessID+":"+message.Contact())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire contact lock: %w", err)
	}
	defer release()

	decision, err := p.guard.Check(ctx, message.BusinessID, message.Contact())
	if err != nil {
		return nil, err
	}

	// Snapshot before threading so the stored message carries the consent
	// state it was received under.
	p.guard.Snapshot(ctx, message, decision)

	err = p.threader.ThreadLocked(ctx, message, threadHint)
	if err != nil {
		return nil, err
	}

	switch consent.DetectKeyword(message.Body) {
	case consent.KeywordOptOut:
		err := p.guard.RecordOptOut(ctx, message.BusinessID, message.Contact(), "stop_keyword")
		if err != nil {
			return nil, err
		}

		return &ProcessResult{Outcome: OutcomeOptedOut}, nil
	case consent.KeywordOptIn:
		err := p.guard.RecordOptIn(ctx, message.BusinessID, message.Contact(), "start_keyword")
		if err != nil {
			return nil, err
		}

		return &ProcessResult{Outcome: OutcomeOptedIn}, nil
	}

	if !decision.Allowed {
		p.logger.InfoContext(ctx, "Suppressed message from opted-out contact",
			"message_id", message.ID,
			"business_id", message.BusinessID,
		)

		return &ProcessResult{Outcome: OutcomeSuppressed, Reason: decision.Reason}, nil
	}

	active, err := p.workflows.ActiveWorkflow(ctx, message.BusinessID, workflowType(message))
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return &ProcessResult{Outcome: OutcomeNoWorkflow}, nil
		}

		return nil, fmt.Errorf("failed to load active workflow: %w", err)
	}

	execution, err := p.executor.Execute(ctx, active, message)
	if err != nil {
		return nil, fmt.Errorf("failed to start execution: %w", err)
	}

	p.monitor.Record(ctx, execution)

	result := &ProcessResult{
		Outcome:     OutcomeExecuted,
		ExecutionID: execution.ID,
		ReplyBody:   replyBody(execution),
	}

	if execution.Status == models.ExecutionStatusFailed {
		result.Reason = execution.Error
	}

	return result, nil
}

func workflowType(message *models.Message) models.WorkflowType {
	if message.PhoneNumber != "" {
		return models.WorkflowTypeSMS
	}

	return models.WorkflowTypeEmail
}

// replyBody extracts the inline reply a send-message node produced, if any.
// Partial results from failed executions still count.
func replyBody(execution *models.WorkflowExecution) string {
	body, _ := execution.Variables["reply_body"].(string)

	return body
}
