package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threadlinehq/threadline/pkg/eventbus"
	"github.com/threadlinehq/threadline/pkg/events"
	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/registry"
)

// Config tunes the executor. Zero values fall back to defaults, which lets
// tests shrink the backoff without touching production settings.
type Config struct {
	DefaultMaxRetries int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	HandlerTimeout    time.Duration
	ExecutionTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultMaxRetries: 3,
		BackoffBase:       time.Second,
		BackoffCap:        30 * time.Second,
		HandlerTimeout:    30 * time.Second,
		ExecutionTimeout:  5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.DefaultMaxRetries <= 0 {
		c.DefaultMaxRetries = defaults.DefaultMaxRetries
	}

	if c.BackoffBase <= 0 {
		c.BackoffBase = defaults.BackoffBase
	}

	if c.BackoffCap <= 0 {
		c.BackoffCap = defaults.BackoffCap
	}

	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = defaults.HandlerTimeout
	}

	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = defaults.ExecutionTimeout
	}

	return c
}

// cancellation carries the caller-supplied reason through context.Cause.
type cancellation struct {
	reason string
}

func (c *cancellation) Error() string {
	return "execution cancelled: " + c.reason
}

// Executor walks a validated workflow graph, invoking one handler per node
// and persisting the execution record on every state transition so a crashed
// run leaves an inspectable trail.
type Executor struct {
	executions persistence.ExecutionRepository
	registry   *registry.Registry
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
	config     Config

	mu      sync.Mutex
	cancels map[string]context.CancelCauseFunc
}

// NewExecutor wires an executor. publisher may be nil, in which case no
// lifecycle events are emitted.
func NewExecutor(executions persistence.ExecutionRepository, reg *registry.Registry, publisher eventbus.EventPublisher, logger *slog.Logger, config Config) *Executor {
	return &Executor{
		executions: executions,
		registry:   reg,
		publisher:  publisher,
		logger:     logger.With("module", "executor"),
		config:     config.withDefaults(),
		cancels:    make(map[string]context.CancelCauseFunc),
	}
}

// Execute runs the workflow against the message and blocks until the
// execution reaches a terminal status. The returned execution is always
// non-nil once the record has been created, even when the run failed.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow, message *models.Message) (*models.WorkflowExecution, error) {
	entry, err := EntryNode(workflow)
	if err != nil {
		return nil, err
	}

	execution := &models.WorkflowExecution{
		ID:             "exec-" + uuid.New().String(),
		WorkflowID:     workflow.ID,
		BusinessID:     workflow.BusinessID,
		Status:         models.ExecutionStatusPending,
		StartTime:      time.Now().UTC(),
		InputData:      message,
		Variables:      make(map[string]any),
		NodeExecutions: make(map[string]*models.NodeExecution),
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The overall deadline cancels the run with a cause the branch goroutines
	// report as the failure reason.
	runCtx, expire := context.WithTimeoutCause(runCtx, e.config.ExecutionTimeout,
		&cancellation{reason: "execution deadline exceeded"})
	defer expire()

	e.trackCancel(execution.ID, cancel)
	defer e.untrackCancel(execution.ID)

	run := &graphRun{
		executor:  e,
		workflow:  workflow,
		execution: execution,
		started:   make(map[string]struct{}),
	}

	err = run.persist(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	run.setStatus(models.ExecutionStatusRunning, "")
	_ = run.persist(ctx)

	e.publish(ctx, workflow.BusinessID, workflow.ID, &events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, workflow.BusinessID, workflow.ID),
		ExecutionID: execution.ID,
		MessageID:   message.ID,
	})

	run.dispatch(runCtx, entry.ID)
	run.wg.Wait()

	run.finish(ctx, runCtx)

	return execution, nil
}

// Cancel requests cooperative cancellation of a running execution. Running
// handlers finish their current attempt; no further nodes start. Returns
// false when the execution is not currently running in this process.
func (e *Executor) Cancel(executionID, reason string) bool {
	e.mu.Lock()
	cancel, ok := e.cancels[executionID]
	e.mu.Unlock()

	if !ok {
		return false
	}

	if reason == "" {
		reason = "cancelled"
	}

	cancel(&cancellation{reason: reason})

	return true
}

func (e *Executor) trackCancel(executionID string, cancel context.CancelCauseFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancels[executionID] = cancel
}

func (e *Executor) untrackCancel(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.cancels, executionID)
}

func (e *Executor) baseEvent(eventType events.EventType, businessID, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, businessID)
	base.WorkflowID = workflowID

	return base
}

func (e *Executor) publish(ctx context.Context, businessID, workflowID string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, businessID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish execution event",
			"event_type", event.GetType(),
			"workflow_id", workflowID,
			"error", err,
		)
	}
}

// graphRun is the per-execution state. A single mutex serializes every
// mutation of the shared execution record across branch goroutines.
type graphRun struct {
	executor  *Executor
	workflow  *models.Workflow
	execution *models.WorkflowExecution

	mu        sync.Mutex
	wg        sync.WaitGroup
	started   map[string]struct{}
	cancelled bool
}

// dispatch starts the node's branch goroutine. Each node runs at most once
// per execution: when branches converge on a shared node, the first arriving
// branch runs it and later arrivals are no-ops.
func (r *graphRun) dispatch(ctx context.Context, nodeID string) {
	r.mu.Lock()

	if _, ok := r.started[nodeID]; ok {
		r.mu.Unlock()

		return
	}

	r.started[nodeID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.runNode(ctx, nodeID)
	}()
}

func (r *graphRun) runNode(ctx context.Context, nodeID string) {
	if ctx.Err() != nil {
		r.noteCancelled(ctx)

		return
	}

	node, ok := r.workflow.NodeByID(nodeID)
	if !ok {
		// Validation guarantees edge targets exist; reaching this is a bug.
		r.failExecution(ctx, fmt.Sprintf("edge target %s not found", nodeID))

		return
	}

	nodeExec := r.beginNode(node)
	_ = r.persist(ctx)

	maxRetries := node.MaxRetries(r.executor.config.DefaultMaxRetries)

	for {
		result, err := r.invoke(ctx, node)
		if err == nil {
			r.completeNode(ctx, node, nodeExec, result)
			r.followEdges(ctx, node, result.Outcome)

			return
		}

		if ctx.Err() != nil {
			r.noteCancelled(ctx)
			r.recordNodeFailure(ctx, node, nodeExec, err)

			return
		}

		exhausted := r.countFailure(nodeExec) >= maxRetries
		if protocol.IsPermanent(err) || exhausted {
			r.recordNodeFailure(ctx, node, nodeExec, err)
			r.resolveNodeFailure(ctx, node, err)

			return
		}

		r.markRetrying(nodeExec)
		_ = r.persist(ctx)

		if !r.backoff(ctx, nodeExec.RetryCount) {
			r.noteCancelled(ctx)
			r.recordNodeFailure(ctx, node, nodeExec, err)

			return
		}

		r.markRunning(nodeExec)
		_ = r.persist(ctx)
	}
}

// invoke creates the handler and runs a single attempt under the per-handler
// deadline. The variable snapshot is taken under the run lock so handlers
// never observe a half-applied merge from a sibling branch.
func (r *graphRun) invoke(ctx context.Context, node *models.WorkflowNode) (*protocol.HandlerResult, error) {
	handler, err := r.executor.registry.CreateHandler(ctx, node.Type, node.ID, node.Data)
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to create handler for node %s: %w", node.ID, err))
	}

	state := protocol.ExecutionState{
		ExecutionID: r.execution.ID,
		WorkflowID:  r.workflow.ID,
		BusinessID:  r.workflow.BusinessID,
		Variables:   r.snapshotVariables(),
		Message:     r.execution.InputData,
		Config:      r.workflow.Config,
	}

	handlerCtx, cancel := context.WithTimeout(ctx, r.executor.config.HandlerTimeout)
	defer cancel()

	result, err := handler.Execute(handlerCtx, state)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = &protocol.HandlerResult{Outcome: protocol.OutcomeNext}
	}

	return result, nil
}

func (r *graphRun) beginNode(node *models.WorkflowNode) *models.NodeExecution {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodeExec, ok := r.execution.NodeExecutions[node.ID]
	if !ok {
		nodeExec = &models.NodeExecution{
			NodeID:    node.ID,
			StartTime: time.Now().UTC(),
		}
		r.execution.NodeExecutions[node.ID] = nodeExec
	}

	nodeExec.Status = models.ExecutionStatusRunning

	return nodeExec
}

func (r *graphRun) completeNode(ctx context.Context, node *models.WorkflowNode, nodeExec *models.NodeExecution, result *protocol.HandlerResult) {
	r.mu.Lock()

	for key, value := range result.Output {
		r.execution.Variables[key] = value
	}

	now := time.Now().UTC()
	nodeExec.Status = models.ExecutionStatusCompleted
	nodeExec.EndTime = &now
	nodeExec.Output = result.Output
	nodeExec.Error = ""

	durationMs := now.Sub(nodeExec.StartTime).Milliseconds()
	retryCount := nodeExec.RetryCount

	r.mu.Unlock()

	_ = r.persist(ctx)

	r.executor.publish(ctx, r.workflow.BusinessID, r.workflow.ID, &events.NodeCompleted{
		BaseEvent:   r.executor.baseEvent(events.NodeCompletedEvent, r.workflow.BusinessID, r.workflow.ID),
		ExecutionID: r.execution.ID,
		NodeID:      node.ID,
		Outcome:     result.Outcome,
		Output:      result.Output,
		DurationMs:  durationMs,
		RetryCount:  retryCount,
	})
}

// countFailure bumps the attempt counter and reports the number of failures
// so far for this node.
func (r *graphRun) countFailure(nodeExec *models.NodeExecution) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodeExec.RetryCount++

	return nodeExec.RetryCount
}

func (r *graphRun) markRetrying(nodeExec *models.NodeExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodeExec.Status = models.ExecutionStatusRetrying

	if r.execution.Status == models.ExecutionStatusRunning {
		r.execution.Status = models.ExecutionStatusRetrying
	}
}

func (r *graphRun) markRunning(nodeExec *models.NodeExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodeExec.Status = models.ExecutionStatusRunning

	if r.execution.Status == models.ExecutionStatusRetrying {
		r.execution.Status = models.ExecutionStatusRunning
	}
}

func (r *graphRun) recordNodeFailure(ctx context.Context, node *models.WorkflowNode, nodeExec *models.NodeExecution, err error) {
	r.mu.Lock()

	now := time.Now().UTC()
	nodeExec.Status = models.ExecutionStatusFailed
	nodeExec.EndTime = &now
	nodeExec.Error = err.Error()

	retryCount := nodeExec.RetryCount

	r.mu.Unlock()

	_ = r.persist(ctx)

	r.executor.publish(ctx, r.workflow.BusinessID, r.workflow.ID, &events.NodeFailed{
		BaseEvent:   r.executor.baseEvent(events.NodeFailedEvent, r.workflow.BusinessID, r.workflow.ID),
		ExecutionID: r.execution.ID,
		NodeID:      node.ID,
		Status:      models.ExecutionStatusFailed,
		Error:       err.Error(),
		RetryCount:  retryCount,
	})
}

// resolveNodeFailure decides what an exhausted node failure means for the
// run: required nodes fail the whole execution, optional nodes follow their
// failure edge when one exists and otherwise end the branch.
func (r *graphRun) resolveNodeFailure(ctx context.Context, node *models.WorkflowNode, err error) {
	if node.IsRequired() {
		r.failExecution(ctx, fmt.Sprintf("node %s failed: %v", node.ID, err))

		return
	}

	r.executor.logger.WarnContext(ctx, "Optional node failed, continuing",
		"execution_id", r.execution.ID,
		"node_id", node.ID,
		"error", err,
	)

	r.followEdges(ctx, node, protocol.OutcomeFailure)
}

// followEdges selects the outgoing edges matching the outcome label. A single
// unlabeled edge matches any success outcome; a failure outcome only ever
// follows edges explicitly labeled failure.
func (r *graphRun) followEdges(ctx context.Context, node *models.WorkflowNode, outcome string) {
	outgoing := r.workflow.OutgoingEdges(node.ID)

	matched := false

	for _, edge := range outgoing {
		if edge.SourceHandle == outcome {
			matched = true

			r.dispatch(ctx, edge.Target)
		}
	}

	if matched || outcome == protocol.OutcomeFailure {
		return
	}

	if len(outgoing) == 1 && outgoing[0].SourceHandle == "" {
		r.dispatch(ctx, outgoing[0].Target)
	}
}

func (r *graphRun) failExecution(ctx context.Context, reason string) {
	r.setStatus(models.ExecutionStatusFailed, reason)
	_ = r.persist(ctx)

	// Stop sibling branches; handlers already in flight finish their attempt.
	r.executor.mu.Lock()
	cancel, ok := r.executor.cancels[r.execution.ID]
	r.executor.mu.Unlock()

	if ok {
		cancel(&cancellation{reason: reason})
	}
}

func (r *graphRun) noteCancelled(ctx context.Context) {
	cause := context.Cause(ctx)

	var c *cancellation
	if errors.As(cause, &c) {
		r.mu.Lock()
		alreadyFailed := r.execution.Status.IsTerminal()
		r.cancelled = !alreadyFailed
		r.mu.Unlock()

		r.setStatus(models.ExecutionStatusFailed, c.reason)

		return
	}

	r.cancelledByContext()
}

func (r *graphRun) cancelledByContext() {
	r.mu.Lock()
	r.cancelled = !r.execution.Status.IsTerminal()
	r.mu.Unlock()

	r.setStatus(models.ExecutionStatusFailed, "cancelled")
}

// setStatus applies a status transition unless the execution is already
// terminal. Terminal statuses are never overwritten.
func (r *graphRun) setStatus(status models.ExecutionStatus, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.execution.Status.IsTerminal() {
		return
	}

	r.execution.Status = status

	if errMsg != "" {
		r.execution.Error = errMsg
	}

	if status.IsTerminal() {
		now := time.Now().UTC()
		r.execution.EndTime = &now
	}
}

// finish settles the terminal status after every branch goroutine returned,
// persists the final record and emits the matching lifecycle event.
func (r *graphRun) finish(ctx context.Context, runCtx context.Context) {
	if runCtx.Err() != nil {
		r.noteCancelled(runCtx)
	}

	r.setStatus(models.ExecutionStatusCompleted, "")
	_ = r.persist(ctx)

	r.mu.Lock()
	status := r.execution.Status
	errMsg := r.execution.Error
	wasCancelled := r.cancelled
	nodesExecuted := len(r.execution.NodeExecutions)
	durationMs := int64(0)

	if r.execution.EndTime != nil {
		durationMs = r.execution.EndTime.Sub(r.execution.StartTime).Milliseconds()
	}

	variables := make(map[string]any, len(r.execution.Variables))
	for key, value := range r.execution.Variables {
		variables[key] = value
	}
	r.mu.Unlock()

	switch {
	case status == models.ExecutionStatusCompleted:
		r.executor.publish(ctx, r.workflow.BusinessID, r.workflow.ID, &events.ExecutionCompleted{
			BaseEvent:     r.executor.baseEvent(events.ExecutionCompletedEvent, r.workflow.BusinessID, r.workflow.ID),
			ExecutionID:   r.execution.ID,
			DurationMs:    durationMs,
			NodesExecuted: nodesExecuted,
			Variables:     variables,
		})
	case wasCancelled:
		r.executor.publish(ctx, r.workflow.BusinessID, r.workflow.ID, &events.ExecutionCancelled{
			BaseEvent:   r.executor.baseEvent(events.ExecutionCancelledEvent, r.workflow.BusinessID, r.workflow.ID),
			ExecutionID: r.execution.ID,
			Reason:      errMsg,
		})
	default:
		r.executor.publish(ctx, r.workflow.BusinessID, r.workflow.ID, &events.ExecutionFailed{
			BaseEvent:     r.executor.baseEvent(events.ExecutionFailedEvent, r.workflow.BusinessID, r.workflow.ID),
			ExecutionID:   r.execution.ID,
			DurationMs:    durationMs,
			NodesExecuted: nodesExecuted,
			Error:         errMsg,
		})
	}
}

func (r *graphRun) snapshotVariables() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]any, len(r.execution.Variables))
	for key, value := range r.execution.Variables {
		snapshot[key] = value
	}

	return snapshot
}

// persist upserts the execution record under the run lock. Persistence
// failures are logged, never fatal: losing a snapshot must not kill a run.
func (r *graphRun) persist(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.executor.executions.SaveExecution(context.WithoutCancel(ctx), r.execution)
	if err != nil {
		r.executor.logger.ErrorContext(ctx, "Failed to persist execution state",
			"execution_id", r.execution.ID,
			"error", err,
		)

		return err
	}

	return nil
}

// backoff sleeps the exponential delay for the given attempt, doubling from
// the base and capping. Returns false when the context was cancelled first.
func (r *graphRun) backoff(ctx context.Context, attempt int) bool {
	delay := r.executor.config.BackoffBase

	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.executor.config.BackoffCap {
			delay = r.executor.config.BackoffCap

			break
		}
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
