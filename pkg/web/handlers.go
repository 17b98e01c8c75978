// Package web provides the HTTP handlers for message intake and workflow
// management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/threadlinehq/threadline/pkg/eventbus"
	"github.com/threadlinehq/threadline/pkg/events"
	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/monitoring"
	"github.com/threadlinehq/threadline/pkg/persistence"
	"github.com/threadlinehq/threadline/pkg/processor"
	"github.com/threadlinehq/threadline/pkg/registry"
	"github.com/threadlinehq/threadline/pkg/workflow"
)

const signatureHeader = "X-Webhook-Signature"

type APIHandlers struct {
	store         persistence.Persistence
	proc          *processor.Processor
	registry      *registry.Registry
	monitor       *monitoring.Monitor
	publisher     eventbus.EventPublisher
	validator     *validator.Validate
	webhookSecret string
	queueIntake   bool
}

func NewAPIHandlers(
	store persistence.Persistence,
	proc *processor.Processor,
	reg *registry.Registry,
	monitor *monitoring.Monitor,
	publisher eventbus.EventPublisher,
	webhookSecret string,
	queueIntake bool,
) *APIHandlers {
	return &APIHandlers{
		store:         store,
		proc:          proc,
		registry:      reg,
		monitor:       monitor,
		publisher:     publisher,
		validator:     validator.New(),
		webhookSecret: webhookSecret,
		queueIntake:   queueIntake,
	}
}

// RegisterRoutes mounts all API routes on the app.
func RegisterRoutes(app *fiber.App, h *APIHandlers) {
	app.Get("/health", h.HealthCheck)
	app.Post("/webhooks/inbound", h.InboundWebhook)

	v1 := app.Group("/v1")
	v1.Post("/workflows", h.CreateWorkflow)
	v1.Get("/workflows/:id", h.GetWorkflow)
	v1.Get("/workflows/:id/executions", h.ListExecutions)
	v1.Get("/executions/:id", h.GetExecution)
	v1.Put("/businesses/:id/monitoring", h.ConfigureMonitoring)
}

// InboundWebhook receives an inbound customer message from the carrier. In
// sync mode it runs the processing pipeline and returns the result; in queue
// mode it publishes a message.received event for a worker to consume.
func (h *APIHandlers) InboundWebhook(c fiber.Ctx) error {
	if !processor.VerifySignature(h.webhookSecret, c.Body(), c.Get(signatureHeader)) {
		return unauthorized(c, "Webhook signature verification failed")
	}

	var req InboundMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.From == "" && req.Email == "" {
		return badRequest(c, "Either from or email is required")
	}

	receivedAt := time.Now().UTC()
	if req.ReceivedAt != nil {
		receivedAt = req.ReceivedAt.UTC()
	}

	if h.queueIntake {
		return h.queueMessage(c, req, receivedAt)
	}

	message := &models.Message{
		ID:                "msg-" + uuid.New().String(),
		BusinessID:        req.BusinessID,
		PhoneNumber:       req.From,
		Email:             req.Email,
		Body:              req.Body,
		ProviderMessageID: req.ProviderMessageID,
		ReceivedAt:        receivedAt,
		Metadata:          req.Metadata,
	}

	result, err := h.proc.Process(c.Context(), message, req.ThreadHint)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"message_id": message.ID,
		"result":     result,
	})
}

// queueMessage publishes the inbound message onto the event bus instead of
// processing it in-request.
func (h *APIHandlers) queueMessage(c fiber.Ctx, req InboundMessageRequest, receivedAt time.Time) error {
	event := &events.MessageReceived{
		BaseEvent:         events.NewBaseEvent(events.MessageReceivedEvent, req.BusinessID),
		From:              req.From,
		Email:             req.Email,
		To:                req.To,
		Body:              req.Body,
		ReceivedAt:        receivedAt,
		ProviderMessageID: req.ProviderMessageID,
		ThreadHint:        req.ThreadHint,
	}

	if req.Metadata != nil {
		event.Metadata = req.Metadata
	}

	if err := h.publisher.Publish(c.Context(), req.BusinessID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
		"status":   "queued",
	})
}

// CreateWorkflow validates and stores a workflow definition. Invalid graphs
// never reach the store.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	status := req.Status
	if status == "" {
		status = models.WorkflowStatusDraft
	}

	now := time.Now().UTC()
	created := &models.Workflow{
		ID:         "wf-" + uuid.New().String(),
		BusinessID: req.BusinessID,
		Name:       req.Name,
		Type:       req.Type,
		Status:     status,
		Nodes:      req.Nodes,
		Edges:      req.Edges,
		Config:     req.Config,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := workflow.Validate(created, h.registry); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.Workflows().SaveWorkflow(c.Context(), created); err != nil {
		return internalError(c, err)
	}

	if len(created.Config.Monitoring.AlertThresholds) > 0 {
		h.monitor.Configure(created.BusinessID, created.Config.Monitoring)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	found, err := h.store.Workflows().WorkflowByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.store.Executions().ExecutionByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.store.Workflows().WorkflowByID(c.Context(), id); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	executions, err := h.store.Executions().ExecutionsByWorkflow(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id": id,
		"executions":  executions,
		"total_count": len(executions),
	})
}

// ConfigureMonitoring sets per-business alert thresholds. Idempotent.
func (h *APIHandlers) ConfigureMonitoring(c fiber.Ctx) error {
	businessID := c.Params("id")
	if businessID == "" {
		return badRequest(c, "Business ID is required")
	}

	var req MonitoringConfigRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	h.monitor.Configure(businessID, models.MonitoringConfig{
		AlertThresholds: req.AlertThresholds,
		NotificationURL: req.NotificationURL,
	})

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.store.HealthCheck(c.Context())
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC(),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
