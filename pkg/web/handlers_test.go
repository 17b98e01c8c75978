package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadlinehq/threadline/pkg/consent"
	"github.com/threadlinehq/threadline/pkg/conversation"
	"github.com/threadlinehq/threadline/pkg/eventbus"
	"github.com/threadlinehq/threadline/pkg/events"
	"github.com/threadlinehq/threadline/pkg/handlers/end"
	"github.com/threadlinehq/threadline/pkg/handlers/sendmessage"
	"github.com/threadlinehq/threadline/pkg/lock"
	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/monitoring"
	"github.com/threadlinehq/threadline/pkg/persistence/memory"
	"github.com/threadlinehq/threadline/pkg/processor"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/registry"
	"github.com/threadlinehq/threadline/pkg/web"
	"github.com/threadlinehq/threadline/pkg/workflow"
)

const testSecret = "test-webhook-secret"

type fakeMessenger struct{}

func (fakeMessenger) Send(_ context.Context, _ protocol.OutboundMessage) (string, error) {
	return "delivery-1", nil
}

type capturePublisher struct {
	published []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func setupTestApp(t *testing.T) (*fiber.App, *memory.Persistence) {
	app, store, _ := setupApp(t, false)

	return app, store
}

func setupApp(t *testing.T, queueIntake bool) (*fiber.App, *memory.Persistence, *capturePublisher) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()
	locker := lock.NewMemoryLocker()

	reg := registry.NewRegistry(logger)
	reg.Register(sendmessage.NewFactory(fakeMessenger{}))
	reg.Register(end.NewFactory())

	guard := consent.NewGuard(store.OptOuts(), store.Consents(), logger)
	threader := conversation.NewThreader(store.Messages(), locker, 0, logger)
	executor := workflow.NewExecutor(store.Executions(), reg, nil, logger, workflow.Config{
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
	})
	monitor := monitoring.NewMonitor(nil, logger)

	proc := processor.NewProcessor(guard, threader, store.Workflows(), executor, monitor, locker, logger)
	publisher := &capturePublisher{}
	handlers := web.NewAPIHandlers(store, proc, reg, monitor, publisher, testSecret, queueIntake)

	app := fiber.New()
	web.RegisterRoutes(app, handlers)

	return app, store, publisher
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func signedRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", processor.SignPayload(testSecret, payload))

	return req
}

func saveInlineReplyWorkflow(t *testing.T, store *memory.Persistence) {
	t.Helper()

	err := store.Workflows().SaveWorkflow(context.Background(), &models.Workflow{
		ID:         "wf-1",
		BusinessID: "biz-1",
		Name:       "auto reply",
		Type:       models.WorkflowTypeSMS,
		Status:     models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "send", Type: models.NodeTypeSendMessage, Data: map[string]any{"body": "we are on it"}},
		},
		Config: models.WorkflowConfig{
			Messaging: models.MessagingConfig{InlineReply: true},
		},
	})
	require.NoError(t, err)
}

func TestInboundWebhookExecutesWorkflow(t *testing.T) {
	app, store := setupTestApp(t)
	saveInlineReplyWorkflow(t, store)

	req := signedRequest(t, "/webhooks/inbound", web.InboundMessageRequest{
		BusinessID: "biz-1",
		From:       "+15555550100",
		Body:       "where is my order?",
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		MessageID string                  `json:"message_id"`
		Result    processor.ProcessResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.NotEmpty(t, body.MessageID)
	assert.Equal(t, processor.OutcomeExecuted, body.Result.Outcome)
	assert.Equal(t, "we are on it", body.Result.ReplyBody)
	assert.NotEmpty(t, body.Result.ExecutionID)
}

func TestInboundWebhookQueueModePublishesEvent(t *testing.T) {
	app, store, publisher := setupApp(t, true)
	saveInlineReplyWorkflow(t, store)

	req := signedRequest(t, "/webhooks/inbound", web.InboundMessageRequest{
		BusinessID: "biz-1",
		From:       "+15555550100",
		Body:       "where is my order?",
		ThreadHint: "conv-1",
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body struct {
		EventID string `json:"event_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.EventID)
	assert.Equal(t, "queued", body.Status)

	require.Len(t, publisher.published, 1)

	received, ok := publisher.published[0].(*events.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, "biz-1", received.BusinessID)
	assert.Equal(t, "+15555550100", received.From)
	assert.Equal(t, "where is my order?", received.Body)
	assert.Equal(t, "conv-1", received.ThreadHint)

	// Nothing ran in-request; the worker owns the pipeline in queue mode.
	executions, err := store.Executions().ExecutionsByWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestInboundWebhookRejectsBadSignature(t *testing.T) {
	app, _ := setupTestApp(t)

	payload, err := json.Marshal(web.InboundMessageRequest{
		BusinessID: "biz-1",
		From:       "+15555550100",
		Body:       "hi",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sha256=0000")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInboundWebhookRequiresContact(t *testing.T) {
	app, _ := setupTestApp(t)

	req := signedRequest(t, "/webhooks/inbound", web.InboundMessageRequest{
		BusinessID: "biz-1",
		Body:       "hi",
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateWorkflowValidatesGraph(t *testing.T) {
	app, _ := setupTestApp(t)

	req := jsonRequest(t, http.MethodPost, "/v1/workflows", web.CreateWorkflowRequest{
		BusinessID: "biz-1",
		Name:       "broken workflow",
		Type:       models.WorkflowTypeSMS,
		Nodes: []*models.WorkflowNode{
			{ID: "a", Type: "not-a-real-type"},
		},
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateWorkflowPersistsValidGraph(t *testing.T) {
	app, store := setupTestApp(t)

	req := jsonRequest(t, http.MethodPost, "/v1/workflows", web.CreateWorkflowRequest{
		BusinessID: "biz-1",
		Name:       "auto reply",
		Type:       models.WorkflowTypeSMS,
		Status:     models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "send", Type: models.NodeTypeSendMessage},
			{ID: "done", Type: models.NodeTypeEnd},
		},
		Edges: []*models.WorkflowEdge{
			{ID: "e1", Source: "send", Target: "done"},
		},
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)

	stored, err := store.Workflows().WorkflowByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, stored.Status)
}

func TestGetWorkflowNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows/wf-missing", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetExecutionNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/executions/exec-missing", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListExecutionsByWorkflow(t *testing.T) {
	app, store := setupTestApp(t)
	saveInlineReplyWorkflow(t, store)

	webhook := signedRequest(t, "/webhooks/inbound", web.InboundMessageRequest{
		BusinessID: "biz-1",
		From:       "+15555550100",
		Body:       "hello",
	})

	resp, err := app.Test(webhook)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows/wf-1/executions", nil)

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		WorkflowID string                      `json:"workflow_id"`
		Executions []*models.WorkflowExecution `json:"executions"`
		TotalCount int                         `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "wf-1", body.WorkflowID)
	require.Equal(t, 1, body.TotalCount)
	assert.Equal(t, models.ExecutionStatusCompleted, body.Executions[0].Status)
}

func TestConfigureMonitoring(t *testing.T) {
	app, _ := setupTestApp(t)

	req := jsonRequest(t, http.MethodPut, "/v1/businesses/biz-1/monitoring", web.MonitoringConfigRequest{
		AlertThresholds: map[string]float64{"consecutive_failures": 3},
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestConfigureMonitoringRequiresThresholds(t *testing.T) {
	app, _ := setupTestApp(t)

	req := jsonRequest(t, http.MethodPut, "/v1/businesses/biz-1/monitoring", web.MonitoringConfigRequest{})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
