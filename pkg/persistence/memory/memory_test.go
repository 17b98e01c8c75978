package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/persistence"
)

func TestMessageRoundTrip(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()

	message := &models.Message{
		ID:          "msg-1",
		BusinessID:  "biz-1",
		PhoneNumber: "+15555550100",
		Body:        "hello",
		ReceivedAt:  time.Now().UTC(),
	}

	require.NoError(t, store.Messages().SaveMessage(ctx, message))

	stored, err := store.Messages().MessageByID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Body)

	// The store holds a copy; mutating the returned message must not leak back.
	stored.Body = "changed"

	again, err := store.Messages().MessageByID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Body)

	_, err = store.Messages().MessageByID(ctx, "msg-2")
	assert.True(t, persistence.IsMessageNotFound(err))
}

func TestLatestByContactRespectsWindow(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()

	now := time.Now().UTC()

	old := &models.Message{ID: "msg-old", BusinessID: "biz-1", PhoneNumber: "+15555550100", ReceivedAt: now.Add(-48 * time.Hour)}
	recent := &models.Message{ID: "msg-recent", BusinessID: "biz-1", PhoneNumber: "+15555550100", ReceivedAt: now.Add(-time.Hour)}

	require.NoError(t, store.Messages().SaveMessage(ctx, old))
	require.NoError(t, store.Messages().SaveMessage(ctx, recent))

	latest, err := store.Messages().LatestByContact(ctx, "biz-1", "+15555550100", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "msg-recent", latest.ID)

	_, err = store.Messages().LatestByContact(ctx, "biz-1", "+15555550100", now)
	assert.True(t, persistence.IsMessageNotFound(err))
}

func TestRecordOptOutInsertOrIgnore(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()

	first := &models.OptOut{PhoneNumber: "+15555550100", BusinessID: "biz-1", OptedOutAt: time.Now().UTC(), Reason: "stop_keyword"}
	require.NoError(t, store.OptOuts().RecordOptOut(ctx, first))

	duplicate := &models.OptOut{PhoneNumber: "+15555550100", BusinessID: "biz-1", OptedOutAt: time.Now().UTC().Add(time.Hour), Reason: "api"}
	require.NoError(t, store.OptOuts().RecordOptOut(ctx, duplicate))

	stored, err := store.OptOuts().OptOutByContact(ctx, "biz-1", "+15555550100")
	require.NoError(t, err)
	assert.Equal(t, "stop_keyword", stored.Reason)
	assert.Equal(t, first.OptedOutAt, stored.OptedOutAt)
}

func TestRemoveOptOut(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()

	optOut := &models.OptOut{PhoneNumber: "+15555550100", BusinessID: "biz-1", OptedOutAt: time.Now().UTC()}
	require.NoError(t, store.OptOuts().RecordOptOut(ctx, optOut))
	require.NoError(t, store.OptOuts().RemoveOptOut(ctx, "biz-1", "+15555550100"))

	_, err := store.OptOuts().OptOutByContact(ctx, "biz-1", "+15555550100")
	assert.True(t, persistence.IsOptOutNotFound(err))

	// Removing again is a no-op.
	require.NoError(t, store.OptOuts().RemoveOptOut(ctx, "biz-1", "+15555550100"))
}

func TestActiveWorkflowFiltersStatusAndType(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()

	draft := &models.Workflow{ID: "wf-draft", BusinessID: "biz-1", Type: models.WorkflowTypeSMS, Status: models.WorkflowStatusDraft}
	active := &models.Workflow{ID: "wf-active", BusinessID: "biz-1", Type: models.WorkflowTypeSMS, Status: models.WorkflowStatusActive}
	email := &models.Workflow{ID: "wf-email", BusinessID: "biz-1", Type: models.WorkflowTypeEmail, Status: models.WorkflowStatusActive}

	for _, w := range []*models.Workflow{draft, active, email} {
		require.NoError(t, store.Workflows().SaveWorkflow(ctx, w))
	}

	found, err := store.Workflows().ActiveWorkflow(ctx, "biz-1", models.WorkflowTypeSMS)
	require.NoError(t, err)
	assert.Equal(t, "wf-active", found.ID)

	found, err = store.Workflows().ActiveWorkflow(ctx, "biz-1", models.WorkflowTypeEmail)
	require.NoError(t, err)
	assert.Equal(t, "wf-email", found.ID)

	_, err = store.Workflows().ActiveWorkflow(ctx, "biz-2", models.WorkflowTypeSMS)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestSaveExecutionCopiesNodeExecutions(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()

	execution := &models.WorkflowExecution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartTime:  time.Now().UTC(),
		NodeExecutions: map[string]*models.NodeExecution{
			"node-a": {NodeID: "node-a", Status: models.ExecutionStatusRunning},
		},
	}

	require.NoError(t, store.Executions().SaveExecution(ctx, execution))

	// Later mutations to the caller's record must not affect the stored copy.
	execution.NodeExecutions["node-a"].Status = models.ExecutionStatusFailed
	execution.Status = models.ExecutionStatusFailed

	stored, err := store.Executions().ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
	assert.Equal(t, models.ExecutionStatusRunning, stored.NodeExecutions["node-a"].Status)
}

func TestExecutionsByWorkflowSortedByStart(t *testing.T) {
	store := NewPersistence()
	ctx := context.Background()

	now := time.Now().UTC()

	second := &models.WorkflowExecution{ID: "exec-2", WorkflowID: "wf-1", StartTime: now.Add(time.Minute)}
	first := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1", StartTime: now}
	other := &models.WorkflowExecution{ID: "exec-3", WorkflowID: "wf-2", StartTime: now}

	for _, e := range []*models.WorkflowExecution{second, first, other} {
		require.NoError(t, store.Executions().SaveExecution(ctx, e))
	}

	executions, err := store.Executions().ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "exec-1", executions[0].ID)
	assert.Equal(t, "exec-2", executions[1].ID)
}
