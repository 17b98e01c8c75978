package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

func testState() protocol.ExecutionState {
	return protocol.ExecutionState{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		BusinessID:  "biz-1",
		Variables: map[string]any{
			"reply":    "we are on it",
			"priority": "high",
			"count":    float64(3),
		},
		Message: &models.Message{
			ID:             "msg-1",
			BusinessID:     "biz-1",
			PhoneNumber:    "+15555550100",
			Body:           "where is my order",
			ConversationID: "conv-1",
		},
	}
}

func TestRenderStateExposesVariablesAndMessage(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     any
	}{
		{"variable", "{{.variables.reply}}", "we are on it"},
		{"vars alias", "{{.vars.priority}}", "high"},
		{"message body", "{{.message.body}}", "where is my order"},
		{"message contact", "{{.message.contact}}", "+15555550100"},
		{"conversation", "{{.message.conversation_id}}", "conv-1"},
		{"execution id", "{{.execution.id}}", "exec-1"},
		{"workflow id", "{{.execution.workflow_id}}", "wf-1"},
		{"mixed text", "reply to {{.message.contact}}: {{.variables.reply}}", "reply to +15555550100: we are on it"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderState(tt.template, testState())
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestRenderStateWithoutMessage(t *testing.T) {
	state := testState()
	state.Message = nil

	result, err := RenderState("{{.message.body}}", state)
	require.NoError(t, err)
	assert.Equal(t, "", result)
}

func TestRenderCoercesNumbersAndBools(t *testing.T) {
	result, err := RenderState("{{.variables.count}}", testState())
	require.NoError(t, err)
	assert.Equal(t, float64(3), result)

	result, err = Render("true", nil)
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestRenderParsesJSONOutput(t *testing.T) {
	result, err := Render(`{"priority": "{{.variables.priority}}"}`, map[string]any{
		"variables": map[string]any{"priority": "high"},
	})
	require.NoError(t, err)

	parsed, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "high", parsed["priority"])
}

func TestRenderFuncs(t *testing.T) {
	result, err := Render("{{upper .name}}", map[string]any{"name": "acme"})
	require.NoError(t, err)
	assert.Equal(t, "ACME", result)

	result, err = Render("{{lower .name}}", map[string]any{"name": "ACME"})
	require.NoError(t, err)
	assert.Equal(t, "acme", result)
}

func TestRenderStringFlattensResult(t *testing.T) {
	out, err := RenderString("order {{.variables.count}}", testState())
	require.NoError(t, err)
	assert.Equal(t, "order 3", out)
}

func TestRenderRejectsBadTemplate(t *testing.T) {
	_, err := Render("{{.unclosed", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")
}
