package sendmessage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

type fakeMessenger struct {
	sent []protocol.OutboundMessage
	err  error
}

func (m *fakeMessenger) Send(_ context.Context, message protocol.OutboundMessage) (string, error) {
	if m.err != nil {
		return "", m.err
	}

	m.sent = append(m.sent, message)

	return "delivery-1", nil
}

func testState() protocol.ExecutionState {
	return protocol.ExecutionState{
		ExecutionID: "exec-1",
		BusinessID:  "biz-1",
		Variables:   map[string]any{"reply": "your order ships tomorrow"},
		Message: &models.Message{
			ID:          "msg-1",
			BusinessID:  "biz-1",
			PhoneNumber: "+15555550100",
			Body:        "where is my order?",
		},
	}
}

func TestExecuteSendsReplyVariableToContact(t *testing.T) {
	messenger := &fakeMessenger{}

	handler, err := NewFactory(messenger).Create(context.Background(), "send", nil)
	require.NoError(t, err)

	state := testState()
	state.Config.Messaging.FromNumber = "+15555559999"

	result, err := handler.Execute(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, messenger.sent, 1)
	sent := messenger.sent[0]
	assert.Equal(t, "+15555550100", sent.To)
	assert.Equal(t, "+15555559999", sent.From)
	assert.Equal(t, "your order ships tomorrow", sent.Body)
	assert.Equal(t, "exec-1:send", sent.DedupKey)

	assert.Equal(t, "delivery-1", result.Output["delivery_id"])
	assert.Equal(t, "your order ships tomorrow", result.Output["reply_body"])
}

func TestExecuteInlineReplySkipsCarrier(t *testing.T) {
	messenger := &fakeMessenger{}

	handler, err := NewFactory(messenger).Create(context.Background(), "send", nil)
	require.NoError(t, err)

	state := testState()
	state.Config.Messaging.InlineReply = true

	result, err := handler.Execute(context.Background(), state)
	require.NoError(t, err)

	assert.Empty(t, messenger.sent)
	assert.Equal(t, true, result.Output["inline"])
	assert.Equal(t, "your order ships tomorrow", result.Output["reply_body"])
}

func TestExecuteEmptyBodyIsPermanent(t *testing.T) {
	handler, err := NewFactory(&fakeMessenger{}).Create(context.Background(), "send", map[string]any{
		"body": "{{.variables.missing}}",
	})
	require.NoError(t, err)

	state := testState()
	state.Variables = map[string]any{"missing": ""}

	_, err = handler.Execute(context.Background(), state)
	require.Error(t, err)
	assert.True(t, protocol.IsPermanent(err))
}
