// Package template provides templating for dynamic node parameters, rendered
// against the execution state at node dispatch time.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/threadlinehq/threadline/pkg/protocol"
)

// RenderState renders a template string against an execution state, exposing
// the mutable variables, the triggering message and execution identity.
func RenderState(input string, state protocol.ExecutionState) (any, error) {
	data := map[string]any{
		"variables": state.Variables,
		"vars":      state.Variables,
		"message": map[string]any{
			"id":              stateMessageID(state),
			"body":            stateMessageBody(state),
			"contact":         stateMessageContact(state),
			"conversation_id": stateConversationID(state),
		},
		"execution": map[string]any{
			"id":          state.ExecutionID,
			"workflow_id": state.WorkflowID,
			"business_id": state.BusinessID,
		},
	}

	return Render(input, data)
}

// RenderString is RenderState constrained to a string result.
func RenderString(input string, state protocol.ExecutionState) (string, error) {
	result, err := RenderState(input, state)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%v", result), nil
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("params").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	// JSON-looking output becomes structured data.
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func stateMessageID(state protocol.ExecutionState) string {
	if state.Message == nil {
		return ""
	}

	return state.Message.ID
}

func stateMessageBody(state protocol.ExecutionState) string {
	if state.Message == nil {
		return ""
	}

	return state.Message.Body
}

func stateMessageContact(state protocol.ExecutionState) string {
	if state.Message == nil {
		return ""
	}

	return state.Message.Contact()
}

func stateConversationID(state protocol.ExecutionState) string {
	if state.Message == nil {
		return ""
	}

	return state.Message.ConversationID
}
