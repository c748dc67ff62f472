package llms_test

import (
	"testing"

	"github.com/effective-security/mcpchat/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MessageHelpers(t *testing.T) {
	msg := llms.MessageFromTextParts(llms.RoleHuman, "part one. ", "part two.")
	assert.Equal(t, llms.RoleHuman, msg.Role)
	assert.Equal(t, "part one. part two.", msg.GetContent())
	assert.Empty(t, msg.ToolCalls())
	assert.Nil(t, msg.ToolResponse())
}

func Test_MessageToolCalls(t *testing.T) {
	call := llms.ToolCall{
		ID:           "call_1",
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: "web__search", Arguments: `{"q":"go"}`},
	}
	msg := llms.MessageFromToolCalls(llms.RoleAI, call)

	calls := msg.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)

	// tool call parts render as text for transcripts
	assert.Contains(t, msg.GetContent(), "web__search")
}

func Test_MessageToolResponse(t *testing.T) {
	msg := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
		ToolCallID: "call_1",
		Name:       "web__search",
		Content:    "result text",
	})
	resp := msg.ToolResponse()
	require.NotNil(t, resp)
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.Equal(t, "result text", resp.Content)
}

func Test_CallOptions(t *testing.T) {
	tools := []llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "t"}}}
	opts := llms.NewCallOptions(
		llms.WithModel("gpt-4o"),
		llms.WithMaxTokens(512),
		llms.WithTemperature(0.3),
		llms.WithTools(tools),
	)
	assert.Equal(t, "gpt-4o", opts.Model)
	assert.Equal(t, 512, opts.MaxTokens)
	assert.InDelta(t, 0.3, opts.Temperature, 0.0001)
	assert.Len(t, opts.Tools, 1)
}
