// Package store persists chat history and metadata. The tenant and chat
// the operations apply to come from the chat context on ctx.
package store

import (
	"context"
	"time"

	"github.com/effective-security/mcpchat/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "store")

// MessageStore keeps conversation history per tenant and chat.
type MessageStore interface {
	// Messages returns the chat history, oldest first.
	Messages(ctx context.Context) []llms.Message
	// Add appends a message to the chat history.
	Add(ctx context.Context, msg llms.Message) error
	// Reset removes the chat history and metadata.
	Reset(ctx context.Context) error
	// UpdateChat creates or updates the chat title and metadata.
	UpdateChat(ctx context.Context, title string, metadata map[string]any) error
	// ListChats returns the chat IDs for the tenant.
	ListChats(ctx context.Context) ([]string, error)
	// GetChatInfo returns the chat metadata with messages. An empty id
	// means the chat from context.
	GetChatInfo(ctx context.Context, id string) (*ChatInfo, error)
}

// ChatInfo is chat metadata with optional messages.
type ChatInfo struct {
	TenantID  string         `json:"tenant_id"`
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Messages  []llms.Message `json:"-"`
}

// MessageModel is the serialized form of a chat message. Message parts
// are interfaces, so persistence goes through this flat shape.
type MessageModel struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []ToolCallModel `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
}

// ToolCallModel is the serialized form of a tool call part.
type ToolCallModel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToModel converts a message for persistence.
func ToModel(msg llms.Message) MessageModel {
	m := MessageModel{
		Role: string(msg.Role),
	}
	for _, p := range msg.Parts {
		if t, ok := p.(llms.TextContent); ok {
			m.Content += t.Text
		}
	}
	for _, tc := range msg.ToolCalls() {
		if tc.FunctionCall == nil {
			continue
		}
		m.ToolCalls = append(m.ToolCalls, ToolCallModel{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	if resp := msg.ToolResponse(); resp != nil {
		m.ToolCallID = resp.ToolCallID
		m.Name = resp.Name
		m.Content = resp.Content
	}
	return m
}

// FromModel restores a message from its persisted form.
func FromModel(m MessageModel) llms.Message {
	role := llms.Role(m.Role)
	if role == llms.RoleTool {
		return llms.MessageFromToolResponse(role, llms.ToolCallResponse{
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
			Content:    m.Content,
		})
	}

	var parts []llms.ContentPart
	if m.Content != "" {
		parts = append(parts, llms.TextContent{Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		parts = append(parts, llms.ToolCall{
			ID:   tc.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return llms.Message{Role: role, Parts: parts}
}

// ToMessages restores a history from its persisted form.
func ToMessages(models []MessageModel) []llms.Message {
	out := make([]llms.Message, 0, len(models))
	for _, m := range models {
		out = append(out, FromModel(m))
	}
	return out
}
