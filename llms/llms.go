package llms

import (
	"context"
)

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderAnthropic is the type of provider.
	ProviderAnthropic ProviderType = "ANTHROPIC"
	// ProviderOpenAI is the type of provider.
	ProviderOpenAI ProviderType = "OPENAI"
	// ProviderOpenRouter is the type of provider.
	ProviderOpenRouter ProviderType = "OPENROUTER"
)

// StreamEvent is a single fragment of a streamed model reply.
// Exactly one of TextDelta or ToolCallDelta is populated per event;
// FinishReason is set on the final event of the turn.
type StreamEvent struct {
	// TextDelta is a fragment of assistant text.
	TextDelta string
	// ToolCallDelta is a fragment of a tool call request.
	ToolCallDelta *ToolCallDelta
	// FinishReason is the model's stop reason: "stop", "tool_calls", etc.
	FinishReason string
}

// ToolCallDelta is a partial, possibly mid-token fragment of a streamed
// tool call. Fragments sharing the same Index belong to one call and must
// be reassembled before use. ID and Name may arrive on any fragment;
// Arguments is raw partial JSON to be concatenated, not parsed.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamFunc receives stream events in arrival order. Returning an error
// stops the stream and fails the model call.
type StreamFunc func(ctx context.Context, event StreamEvent) error

// StreamResult summarizes a completed model turn.
type StreamResult struct {
	// FinishReason is the stop reason of the final chunk.
	FinishReason string
	// InputTokens and OutputTokens are usage counts when the provider reports them.
	InputTokens  int64
	OutputTokens int64
}

// Model is the interface implemented by streaming, tool-call capable
// chat providers. StreamChat sends the conversation and the callable
// tool universe, and forwards every raw fragment to fn; it never
// reassembles tool calls itself.
type Model interface {
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GetName returns the configured model name.
	GetName() string
	// StreamChat streams one model turn. fn is invoked for each fragment
	// in arrival order; the call returns after the turn completes or fails.
	StreamChat(ctx context.Context, messages []Message, fn StreamFunc, options ...CallOption) (*StreamResult, error)
}
