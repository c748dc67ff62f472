// Package agent runs the model conversation loop: it streams assistant
// output, reassembles and dispatches tool calls against the MCP catalog,
// and feeds results back to the model until a final answer is produced.
package agent

import "context"

// EventType discriminates streamed loop events.
type EventType string

const (
	// EventTypeToken carries one streamed text fragment.
	EventTypeToken EventType = "token"
	// EventTypeToolCall announces a tool invocation the model requested.
	EventTypeToolCall EventType = "tool_call"
	// EventTypeToolResult carries the outcome of one tool invocation.
	EventTypeToolResult EventType = "tool_result"
	// EventTypeDone carries the final assistant message and ends the turn.
	EventTypeDone EventType = "done"
	// EventTypeError reports a fatal turn failure and ends the turn.
	EventTypeError EventType = "error"
)

// ToolCallEvent describes a requested tool invocation.
type ToolCallEvent struct {
	ID        string `json:"id"`
	Server    string `json:"server"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
}

// ToolResultEvent describes the outcome of one tool invocation.
type ToolResultEvent struct {
	ID      string `json:"id"`
	Server  string `json:"server"`
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Result  string `json:"result"`
}

// DoneEvent carries the final assistant message for the turn.
type DoneEvent struct {
	Content string `json:"content"`
	// IterationLimitReached is set when the turn was cut off by the
	// iteration cap instead of the model finishing on its own.
	IterationLimitReached bool `json:"iteration_limit_reached,omitempty"`
}

// Event is one element of a streamed turn. Exactly one payload field is
// set, matching Type. Every turn ends with either a done or an error
// event, never both.
type Event struct {
	Type       EventType        `json:"type"`
	Token      string           `json:"token,omitempty"`
	ToolCall   *ToolCallEvent   `json:"tool_call,omitempty"`
	ToolResult *ToolResultEvent `json:"tool_result,omitempty"`
	Done       *DoneEvent       `json:"done,omitempty"`
	Err        error            `json:"-"`
}

// EmitFunc receives turn events in order. Returning an error aborts the
// turn.
type EmitFunc func(ctx context.Context, ev Event) error
