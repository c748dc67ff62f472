package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/effective-security/mcpchat/llms"
	"github.com/effective-security/mcpchat/mcpclient"
	"github.com/effective-security/mcpchat/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "agent")

const (
	apologyNoResponse    = "I apologize, but I couldn't generate a response."
	apologyIterationsCap = "I apologize, but I couldn't complete the task within the allowed steps."
)

// Loop drives one conversation: it streams model output, executes the
// tool calls the model requests, and iterates until the model answers
// without tools or the iteration cap is hit.
type Loop struct {
	model      llms.Model
	catalog    *mcpclient.Catalog
	dispatcher *Dispatcher
	cfg        *Config

	mu      sync.Mutex
	history []llms.Message
}

// NewLoop creates a conversation loop over the given model and tool
// catalog.
func NewLoop(model llms.Model, catalog *mcpclient.Catalog, opts ...Option) *Loop {
	cfg := NewConfig(opts...)
	l := &Loop{
		model:      model,
		catalog:    catalog,
		dispatcher: NewDispatcher(catalog, cfg.ToolTimeout),
		cfg:        cfg,
		history:    cfg.History,
	}
	if len(l.history) == 0 && cfg.SystemPrompt != "" {
		l.history = append(l.history, llms.MessageFromTextParts(llms.RoleSystem, cfg.SystemPrompt))
	}
	return l
}

// History returns a copy of the conversation so far.
func (l *Loop) History() []llms.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]llms.Message, len(l.history))
	copy(out, l.history)
	return out
}

// ClearHistory drops the conversation, keeping the system prompt.
func (l *Loop) ClearHistory() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = nil
	if l.cfg.SystemPrompt != "" {
		l.history = append(l.history, llms.MessageFromTextParts(llms.RoleSystem, l.cfg.SystemPrompt))
	}
}

// AddSystemMessage appends a system message to the conversation.
func (l *Loop) AddSystemMessage(ctx context.Context, content string) {
	l.appendMessage(ctx, llms.MessageFromTextParts(llms.RoleSystem, content))
}

// SendMessage runs one turn to completion and returns the final
// assistant response.
func (l *Loop) SendMessage(ctx context.Context, userMessage string) (string, error) {
	var final string
	err := l.SendMessageStream(ctx, userMessage, func(ctx context.Context, ev Event) error {
		if ev.Type == EventTypeDone {
			final = ev.Done.Content
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

// SendMessageStream runs one turn, emitting events in order: token
// events as text streams, tool_call and tool_result events around each
// tool round trip, and exactly one final done or error event.
func (l *Loop) SendMessageStream(ctx context.Context, userMessage string, emit EmitFunc) error {
	defer metricskey.PerfChatTurn.MeasureSince(time.Now(), l.model.GetName())

	l.appendMessage(ctx, llms.MessageFromTextParts(llms.RoleHuman, userMessage))

	for iteration := 1; iteration <= l.cfg.MaxIterations; iteration++ {
		logger.ContextKV(ctx, xlog.DEBUG,
			"iteration", iteration,
			"max_iterations", l.cfg.MaxIterations)

		content, calls, err := l.streamModel(ctx, emit)
		if err != nil {
			metricskey.StatsLLMCallsFailed.IncrCounter(1, l.model.GetName())
			if emitErr := emit(ctx, Event{Type: EventTypeError, Err: err}); emitErr != nil {
				return emitErr
			}
			return err
		}

		if len(calls) == 0 {
			// No tools requested: the turn is complete.
			final := content
			if final != "" {
				l.appendMessage(ctx, llms.MessageFromTextParts(llms.RoleAI, final))
			} else {
				logger.ContextKV(ctx, xlog.WARNING, "reason", "no_content_no_tool_calls")
				final = apologyNoResponse
			}
			return emit(ctx, Event{Type: EventTypeDone, Done: &DoneEvent{Content: final}})
		}

		if err := l.runToolRound(ctx, content, calls, emit); err != nil {
			return err
		}
	}

	metricskey.StatsTurnsIterationLimited.IncrCounter(1, l.model.GetName())
	logger.ContextKV(ctx, xlog.WARNING,
		"reason", "max_iterations_reached",
		"max_iterations", l.cfg.MaxIterations)
	return emit(ctx, Event{Type: EventTypeDone, Done: &DoneEvent{
		Content:               apologyIterationsCap,
		IterationLimitReached: true,
	}})
}

// streamModel performs one model call, forwarding text fragments as
// token events and folding tool-call fragments into the accumulator.
func (l *Loop) streamModel(ctx context.Context, emit EmitFunc) (string, []CompletedCall, error) {
	l.mu.Lock()
	messages := make([]llms.Message, len(l.history))
	copy(messages, l.history)
	l.mu.Unlock()

	opts := []llms.CallOption{
		llms.WithTemperature(l.cfg.Temperature),
	}
	if tools := l.catalog.LLMTools(); len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}
	if l.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.cfg.MaxTokens))
	}

	acc := NewAccumulator()
	var content strings.Builder

	started := time.Now()
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), l.model.GetName())

	_, err := l.model.StreamChat(ctx, messages, func(ctx context.Context, ev llms.StreamEvent) error {
		if ev.TextDelta != "" {
			content.WriteString(ev.TextDelta)
			if err := emit(ctx, Event{Type: EventTypeToken, Token: ev.TextDelta}); err != nil {
				return err
			}
		}
		if ev.ToolCallDelta != nil {
			acc.Add(*ev.ToolCallDelta)
		}
		return nil
	}, opts...)
	metricskey.PerfLLMCall.MeasureSince(started, l.model.GetName())
	if err != nil {
		return "", nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"content_len", content.Len(),
		"tool_calls", acc.Len())
	return content.String(), acc.Finalize(), nil
}

// runToolRound records the assistant's tool request, executes the calls,
// and feeds the results back into the conversation.
func (l *Loop) runToolRound(ctx context.Context, content string, calls []CompletedCall, emit EmitFunc) error {
	var parts []llms.ContentPart
	if content != "" {
		parts = append(parts, llms.TextContent{Text: content})
	}

	// Calls that failed reassembly but still carry an ID stay in the
	// conversation so the model sees their failure; calls without an ID
	// cannot be correlated and are reported as events only.
	var dispatchable []llms.ToolCall
	for _, c := range calls {
		switch {
		case c.Err == nil:
			dispatchable = append(dispatchable, c.Call)
			parts = append(parts, c.Call)
		case c.Call.ID != "":
			// The raw arguments may not be valid JSON, which providers
			// reject when the history is replayed.
			kept := c.Call
			kept.FunctionCall = &llms.FunctionCall{Name: c.Call.FunctionCall.Name, Arguments: "{}"}
			parts = append(parts, kept)
		}
		if c.Err != nil {
			metricskey.StatsToolCallsMalformed.IncrCounter(1, c.Call.FunctionCall.Name)
			logger.ContextKV(ctx, xlog.WARNING,
				"reason", "malformed_tool_call",
				"index", c.Index,
				"err", c.Err.Error())
		}
	}
	l.appendMessage(ctx, llms.MessageFromParts(llms.RoleAI, parts...))

	for _, c := range calls {
		server, tool, splitErr := mcpclient.SplitToolName(c.Call.FunctionCall.Name)
		if splitErr != nil {
			tool = c.Call.FunctionCall.Name
		}
		if err := emit(ctx, Event{Type: EventTypeToolCall, ToolCall: &ToolCallEvent{
			ID:        c.Call.ID,
			Server:    server,
			Tool:      tool,
			Arguments: c.Call.FunctionCall.Arguments,
		}}); err != nil {
			return err
		}
	}

	dispatched := l.dispatcher.Execute(ctx, dispatchable)

	// Reassembly failures still yield one result per requested call,
	// merged back at the call's stream position.
	results := make([]ToolResult, 0, len(calls))
	for _, c := range calls {
		if c.Err == nil {
			results = append(results, dispatched[0])
			dispatched = dispatched[1:]
			continue
		}
		results = append(results, ToolResult{
			ToolCallID: c.Call.ID,
			Tool:       c.Call.FunctionCall.Name,
			Err:        c.Err,
		})
	}

	for _, res := range results {
		if res.ToolCallID != "" {
			l.appendMessage(ctx, llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
				ToolCallID: res.ToolCallID,
				Name:       res.QualifiedName(),
				Content:    res.Text(),
			}))
		}
		if err := emit(ctx, Event{Type: EventTypeToolResult, ToolResult: &ToolResultEvent{
			ID:      res.ToolCallID,
			Server:  res.Server,
			Tool:    res.Tool,
			Success: res.Success(),
			Result:  res.Text(),
		}}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) appendMessage(ctx context.Context, msg llms.Message) {
	l.mu.Lock()
	l.history = append(l.history, msg)
	l.mu.Unlock()

	if l.cfg.Store != nil {
		if err := l.cfg.Store.Add(ctx, msg); err != nil {
			logger.ContextKV(ctx, xlog.WARNING, "reason", "store_add", "err", err.Error())
		}
	}
}
