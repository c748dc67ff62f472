// Package callbacks provides event sinks for agent turns: printing to a
// terminal, logging, fanning out to several consumers, and collecting
// for inspection.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mcpchat/agent"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "callbacks")

// ensure that the sinks produce valid emit functions
var (
	_ agent.EmitFunc = (*Printer)(nil).OnEvent
	_ agent.EmitFunc = (*PackageLogger)(nil).OnEvent
	_ agent.EmitFunc = (*Collector)(nil).OnEvent
)

// Mode defines the verbosity for event printing.
type Mode int

const (
	// ModeDefault prints streamed text and a terse tool activity line.
	ModeDefault Mode = iota
	// ModeVerbose additionally prints tool arguments and results.
	ModeVerbose
)

// Fanout forwards each event to multiple consumers. The first error
// stops the fanout and aborts the turn.
func Fanout(sinks ...agent.EmitFunc) agent.EmitFunc {
	return func(ctx context.Context, ev agent.Event) error {
		for _, sink := range sinks {
			if err := sink(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	}
}

// Printer writes turn activity to the Writer as it happens.
type Printer struct {
	out  io.Writer
	mode Mode

	mu sync.Mutex
}

// NewPrinter creates a printer sink.
func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{
		out:  out,
		mode: mode,
	}
}

// OnEvent implements the emit contract.
func (p *Printer) OnEvent(ctx context.Context, ev agent.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case agent.EventTypeToken:
		fmt.Fprint(p.out, ev.Token)
	case agent.EventTypeToolCall:
		if p.mode == ModeVerbose {
			fmt.Fprintf(p.out, "\n[tool call] %s.%s %s\n", ev.ToolCall.Server, ev.ToolCall.Tool, ev.ToolCall.Arguments)
		} else {
			fmt.Fprintf(p.out, "\n[tool call] %s.%s\n", ev.ToolCall.Server, ev.ToolCall.Tool)
		}
	case agent.EventTypeToolResult:
		status := "ok"
		if !ev.ToolResult.Success {
			status = "failed"
		}
		if p.mode == ModeVerbose {
			fmt.Fprintf(p.out, "[tool result] %s.%s %s: %s\n", ev.ToolResult.Server, ev.ToolResult.Tool, status, ev.ToolResult.Result)
		} else {
			fmt.Fprintf(p.out, "[tool result] %s.%s %s\n", ev.ToolResult.Server, ev.ToolResult.Tool, status)
		}
	case agent.EventTypeDone:
		fmt.Fprintln(p.out)
	case agent.EventTypeError:
		fmt.Fprintf(p.out, "\n[error] %s\n", ev.Err.Error())
	}
	return nil
}

// PackageLogger logs turn activity with the package logger.
type PackageLogger struct{}

// NewPackageLogger creates a logging sink.
func NewPackageLogger() *PackageLogger {
	return &PackageLogger{}
}

// OnEvent implements the emit contract. Token events are skipped to
// keep logs readable.
func (l *PackageLogger) OnEvent(ctx context.Context, ev agent.Event) error {
	switch ev.Type {
	case agent.EventTypeToolCall:
		logger.ContextKV(ctx, xlog.DEBUG,
			"event", ev.Type,
			"server", ev.ToolCall.Server,
			"tool", ev.ToolCall.Tool)
	case agent.EventTypeToolResult:
		logger.ContextKV(ctx, xlog.DEBUG,
			"event", ev.Type,
			"server", ev.ToolResult.Server,
			"tool", ev.ToolResult.Tool,
			"success", ev.ToolResult.Success)
	case agent.EventTypeDone:
		logger.ContextKV(ctx, xlog.DEBUG,
			"event", ev.Type,
			"content_len", len(ev.Done.Content),
			"iteration_limit", ev.Done.IterationLimitReached)
	case agent.EventTypeError:
		logger.ContextKV(ctx, xlog.ERROR,
			"event", ev.Type,
			"err", ev.Err.Error())
	}
	return nil
}

// Collector records every event, for tests and transcript inspection.
type Collector struct {
	mu     sync.Mutex
	events []agent.Event
}

// NewCollector creates a collecting sink.
func NewCollector() *Collector {
	return &Collector{}
}

// OnEvent implements the emit contract.
func (c *Collector) OnEvent(ctx context.Context, ev agent.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns the recorded events in order.
func (c *Collector) Events() []agent.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]agent.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset drops the recorded events.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
