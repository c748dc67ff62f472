package agent

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/llms"
)

// Accumulator reassembles streamed tool-call fragments into complete
// calls. Providers split a call across many chunks: the first chunk for
// an index carries the call ID and usually the function name, later
// chunks append argument JSON a few characters at a time. Fragments are
// grouped by stream index, never by ID, since most chunks carry no ID.
type Accumulator struct {
	buf map[int]*pendingCall
}

type pendingCall struct {
	id     string
	name   strings.Builder
	args   strings.Builder
	tainted error
}

// CompletedCall is one reassembled tool call. Err is set when the call
// is unusable; the caller reports it as a failed result instead of
// dispatching it.
type CompletedCall struct {
	Index int
	Call  llms.ToolCall
	Err   error
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		buf: make(map[int]*pendingCall),
	}
}

// Add folds one fragment into the call being built at its index.
func (a *Accumulator) Add(d llms.ToolCallDelta) {
	p, ok := a.buf[d.Index]
	if !ok {
		p = &pendingCall{id: d.ID}
		a.buf[d.Index] = p
	} else if d.ID != "" {
		if p.id == "" {
			p.id = d.ID
		} else if p.id != d.ID {
			// Two different IDs claimed the same index: the stream is
			// corrupt for this call, drop everything buffered for it.
			p.tainted = errors.WithMessagef(ErrMalformedToolCall,
				"conflicting tool call IDs at index %d: %q and %q", d.Index, p.id, d.ID)
		}
	}
	p.name.WriteString(d.Name)
	p.args.WriteString(d.Arguments)
}

// Len returns the number of calls being accumulated.
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Finalize returns the reassembled calls in stream index order and
// resets the accumulator. Calls with a corrupt buffer, a missing ID or
// name, or argument text that is not valid JSON come back with Err set.
func (a *Accumulator) Finalize() []CompletedCall {
	indexes := make([]int, 0, len(a.buf))
	for idx := range a.buf {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)

	out := make([]CompletedCall, 0, len(indexes))
	for _, idx := range indexes {
		p := a.buf[idx]
		out = append(out, CompletedCall{
			Index: idx,
			Call: llms.ToolCall{
				ID:   p.id,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      p.name.String(),
					Arguments: p.args.String(),
				},
			},
			Err: p.validate(idx),
		})
	}
	a.buf = make(map[int]*pendingCall)
	return out
}

func (p *pendingCall) validate(idx int) error {
	if p.tainted != nil {
		return p.tainted
	}
	if p.id == "" {
		return errors.WithMessagef(ErrMalformedToolCall, "missing tool call ID at index %d", idx)
	}
	if p.name.Len() == 0 {
		return errors.WithMessagef(ErrMalformedToolCall, "missing tool name at index %d", idx)
	}
	if args := p.args.String(); args != "" && !json.Valid([]byte(args)) {
		return errors.WithMessagef(ErrMalformedToolCall, "invalid arguments JSON for tool %q", p.name.String())
	}
	return nil
}
