package agent

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/llms"
	"github.com/effective-security/mcpchat/llmutils"
	"github.com/effective-security/mcpchat/mcpclient"
	"github.com/effective-security/mcpchat/metricskey"
	"github.com/effective-security/xlog"
)

// DefaultToolTimeout bounds a single tool invocation.
const DefaultToolTimeout = 30 * time.Second

// ToolResult is the outcome of one dispatched tool call. Failures are
// data, not control flow: a failed call produces a result with Err set
// and the turn continues.
type ToolResult struct {
	ToolCallID string
	Server     string
	Tool       string
	Content    string
	Err        error
}

// Success reports whether the call completed without error.
func (r *ToolResult) Success() bool {
	return r.Err == nil
}

// QualifiedName returns the server__tool name the model used, when it
// resolved, or the raw requested name otherwise.
func (r *ToolResult) QualifiedName() string {
	if r.Server != "" {
		return mcpclient.JoinToolName(r.Server, r.Tool)
	}
	return r.Tool
}

// Text returns the content to feed back to the model: the tool output
// on success, the error text otherwise.
func (r *ToolResult) Text() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.Content
}

// Dispatcher executes batches of reassembled tool calls against the
// catalog. Calls in a batch run concurrently, each isolated: one slow
// or failing call never affects its siblings.
type Dispatcher struct {
	catalog *mcpclient.Catalog
	timeout time.Duration
}

// NewDispatcher creates a dispatcher over the given catalog.
func NewDispatcher(catalog *mcpclient.Catalog, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Dispatcher{
		catalog: catalog,
		timeout: timeout,
	}
}

type indexedResult struct {
	index  int
	result ToolResult
}

// Execute runs every call and returns exactly one result per call, in
// the order the calls were given.
func (d *Dispatcher) Execute(ctx context.Context, calls []llms.ToolCall) []ToolResult {
	if len(calls) == 0 {
		return nil
	}

	resultChan := make(chan indexedResult, len(calls))

	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()
			resultChan <- indexedResult{
				index:  index,
				result: d.executeOne(ctx, tc),
			}
		}(i, call)
	}
	wg.Wait()
	close(resultChan)

	collected := make([]indexedResult, 0, len(calls))
	for r := range resultChan {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})

	results := make([]ToolResult, len(collected))
	for i, r := range collected {
		results[i] = r.result
	}
	return results
}

func (d *Dispatcher) executeOne(ctx context.Context, tc llms.ToolCall) ToolResult {
	qualified := tc.FunctionCall.Name
	res := ToolResult{
		ToolCallID: tc.ID,
		Tool:       qualified,
	}

	conn, toolName, err := d.catalog.Resolve(qualified)
	if err != nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, qualified)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_not_found",
			"tool", qualified,
			"err", err.Error())
		res.Err = errors.WithMessagef(ErrToolNotFound, "%s", qualified)
		return res
	}
	res.Server = conn.Name
	res.Tool = toolName

	var args map[string]any
	if raw := tc.FunctionCall.Arguments; raw != "" {
		if err := json.Unmarshal(llmutils.CleanJSON([]byte(raw)), &args); err != nil {
			metricskey.StatsToolCallsMalformed.IncrCounter(1, qualified)
			res.Err = errors.WithMessagef(ErrMalformedToolCall, "invalid arguments for %s", qualified)
			return res
		}
	}

	started := time.Now()
	out, err := conn.Session.CallTool(ctx, toolName, args, d.timeout)
	metricskey.PerfToolCall.MeasureSince(started, qualified)

	switch {
	case err != nil:
		metricskey.StatsToolCallsFailed.IncrCounter(1, qualified)
		if errors.Is(err, context.DeadlineExceeded) {
			res.Err = errors.WithMessagef(err, "tool %s timed out after %s", qualified, d.timeout)
		} else {
			res.Err = errors.WithMessagef(err, "failed to call tool %s", qualified)
		}
	case out.IsError:
		metricskey.StatsToolCallsFailed.IncrCounter(1, qualified)
		res.Err = errors.Newf("tool %s returned an error: %s", qualified, out.JoinedText())
	default:
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, qualified)
		res.Content = out.JoinedText()
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"server", res.Server,
		"tool", toolName,
		"success", res.Success())
	return res
}
