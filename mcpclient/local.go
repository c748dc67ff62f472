package mcpclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/mcp"
	"github.com/effective-security/mcpchat/tools"
)

// LocalSession exposes in-process Go tools through the Session
// interface, so local tools and remote servers share one dispatch path.
type LocalSession struct {
	name  string
	tools map[string]tools.ITool
	order []string
}

// NewLocalSession creates a session serving the given tools.
func NewLocalSession(name string, list ...tools.ITool) *LocalSession {
	s := &LocalSession{
		name:  name,
		tools: make(map[string]tools.ITool, len(list)),
	}
	for _, t := range list {
		if _, ok := s.tools[t.Name()]; !ok {
			s.order = append(s.order, t.Name())
		}
		s.tools[t.Name()] = t
	}
	return s
}

var _ mcp.Session = (*LocalSession)(nil)

// Initialize implements Session. There is no handshake to perform.
func (s *LocalSession) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		ServerInfo: mcp.Implementation{
			Name:    s.name,
			Version: "local",
		},
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{},
		},
	}, nil
}

// ListTools implements Session.
func (s *LocalSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	out := make([]mcp.Tool, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		schema, err := json.Marshal(t.Parameters())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal schema for tool %q", name)
		}
		out = append(out, mcp.Tool{
			Name:        name,
			Description: t.Description(),
			InputSchema: schema,
		})
	}
	return out, nil
}

// CallTool implements Session. Tool execution errors come back as an
// error result rather than a Go error, matching remote server behavior.
func (s *LocalSession) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcp.CallToolResult, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, errors.Newf("unknown tool: %q", name)
	}

	input, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal arguments")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := t.Call(ctx, string(input))
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{{Type: "text", Text: err.Error()}},
		}, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{{Type: "text", Text: res}},
	}, nil
}

// Close implements Session.
func (s *LocalSession) Close() error {
	return nil
}

// AddLocal registers an in-process tool server without dialing anything.
// It shares the registry namespace with remote servers, so its tools get
// the same server__tool qualified names.
func (r *Registry) AddLocal(ctx context.Context, name string, list ...tools.ITool) (*Connection, error) {
	return r.AddSession(ctx, name, NewLocalSession(name, list...))
}

// AddSession registers an already constructed session under the given
// name, running only the initialize handshake and tool discovery. It
// serves custom transports and tests.
func (r *Registry) AddSession(ctx context.Context, name string, sess mcp.Session) (*Connection, error) {
	res, err := sess.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	toolList, err := sess.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		Name:       name,
		Config:     &ServerConfig{Name: name},
		Session:    sess,
		ServerInfo: res.ServerInfo,
		Tools:      toolList,
	}

	r.mu.Lock()
	prev := r.conns[name]
	r.conns[name] = conn
	if prev == nil {
		r.order = append(r.order, name)
	}
	r.mu.Unlock()

	if prev != nil {
		_ = prev.Session.Close()
	}
	return conn, nil
}
