package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/mcp/transport"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "mcp")

// DefaultRequestTimeout bounds a single RPC round trip when the caller
// supplies no tighter deadline.
const DefaultRequestTimeout = 60 * time.Second

// Session is a live protocol session with one tool server.
//
// Initialize must complete before ListTools or CallTool. CallTool's
// timeout, when positive, bounds only that invocation. Close is
// idempotent and fails any in-flight requests.
type Session interface {
	// Initialize performs the protocol handshake.
	Initialize(ctx context.Context) (*InitializeResult, error)
	// ListTools fetches the server's advertised tools.
	ListTools(ctx context.Context) ([]Tool, error)
	// CallTool invokes a tool. A server-reported tool failure is returned
	// as a result with IsError set, not as an error.
	CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*CallToolResult, error)
	// Close tears the session down.
	Close() error
}

// ClientSession is the JSON-RPC Session implementation over a Transport.
type ClientSession struct {
	tr      transport.Transport
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan *Response
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewClientSession wires a session to the transport and starts reading.
// The caller still owns the handshake via Initialize.
func NewClientSession(ctx context.Context, tr transport.Transport) (*ClientSession, error) {
	s := &ClientSession{
		tr:      tr,
		timeout: DefaultRequestTimeout,
		pending: make(map[string]chan *Response),
		done:    make(chan struct{}),
	}

	tr.SetMessageHandler(s.handleFrame)
	tr.SetErrorHandler(func(err error) {
		logger.ContextKV(ctx, xlog.WARNING, "reason", "transport_error", "err", err.Error())
	})
	tr.SetCloseHandler(func() {
		s.failPending(errors.New("connection closed"))
	})

	if err := tr.Start(ctx); err != nil {
		return nil, errors.WithMessage(err, "failed to start transport")
	}
	return s, nil
}

// WithTimeout overrides the default per-request timeout.
func (s *ClientSession) WithTimeout(timeout time.Duration) *ClientSession {
	s.timeout = timeout
	return s
}

func (s *ClientSession) handleFrame(ctx context.Context, frame []byte) {
	msg, err := DecodeMessage(frame)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "reason", "bad_frame", "err", err.Error())
		return
	}

	switch msg.Kind {
	case KindResponse:
		s.mu.Lock()
		ch := s.pending[msg.Response.ID]
		delete(s.pending, msg.Response.ID)
		s.mu.Unlock()
		if ch != nil {
			ch <- msg.Response
		}
	case KindRequest:
		// The only server-to-client request this client answers is ping.
		if msg.Notification.Method == MethodPing {
			var probe struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(frame, &probe)
			s.respondEmpty(ctx, probe.ID)
		}
	case KindNotification:
		logger.ContextKV(ctx, xlog.DEBUG, "notification", msg.Notification.Method)
	}
}

func (s *ClientSession) respondEmpty(ctx context.Context, id string) {
	frame, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  map[string]any{},
	})
	_ = s.tr.Send(ctx, frame)
}

func (s *ClientSession) failPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.pending {
		ch <- &Response{ID: id, Error: &RPCError{Code: -32000, Message: err.Error()}}
		delete(s.pending, id)
	}
}

// request performs one RPC round trip.
func (s *ClientSession) request(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = s.timeout
	}

	id := uuid.NewString()
	ch := make(chan *Response, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("session is closed")
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	frame, err := json.Marshal(&Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.tr.Send(ctx, frame); err != nil {
		return nil, errors.WithMessagef(err, "failed to send %s request", method)
	}

	select {
	case <-ctx.Done():
		return nil, errors.WithMessagef(ctx.Err(), "%s request", method)
	case <-s.done:
		return nil, errors.New("session is closed")
	case resp := <-ch:
		if resp.Error != nil {
			return nil, errors.WithMessagef(resp.Error, "%s request failed", method)
		}
		return resp.Result, nil
	}
}

// notify sends a one-way message.
func (s *ClientSession) notify(ctx context.Context, method string, params any) error {
	frame, err := json.Marshal(&Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}
	return s.tr.Send(ctx, frame)
}

// Initialize implements Session.
func (s *ClientSession) Initialize(ctx context.Context) (*InitializeResult, error) {
	raw, err := s.request(ctx, MethodInitialize, &InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo: Implementation{
			Name:    "mcpchat",
			Version: "1.0.0",
		},
	}, 0)
	if err != nil {
		return nil, err
	}

	var res InitializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "invalid initialize result")
	}

	if err := s.notify(ctx, MethodInitialized, struct{}{}); err != nil {
		return nil, errors.WithMessage(err, "failed to confirm handshake")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"server", res.ServerInfo.Name,
		"version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion,
	)
	return &res, nil
}

// ListTools implements Session, following pagination cursors.
func (s *ClientSession) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	cursor := ""
	for {
		raw, err := s.request(ctx, MethodListTools, &ListToolsParams{Cursor: cursor}, 0)
		if err != nil {
			return nil, err
		}
		var res ListToolsResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, errors.Wrap(err, "invalid tools/list result")
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		cursor = res.NextCursor
	}
}

// CallTool implements Session.
func (s *ClientSession) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*CallToolResult, error) {
	raw, err := s.request(ctx, MethodCallTool, &CallToolParams{
		Name:      name,
		Arguments: args,
	}, timeout)
	if err != nil {
		return nil, err
	}

	var res CallToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "invalid tools/call result")
	}
	return &res, nil
}

// Close implements Session.
func (s *ClientSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		s.failPending(errors.New("session is closed"))
		err = s.tr.Close()
	})
	return err
}

var _ Session = (*ClientSession)(nil)
