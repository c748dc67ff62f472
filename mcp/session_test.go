package mcp_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/effective-security/mcpchat/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTransport is an in-memory Transport backed by a scripted server
// handler: every frame the client sends is passed to serve, and any
// frames serve returns are delivered back to the client.
type memTransport struct {
	serve func(frame []byte) [][]byte

	mu       sync.Mutex
	onFrame  func(ctx context.Context, frame []byte)
	onError  func(err error)
	onClose  func()
	started  bool
	closed   bool
	sent     [][]byte
	sendErr  error
	startErr error
}

func (t *memTransport) Start(ctx context.Context) error {
	if t.startErr != nil {
		return t.startErr
	}
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
	return nil
}

func (t *memTransport) Send(ctx context.Context, frame []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.mu.Lock()
	t.sent = append(t.sent, frame)
	serve := t.serve
	onFrame := t.onFrame
	t.mu.Unlock()

	if serve == nil {
		return nil
	}
	for _, reply := range serve(frame) {
		onFrame(ctx, reply)
	}
	return nil
}

func (t *memTransport) SetMessageHandler(handler func(ctx context.Context, frame []byte)) {
	t.onFrame = handler
}

func (t *memTransport) SetErrorHandler(handler func(err error)) {
	t.onError = handler
}

func (t *memTransport) SetCloseHandler(handler func()) {
	t.onClose = handler
}

func (t *memTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func decodeSent(t *testing.T, frame []byte) *mcp.Request {
	t.Helper()
	var req mcp.Request
	require.NoError(t, json.Unmarshal(frame, &req))
	return &req
}

func reply(t *testing.T, id string, result any) []byte {
	t.Helper()
	frame, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
	require.NoError(t, err)
	return frame
}

// toolServer scripts the standard handshake plus tool listing and calls.
func toolServer(t *testing.T, pages [][]mcp.Tool) func(frame []byte) [][]byte {
	t.Helper()
	page := 0
	return func(frame []byte) [][]byte {
		req := decodeSent(t, frame)
		switch req.Method {
		case mcp.MethodInitialize:
			return [][]byte{reply(t, req.ID, mcp.InitializeResult{
				ProtocolVersion: mcp.ProtocolVersion,
				ServerInfo:      mcp.Implementation{Name: "scripted", Version: "0.1"},
			})}
		case mcp.MethodInitialized:
			return nil
		case mcp.MethodListTools:
			res := mcp.ListToolsResult{Tools: pages[page]}
			if page < len(pages)-1 {
				page++
				res.NextCursor = "next"
			}
			return [][]byte{reply(t, req.ID, res)}
		case mcp.MethodCallTool:
			var params mcp.CallToolParams
			raw, _ := json.Marshal(req.Params)
			require.NoError(t, json.Unmarshal(raw, &params))
			return [][]byte{reply(t, req.ID, mcp.CallToolResult{
				Content: []mcp.Content{{Type: "text", Text: "called " + params.Name}},
			})}
		default:
			t.Fatalf("unexpected method %q", req.Method)
			return nil
		}
	}
}

func Test_SessionHandshake(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{serve: toolServer(t, [][]mcp.Tool{{}})}

	sess, err := mcp.NewClientSession(ctx, tr)
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "scripted", res.ServerInfo.Name)
	assert.Equal(t, mcp.ProtocolVersion, res.ProtocolVersion)

	// initialize request then initialized notification
	require.Len(t, tr.sent, 2)
	first := decodeSent(t, tr.sent[0])
	assert.Equal(t, mcp.MethodInitialize, first.Method)
	assert.NotEmpty(t, first.ID)
	second := decodeSent(t, tr.sent[1])
	assert.Equal(t, mcp.MethodInitialized, second.Method)
	assert.Empty(t, second.ID)
}

func Test_SessionListToolsPaginated(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{serve: toolServer(t, [][]mcp.Tool{
		{{Name: "one"}, {Name: "two"}},
		{{Name: "three"}},
	})}

	sess, err := mcp.NewClientSession(ctx, tr)
	require.NoError(t, err)
	defer sess.Close()

	list, err := sess.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "one", list[0].Name)
	assert.Equal(t, "three", list[2].Name)
}

func Test_SessionCallTool(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{serve: toolServer(t, [][]mcp.Tool{{}})}

	sess, err := mcp.NewClientSession(ctx, tr)
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.CallTool(ctx, "echo", map[string]any{"text": "hi"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "called echo", res.JoinedText())
}

func Test_SessionRPCError(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{serve: func(frame []byte) [][]byte {
		req := decodeSent(t, frame)
		out, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32602, "message": "bad params"},
		})
		return [][]byte{out}
	}}

	sess, err := mcp.NewClientSession(ctx, tr)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.CallTool(ctx, "echo", nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad params")
}

func Test_SessionPingReply(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{}

	sess, err := mcp.NewClientSession(ctx, tr)
	require.NoError(t, err)
	defer sess.Close()

	tr.onFrame(ctx, []byte(`{"jsonrpc":"2.0","id":"ping-1","method":"ping"}`))

	require.Len(t, tr.sent, 1)
	var resp mcp.Response
	require.NoError(t, json.Unmarshal(tr.sent[0], &resp))
	assert.Equal(t, "ping-1", resp.ID)
	assert.JSONEq(t, `{}`, string(resp.Result))
}

func Test_SessionCloseFailsPending(t *testing.T) {
	ctx := context.Background()
	// server never answers
	tr := &memTransport{serve: func(frame []byte) [][]byte { return nil }}

	sess, err := mcp.NewClientSession(ctx, tr)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.CallTool(ctx, "echo", nil, 10*time.Second)
		errCh <- err
	}()

	// let the request get registered before closing
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sess.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session is closed")
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was not failed on close")
	}

	assert.True(t, tr.closed)

	// further requests are rejected outright
	_, err = sess.CallTool(ctx, "echo", nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session is closed")
}

func Test_SessionRequestTimeout(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{serve: func(frame []byte) [][]byte { return nil }}

	sess, err := mcp.NewClientSession(ctx, tr)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.CallTool(ctx, "echo", nil, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline exceeded")
}
