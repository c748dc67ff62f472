package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

const sessionIDHeader = "Mcp-Session-Id"

// StreamableHTTP speaks the streamable HTTP MCP transport: every outgoing
// frame is a POST, and the response body carries related server frames
// either as a single JSON document or as an SSE stream. The server may
// assign a session via the Mcp-Session-Id header, which is echoed on all
// subsequent requests.
type StreamableHTTP struct {
	url     string
	headers map[string]string
	client  *http.Client

	messageHandler func(ctx context.Context, frame []byte)
	errorHandler   func(err error)
	closeHandler   func()

	mu        sync.Mutex
	sessionID string
	started   bool

	closeOnce sync.Once
}

// NewStreamableHTTP creates a streamable HTTP transport for the given
// endpoint URL.
func NewStreamableHTTP(rawURL string, headers map[string]string, client *http.Client) *StreamableHTTP {
	if client == nil {
		client = &http.Client{}
	}
	return &StreamableHTTP{
		url:     rawURL,
		headers: headers,
		client:  client,
	}
}

// SetMessageHandler implements Transport.
func (t *StreamableHTTP) SetMessageHandler(handler func(ctx context.Context, frame []byte)) {
	t.messageHandler = handler
}

// SetErrorHandler implements Transport.
func (t *StreamableHTTP) SetErrorHandler(handler func(err error)) {
	t.errorHandler = handler
}

// SetCloseHandler implements Transport.
func (t *StreamableHTTP) SetCloseHandler(handler func()) {
	t.closeHandler = handler
}

// Start implements Transport. The transport is request driven, so there is
// no standing connection to open.
func (t *StreamableHTTP) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("streamable http transport already started")
	}
	t.started = true
	return nil
}

// Send implements Transport: POSTs one frame and feeds any response frames
// back through the message handler.
func (t *StreamableHTTP) Send(ctx context.Context, frame []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(frame))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	t.mu.Lock()
	if t.sessionID != "" {
		req.Header.Set(sessionIDHeader, t.sessionID)
	}
	t.mu.Unlock()

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to post frame")
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get(sessionIDHeader); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		// Notification accepted, nothing to read back.
		return nil
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Newf("endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/event-stream") {
		t.readEventStream(ctx, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	if len(bytes.TrimSpace(body)) > 0 && t.messageHandler != nil {
		t.messageHandler(ctx, body)
	}
	return nil
}

func (t *StreamableHTTP) readEventStream(ctx context.Context, body io.Reader) {
	var data string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" && t.messageHandler != nil {
				t.messageHandler(ctx, []byte(data))
			}
			data = ""
		case strings.HasPrefix(line, "data:"):
			if data != "" {
				data += "\n"
			}
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil && t.errorHandler != nil {
		t.errorHandler(errors.Wrap(err, "response stream read error"))
	}
}

// Close implements Transport: best effort session delete on the server.
func (t *StreamableHTTP) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		sid := t.sessionID
		t.mu.Unlock()

		if sid != "" {
			req, err := http.NewRequest(http.MethodDelete, t.url, nil)
			if err == nil {
				req.Header.Set(sessionIDHeader, sid)
				for k, v := range t.headers {
					req.Header.Set(k, v)
				}
				if resp, err := t.client.Do(req); err == nil {
					_ = resp.Body.Close()
				}
			}
		}
		if t.closeHandler != nil {
			t.closeHandler()
		}
	})
	return nil
}

var _ Transport = (*StreamableHTTP)(nil)
