package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// SSE speaks the HTTP+SSE MCP transport: a long-lived GET stream delivers
// server frames as "message" events, and the first "endpoint" event names
// the URL the client POSTs its own frames to.
type SSE struct {
	url     string
	headers map[string]string
	client  *http.Client

	messageHandler func(ctx context.Context, frame []byte)
	errorHandler   func(err error)
	closeHandler   func()

	mu       sync.Mutex
	endpoint string
	body     io.Closer
	started  bool

	endpointReady chan struct{}
	closeOnce     sync.Once
	cancel        context.CancelFunc
}

// NewSSE creates an SSE transport for the given stream URL.
func NewSSE(rawURL string, headers map[string]string, client *http.Client) *SSE {
	if client == nil {
		client = &http.Client{}
	}
	return &SSE{
		url:           rawURL,
		headers:       headers,
		client:        client,
		endpointReady: make(chan struct{}),
	}
}

// SetMessageHandler implements Transport.
func (t *SSE) SetMessageHandler(handler func(ctx context.Context, frame []byte)) {
	t.messageHandler = handler
}

// SetErrorHandler implements Transport.
func (t *SSE) SetErrorHandler(handler func(err error)) {
	t.errorHandler = handler
}

// SetCloseHandler implements Transport.
func (t *SSE) SetCloseHandler(handler func()) {
	t.closeHandler = handler
}

// Start implements Transport: opens the event stream and waits for the
// server to announce the message endpoint.
func (t *SSE) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("sse transport already started")
	}
	t.started = true
	t.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.url, nil)
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to create stream request")
	}
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to open event stream")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return errors.Newf("event stream returned status %d", resp.StatusCode)
	}

	t.mu.Lock()
	t.body = resp.Body
	t.mu.Unlock()

	go t.readLoop(streamCtx, resp.Body)

	select {
	case <-t.endpointReady:
		return nil
	case <-time.After(30 * time.Second):
		t.Close()
		return errors.New("timed out waiting for endpoint event")
	case <-ctx.Done():
		t.Close()
		return errors.Wrap(ctx.Err(), "waiting for endpoint event")
	}
}

func (t *SSE) readLoop(ctx context.Context, body io.Reader) {
	var event, data string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	dispatch := func() {
		switch event {
		case "endpoint":
			t.setEndpoint(ctx, data)
		case "message", "":
			if data != "" && t.messageHandler != nil {
				t.messageHandler(ctx, []byte(data))
			}
		}
		event, data = "", ""
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data != "" {
				data += "\n"
			}
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && t.errorHandler != nil {
		t.errorHandler(errors.Wrap(err, "event stream read error"))
	}
	if t.closeHandler != nil {
		t.closeHandler()
	}
}

func (t *SSE) setEndpoint(ctx context.Context, raw string) {
	base, err := url.Parse(t.url)
	if err != nil {
		return
	}
	ref, err := url.Parse(raw)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "reason", "bad_endpoint", "endpoint", raw)
		return
	}

	t.mu.Lock()
	first := t.endpoint == ""
	t.endpoint = base.ResolveReference(ref).String()
	t.mu.Unlock()

	if first {
		close(t.endpointReady)
	}
}

// Send implements Transport: POSTs one frame to the announced endpoint.
func (t *SSE) Send(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	endpoint := t.endpoint
	t.mu.Unlock()
	if endpoint == "" {
		return errors.New("endpoint not announced yet")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(frame))
	if err != nil {
		return errors.Wrap(err, "failed to create message request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to post message")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return errors.Newf("message endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Close implements Transport.
func (t *SSE) Close() error {
	t.closeOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		t.mu.Lock()
		body := t.body
		t.mu.Unlock()
		if body != nil {
			_ = body.Close()
		}
	})
	return nil
}

var _ Transport = (*SSE)(nil)
