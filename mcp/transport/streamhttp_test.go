package transport_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/effective-security/mcpchat/mcp/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_StreamableHTTPJSONResponse(t *testing.T) {
	var mu sync.Mutex
	var sessionIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		sessionIDs = append(sessionIDs, r.Header.Get("Mcp-Session-Id"))
		mu.Unlock()

		w.Header().Set("Mcp-Session-Id", "sess-1")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"1","result":{"ok":true}}`)
	}))
	t.Cleanup(srv.Close)

	frames := make(chan []byte, 4)
	tr := transport.NewStreamableHTTP(srv.URL, nil, srv.Client())
	tr.SetMessageHandler(func(ctx context.Context, frame []byte) {
		frames <- frame
	})
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":"1","method":"initialize"}`)))
	select {
	case frame := <-frames:
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":"1","result":{"ok":true}}`, string(frame))
	default:
		t.Fatal("response frame not delivered")
	}

	// the assigned session id is echoed on the next request
	require.NoError(t, tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":"2","method":"tools/list"}`)))
	mu.Lock()
	require.Len(t, sessionIDs, 2)
	assert.Empty(t, sessionIDs[0])
	assert.Equal(t, "sess-1", sessionIDs[1])
	mu.Unlock()
}

func Test_StreamableHTTPAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	delivered := 0
	tr := transport.NewStreamableHTTP(srv.URL, nil, srv.Client())
	tr.SetMessageHandler(func(ctx context.Context, frame []byte) { delivered++ })
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	assert.Equal(t, 0, delivered)
}

func Test_StreamableHTTPEventStreamResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n")
		fmt.Fprint(w, "data: {\"jsonrpc\":\"2.0\",\"id\":\"1\",\"result\":{}}\n\n")
	}))
	t.Cleanup(srv.Close)

	var frames [][]byte
	tr := transport.NewStreamableHTTP(srv.URL, nil, srv.Client())
	tr.SetMessageHandler(func(ctx context.Context, frame []byte) {
		frames = append(frames, frame)
	})
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":"1","method":"tools/call"}`)))
	require.Len(t, frames, 2)
	assert.Contains(t, string(frames[0]), "notifications/progress")
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"1","result":{}}`, string(frames[1]))
}

func Test_StreamableHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	tr := transport.NewStreamableHTTP(srv.URL, nil, srv.Client())
	tr.SetMessageHandler(func(ctx context.Context, frame []byte) {})
	require.NoError(t, tr.Start(context.Background()))

	err := tr.Send(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "session expired")
}

func Test_StreamableHTTPCloseDeletesSession(t *testing.T) {
	var mu sync.Mutex
	var deletes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			mu.Lock()
			deletes = append(deletes, r.Header.Get("Mcp-Session-Id"))
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Mcp-Session-Id", "sess-9")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.Copy(io.Discard, r.Body)
	}))
	t.Cleanup(srv.Close)

	closed := false
	tr := transport.NewStreamableHTTP(srv.URL, nil, srv.Client())
	tr.SetMessageHandler(func(ctx context.Context, frame []byte) {})
	tr.SetCloseHandler(func() { closed = true })
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, tr.Send(context.Background(), []byte(`{}`)))
	require.NoError(t, tr.Close())
	// Close is idempotent
	require.NoError(t, tr.Close())

	mu.Lock()
	require.Len(t, deletes, 1)
	assert.Equal(t, "sess-9", deletes[0])
	mu.Unlock()
	assert.True(t, closed)
}
