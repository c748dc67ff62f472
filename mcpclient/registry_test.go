package mcpclient

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSession struct {
	closed   int
	closeErr error
}

func (s *stubSession) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (s *stubSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return nil, nil
}

func (s *stubSession) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}

func (s *stubSession) Close() error {
	s.closed++
	return s.closeErr
}

func stdioConfig(name string, retries int) *ServerConfig {
	return &ServerConfig{
		Name:          name,
		Transport:     TransportStdio,
		Command:       "true",
		RetryAttempts: &retries,
		RetryDelay:    time.Millisecond,
	}
}

func Test_RegistryRetry(t *testing.T) {
	sess := &stubSession{}
	dials := 0
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		dials++
		if dials < 2 {
			return nil, errors.New("connection refused")
		}
		return &Connection{Name: cfg.Name, Config: cfg, Session: sess}, nil
	}

	conn, err := r.Add(context.Background(), stdioConfig("files", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
	assert.Equal(t, "files", conn.Name)

	got, err := r.Lookup("files")
	require.NoError(t, err)
	assert.Same(t, conn, got)
}

func Test_RegistryRetryExhausted(t *testing.T) {
	dials := 0
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		dials++
		return nil, errors.New("connection refused")
	}

	_, err := r.Add(context.Background(), stdioConfig("files", 2))
	require.Error(t, err)
	// 1 initial attempt + 2 retries
	assert.Equal(t, 3, dials)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "files", connErr.Server)
	assert.Equal(t, TransportStdio, connErr.Transport)
	assert.Equal(t, 3, connErr.Attempts)
	assert.Equal(t, "failed to connect to server files over stdio after 3 attempts: connection refused", connErr.Error())

	// nothing was registered
	_, err = r.Lookup("files")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func Test_RegistryReplaceClosesPrevious(t *testing.T) {
	first := &stubSession{}
	second := &stubSession{}
	sessions := []*stubSession{first, second}
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		sess := sessions[0]
		sessions = sessions[1:]
		return &Connection{Name: cfg.Name, Config: cfg, Session: sess}, nil
	}

	_, err := r.Add(context.Background(), stdioConfig("files", 0))
	require.NoError(t, err)
	_, err = r.Add(context.Background(), stdioConfig("files", 0))
	require.NoError(t, err)

	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 0, second.closed)
	assert.Equal(t, []string{"files"}, r.Names())
}

func Test_RegistryRemove(t *testing.T) {
	sess := &stubSession{}
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		return &Connection{Name: cfg.Name, Config: cfg, Session: sess}, nil
	}

	_, err := r.Add(context.Background(), stdioConfig("files", 0))
	require.NoError(t, err)

	require.NoError(t, r.Remove("files"))
	assert.Equal(t, 1, sess.closed)
	assert.Empty(t, r.Names())

	err = r.Remove("files")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func Test_RegistryRemoveClosesDespiteError(t *testing.T) {
	sess := &stubSession{closeErr: errors.New("broken pipe")}
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		return &Connection{Name: cfg.Name, Config: cfg, Session: sess}, nil
	}

	_, err := r.Add(context.Background(), stdioConfig("files", 0))
	require.NoError(t, err)

	err = r.Remove("files")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	// unregistered even though close failed
	_, err = r.Lookup("files")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func Test_RegistryCloseAllReverseOrder(t *testing.T) {
	var closedOrder []string
	newSess := func(name string) mcp.Session {
		return &orderedSession{name: name, order: &closedOrder}
	}
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		return &Connection{Name: cfg.Name, Config: cfg, Session: newSess(cfg.Name)}, nil
	}

	for _, name := range []string{"a", "b", "c"} {
		_, err := r.Add(context.Background(), stdioConfig(name, 0))
		require.NoError(t, err)
	}
	require.Equal(t, []string{"a", "b", "c"}, r.Names())

	require.NoError(t, r.CloseAll())
	assert.Equal(t, []string{"c", "b", "a"}, closedOrder)
	assert.Empty(t, r.Names())
}

func Test_RegistryCloseAllCombinesErrors(t *testing.T) {
	bad := &stubSession{closeErr: errors.New("close a failed")}
	alsoBad := &stubSession{closeErr: errors.New("close b failed")}
	sessions := map[string]mcp.Session{"a": bad, "b": alsoBad}
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		return &Connection{Name: cfg.Name, Config: cfg, Session: sessions[cfg.Name]}, nil
	}

	for _, name := range []string{"a", "b"} {
		_, err := r.Add(context.Background(), stdioConfig(name, 0))
		require.NoError(t, err)
	}

	err := r.CloseAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close a failed")
	assert.Contains(t, err.Error(), "close b failed")
	assert.Equal(t, 1, bad.closed)
	assert.Equal(t, 1, alsoBad.closed)
}

func Test_RegistryAddAll(t *testing.T) {
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		if cfg.Name == "bad" {
			return nil, errors.New("unreachable")
		}
		return &Connection{Name: cfg.Name, Config: cfg, Session: &stubSession{}}, nil
	}

	cfgs := []*ServerConfig{
		stdioConfig("good", 0),
		stdioConfig("bad", 0),
		stdioConfig("other", 0),
	}

	err := r.AddAll(context.Background(), cfgs, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	// survivors stay registered
	assert.Equal(t, []string{"good", "other"}, r.Names())
}

func Test_RegistryAddAllFailFast(t *testing.T) {
	good := &stubSession{}
	r := NewRegistry()
	r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
		if cfg.Name == "bad" {
			return nil, errors.New("unreachable")
		}
		return &Connection{Name: cfg.Name, Config: cfg, Session: good}, nil
	}

	err := r.AddAll(context.Background(), []*ServerConfig{
		stdioConfig("good", 0),
		stdioConfig("bad", 0),
	}, true)
	require.Error(t, err)
	// fail-fast tears down what was already connected
	assert.Equal(t, 1, good.closed)
	assert.Empty(t, r.Names())
}

func Test_RegistryAddInvalidConfig(t *testing.T) {
	r := NewRegistry()
	_, err := r.Add(context.Background(), &ServerConfig{Name: "x", Transport: TransportStdio})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command")
}

func Test_RegistryRemoveRacingLookup(t *testing.T) {
	// Remove unregisters before it closes, so once a session is observed
	// closed, a lookup must fail rather than hand out the dead handle.
	for range 50 {
		sess := &raceSession{}
		r := NewRegistry()
		r.dial = func(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
			return &Connection{Name: cfg.Name, Config: cfg, Session: sess}, nil
		}
		_, err := r.Add(context.Background(), stdioConfig("files", 0))
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = r.Remove("files")
		}()

		for {
			closedBefore := sess.closed.Load()
			conn, err := r.Lookup("files")
			if closedBefore {
				assert.ErrorIs(t, err, ErrServerNotFound)
				break
			}
			if err != nil {
				assert.ErrorIs(t, err, ErrServerNotFound)
				break
			}
			require.NotNil(t, conn.Session)
		}
		<-done
		assert.True(t, sess.closed.Load())
	}
}

func Test_StdioEnv(t *testing.T) {
	assert.Nil(t, stdioEnv(nil))
	assert.Equal(t,
		[]string{"A=1", "B=2", "PATH=/usr/bin"},
		stdioEnv(map[string]string{"PATH": "/usr/bin", "B": "2", "A": "1"}))
}

type raceSession struct {
	closed atomic.Bool
}

func (s *raceSession) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (s *raceSession) ListTools(ctx context.Context) ([]mcp.Tool, error) { return nil, nil }

func (s *raceSession) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}

func (s *raceSession) Close() error {
	s.closed.Store(true)
	return nil
}

type orderedSession struct {
	name  string
	order *[]string
}

func (s *orderedSession) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (s *orderedSession) ListTools(ctx context.Context) ([]mcp.Tool, error) { return nil, nil }

func (s *orderedSession) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}

func (s *orderedSession) Close() error {
	*s.order = append(*s.order, s.name)
	return nil
}
