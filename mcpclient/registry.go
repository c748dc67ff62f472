package mcpclient

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/mcp"
	"github.com/effective-security/mcpchat/mcp/transport"
	"github.com/effective-security/mcpchat/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "mcpclient")

// ErrServerNotFound is returned when a lookup or removal names a server
// the registry does not hold.
var ErrServerNotFound = errors.New("server not found")

// ConnectionError reports a failed server connection after all retry
// attempts were exhausted.
type ConnectionError struct {
	Server    string
	Transport TransportType
	Attempts  int
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to server %s over %s after %d attempts: %s",
		e.Server, e.Transport, e.Attempts, e.Err.Error())
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Connection is a live server connection with its discovered state.
type Connection struct {
	Name       string
	Config     *ServerConfig
	Session    mcp.Session
	ServerInfo mcp.Implementation
	Tools      []mcp.Tool
}

// dialFunc connects, performs the initialize handshake, and lists tools.
// It is a field so tests can substitute in-memory sessions.
type dialFunc func(ctx context.Context, cfg *ServerConfig) (*Connection, error)

// Registry tracks live connections to MCP servers by name.
//
// The mutex guards only the map and insertion order; dialing and
// closing sessions happen outside the lock so a slow server cannot
// block lookups.
type Registry struct {
	dial       dialFunc
	httpClient *http.Client

	mu    sync.Mutex
	conns map[string]*Connection
	order []string
}

// RegistryOption customizes a Registry.
type RegistryOption func(r *Registry)

// WithHTTPClient sets the HTTP client used by SSE and streamable HTTP
// transports.
func WithHTTPClient(client *http.Client) RegistryOption {
	return func(r *Registry) {
		r.httpClient = client
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		conns: make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dial == nil {
		r.dial = r.dialServer
	}
	return r
}

// Add connects to the configured server, retrying on failure, and
// registers the connection under its name. An existing connection with
// the same name is closed and replaced.
func (r *Registry) Add(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	defer metricskey.PerfServerConnect.MeasureSince(time.Now(), cfg.Name)

	attempts := cfg.retryAttempts() + 1
	delay := cfg.retryDelay()

	var conn *Connection
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err = r.dial(ctx, cfg)
		if err == nil {
			break
		}
		logger.ContextKV(ctx, xlog.WARNING,
			"server", cfg.Name,
			"attempt", attempt,
			"err", err.Error())
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			err = errors.Wrap(ctx.Err(), "connect cancelled")
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		metricskey.StatsServerConnectsFailed.IncrCounter(1, cfg.Name, string(cfg.Transport))
		return nil, &ConnectionError{Server: cfg.Name, Transport: cfg.Transport, Attempts: attempts, Err: err}
	}

	r.mu.Lock()
	prev := r.conns[cfg.Name]
	r.conns[cfg.Name] = conn
	if prev == nil {
		r.order = append(r.order, cfg.Name)
	}
	r.mu.Unlock()

	if prev != nil {
		if cerr := prev.Session.Close(); cerr != nil {
			logger.ContextKV(ctx, xlog.WARNING, "server", cfg.Name, "reason", "close_replaced", "err", cerr.Error())
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"server", cfg.Name,
		"server_name", conn.ServerInfo.Name,
		"server_version", conn.ServerInfo.Version,
		"tools", len(conn.Tools))
	return conn, nil
}

// AddAll connects every configured server. When failFast is set the
// first failure aborts and already established connections are torn
// down; otherwise failures are collected and returned combined while
// successful connections stay registered.
func (r *Registry) AddAll(ctx context.Context, cfgs []*ServerConfig, failFast bool) error {
	var combined error
	for _, cfg := range cfgs {
		if _, err := r.Add(ctx, cfg); err != nil {
			if failFast {
				return errors.CombineErrors(err, r.CloseAll())
			}
			combined = errors.Join(combined, err)
		}
	}
	return combined
}

// Lookup returns the connection registered under name.
func (r *Registry) Lookup(name string) (*Connection, error) {
	r.mu.Lock()
	conn, ok := r.conns[name]
	r.mu.Unlock()
	if !ok {
		return nil, errors.WithMessagef(ErrServerNotFound, "server %q", name)
	}
	return conn, nil
}

// Names returns the registered server names in insertion order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Connections returns all registered connections in insertion order.
func (r *Registry) Connections() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*Connection, 0, len(r.order))
	for _, name := range r.order {
		conns = append(conns, r.conns[name])
	}
	return conns
}

// Remove unregisters the named server and closes its session. It
// returns ErrServerNotFound when no such server is registered; a close
// failure is reported but the server is unregistered regardless.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	conn, ok := r.conns[name]
	if ok {
		delete(r.conns, name)
		if idx := slices.Index(r.order, name); idx >= 0 {
			r.order = slices.Delete(r.order, idx, idx+1)
		}
	}
	r.mu.Unlock()

	if !ok {
		return errors.WithMessagef(ErrServerNotFound, "server %q", name)
	}
	if err := conn.Session.Close(); err != nil {
		return errors.WithMessagef(err, "failed to close server %q", name)
	}
	return nil
}

// CloseAll tears down every connection in reverse insertion order,
// mirroring the order dependent servers were brought up. Every close
// error stays visible in the combined message; teardown never stops
// early.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		conns = append(conns, r.conns[r.order[i]])
	}
	r.conns = make(map[string]*Connection)
	r.order = nil
	r.mu.Unlock()

	var combined error
	for _, conn := range conns {
		if err := conn.Session.Close(); err != nil {
			combined = errors.Join(combined,
				errors.WithMessagef(err, "failed to close server %q", conn.Name))
		}
	}
	return combined
}

// dialServer is the production dial path: build the transport, open the
// session, run the initialize handshake, and discover tools.
func (r *Registry) dialServer(ctx context.Context, cfg *ServerConfig) (*Connection, error) {
	var tr transport.Transport
	switch cfg.Transport {
	case TransportStdio:
		tr = transport.NewStdio(cfg.Command, cfg.Args, stdioEnv(cfg.Env), cfg.Dir)
	case TransportSSE:
		tr = transport.NewSSE(cfg.URL, cfg.Headers, r.httpClient)
	case TransportStreamHTTP:
		tr = transport.NewStreamableHTTP(cfg.URL, cfg.Headers, r.httpClient)
	default:
		return nil, errors.Newf("unsupported transport: %s", cfg.Transport)
	}

	sess, err := mcp.NewClientSession(ctx, tr)
	if err != nil {
		return nil, err
	}

	res, err := sess.Initialize(ctx)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	toolList, err := sess.ListTools(ctx)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	return &Connection{
		Name:       cfg.Name,
		Config:     cfg,
		Session:    sess,
		ServerInfo: res.ServerInfo,
		Tools:      toolList,
	}, nil
}

// stdioEnv renders configured environment variables in the k=v form
// expected by exec, sorted for deterministic child environments.
func stdioEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}
