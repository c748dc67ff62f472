// Package mcpclient manages connections to MCP servers and flattens their
// tools into a single catalog the agent can dispatch against.
package mcpclient

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
)

// TransportType selects how a server connection is established.
type TransportType string

const (
	TransportStdio      TransportType = "stdio"
	TransportSSE        TransportType = "sse"
	TransportStreamHTTP TransportType = "streamhttp"
)

const (
	// DefaultRetryAttempts is the number of extra connect attempts after
	// the first failure.
	DefaultRetryAttempts = 2
	// DefaultRetryDelay is the pause between connect attempts.
	DefaultRetryDelay = 2 * time.Second
)

// ServerConfig describes one MCP server to connect to.
type ServerConfig struct {
	// Name identifies the server; it prefixes every tool the server
	// exposes, so it must be unique within a registry.
	Name string `json:"name" yaml:"name" toml:"name" validate:"required"`

	// Transport selects the connection type: stdio, sse, or streamhttp.
	Transport TransportType `json:"transport" yaml:"transport" toml:"transport" validate:"required,oneof=stdio sse streamhttp"`

	// Command and friends configure a stdio child process.
	Command string            `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
	Dir     string            `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`

	// URL and Headers configure HTTP based transports.
	URL     string            `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty" validate:"omitempty,url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`

	// RetryAttempts is the number of extra connect attempts after the
	// first failure. Nil means DefaultRetryAttempts.
	RetryAttempts *int `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty" toml:"retry_attempts,omitempty"`
	// RetryDelay is the pause between connect attempts.
	RetryDelay time.Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty" toml:"retry_delay,omitempty"`
}

// Validate checks transport specific requirements that struct tags
// cannot express.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return errors.New("server name is required")
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return errors.Newf("server %q: command is required for stdio transport", c.Name)
		}
	case TransportSSE, TransportStreamHTTP:
		if c.URL == "" {
			return errors.Newf("server %q: url is required for %s transport", c.Name, c.Transport)
		}
	default:
		return errors.Newf("server %q: unsupported transport: %s", c.Name, c.Transport)
	}
	return nil
}

func (c *ServerConfig) retryAttempts() int {
	if c.RetryAttempts != nil {
		return max(*c.RetryAttempts, 0)
	}
	return DefaultRetryAttempts
}

func (c *ServerConfig) retryDelay() time.Duration {
	return values.NumbersCoalesce(c.RetryDelay, DefaultRetryDelay)
}
