// Package transport provides the client-side channels that carry MCP
// JSON-RPC frames: a child process over stdio, an SSE endpoint pair, and
// the streamable HTTP transport. Transports move opaque frames; all
// protocol interpretation happens in the mcp package.
package transport

import (
	"context"
)

// Transport is a bidirectional frame channel to one MCP server.
//
// Start begins reading; incoming frames are delivered to the message
// handler, read failures to the error handler, and end-of-stream to the
// close handler. Handlers must be set before Start. Close is idempotent.
type Transport interface {
	// Start establishes the channel and begins delivering incoming frames.
	Start(ctx context.Context) error
	// Send transmits one JSON-RPC frame.
	Send(ctx context.Context, frame []byte) error
	// SetMessageHandler registers the callback for incoming frames.
	SetMessageHandler(handler func(ctx context.Context, frame []byte))
	// SetErrorHandler registers the callback for read errors.
	SetErrorHandler(handler func(err error))
	// SetCloseHandler registers the callback invoked when the channel ends.
	SetCloseHandler(handler func())
	// Close tears the channel down and releases its resources.
	Close() error
}
