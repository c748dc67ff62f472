package mcp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// JSON-RPC 2.0 framing for MCP messages. Request IDs are strings,
// minted by the session; servers echo them back verbatim.

// Request is an outgoing JSON-RPC request or, with an empty ID,
// a notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an incoming JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// Notification is an incoming one-way message.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MessageKind discriminates incoming frames.
type MessageKind int

const (
	KindResponse MessageKind = iota
	KindNotification
	KindRequest
)

// Message is a decoded incoming frame.
type Message struct {
	Kind         MessageKind
	Response     *Response
	Notification *Notification
}

// DecodeMessage parses one incoming JSON-RPC frame. Frames carrying a
// method and no result are notifications (or server-to-client requests,
// which this client treats the same way and ignores unless pinged).
func DecodeMessage(data []byte) (*Message, error) {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "invalid JSON-RPC frame")
	}

	if probe.Method != "" {
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, errors.Wrap(err, "invalid notification frame")
		}
		kind := KindNotification
		if len(probe.ID) > 0 && string(probe.ID) != "null" {
			kind = KindRequest
		}
		return &Message{Kind: kind, Notification: &n}, nil
	}

	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "invalid response frame")
	}
	return &Message{Kind: KindResponse, Response: &r}, nil
}
