// Package mcp implements the client side of the Model Context Protocol:
// the JSON-RPC framing, the initialize handshake, and the tools/list and
// tools/call operations used by this repository. Transports carrying the
// protocol live in the transport subpackage.
package mcp

import (
	"encoding/json"
)

// Protocol method names.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodListTools   = "tools/list"
	MethodCallTool    = "tools/call"
	MethodPing        = "ping"
)

// ProtocolVersion is the protocol revision this client speaks.
const ProtocolVersion = "2025-03-26"

// Implementation describes a protocol party.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities advertises what the client supports.
// This client does not expose roots or sampling.
type ClientCapabilities struct {
	Experimental map[string]any `json:"experimental,omitempty"`
}

// ServerCapabilities is what the server advertised during the handshake.
type ServerCapabilities struct {
	Tools     *ToolsCapability `json:"tools,omitempty"`
	Prompts   map[string]any   `json:"prompts,omitempty"`
	Resources map[string]any   `json:"resources,omitempty"`
	Logging   map[string]any   `json:"logging,omitempty"`
}

// ToolsCapability describes server tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the server's handshake acknowledgment.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Tool is a tool advertised by a server. InputSchema is a JSON Schema
// kept raw: it is passed through to the model untouched.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsParams is the payload of a tools/list request.
type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListToolsResult is the payload of a tools/list response.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams is the payload of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Content is one item of a tool result: text, image, audio or an
// embedded resource. Only fields matching Type are populated.
type Content struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// CallToolResult is the payload of a tools/call response.
// IsError marks tool-level failures reported in-band by the server.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// JoinedText concatenates the text items of the result.
func (r *CallToolResult) JoinedText() string {
	var out string
	for _, c := range r.Content {
		if c.Type == "text" {
			out += c.Text
		}
	}
	return out
}
