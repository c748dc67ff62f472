package mcpclient

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/llms"
)

// ErrToolNotFound is returned when a qualified name resolves to a
// registered server that does not advertise the requested tool.
var ErrToolNotFound = errors.New("tool not found")

// ToolNameSeparator joins a server name and a tool name into the
// qualified name exposed to the model.
const ToolNameSeparator = "__"

// JoinToolName builds the qualified tool name for a server's tool.
func JoinToolName(server, tool string) string {
	return server + ToolNameSeparator + tool
}

// SplitToolName splits a qualified name into server and tool. The split
// happens at the first separator, so tool names may themselves contain
// the separator.
func SplitToolName(qualified string) (server, tool string, err error) {
	parts := strings.SplitN(qualified, ToolNameSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Newf("invalid tool name: %q", qualified)
	}
	return parts[0], parts[1], nil
}

// ToolDefinition is one server tool under its qualified name.
type ToolDefinition struct {
	// QualifiedName is the name the model sees: server__tool.
	QualifiedName string
	Server        string
	Name          string
	Description   string
	InputSchema   json.RawMessage
}

// Catalog flattens tools from every registered server into one
// namespace. It reads the registry on every call, so connections added
// or removed after the catalog is created are always reflected.
type Catalog struct {
	registry *Registry
}

// NewCatalog creates a catalog over the given registry.
func NewCatalog(registry *Registry) *Catalog {
	return &Catalog{registry: registry}
}

// Definitions lists every tool across all servers, in server insertion
// order, each under its qualified name.
func (c *Catalog) Definitions() []ToolDefinition {
	var defs []ToolDefinition
	for _, conn := range c.registry.Connections() {
		for _, t := range conn.Tools {
			defs = append(defs, ToolDefinition{
				QualifiedName: JoinToolName(conn.Name, t.Name),
				Server:        conn.Name,
				Name:          t.Name,
				Description:   t.Description,
				InputSchema:   t.InputSchema,
			})
		}
	}
	return defs
}

// Resolve maps a qualified tool name to the connection serving it and
// the server-local tool name. The tool must be one the server
// advertised at connect time, so an unknown name fails here instead of
// on the wire.
func (c *Catalog) Resolve(qualified string) (*Connection, string, error) {
	server, tool, err := SplitToolName(qualified)
	if err != nil {
		return nil, "", err
	}
	conn, err := c.registry.Lookup(server)
	if err != nil {
		return nil, "", err
	}
	for _, t := range conn.Tools {
		if t.Name == tool {
			return conn, tool, nil
		}
	}
	return nil, "", errors.WithMessagef(ErrToolNotFound, "tool %q on server %q", tool, server)
}

// LLMTools renders the catalog as function declarations for an LLM
// request.
func (c *Catalog) LLMTools() []llms.Tool {
	defs := c.Definitions()
	out := make([]llms.Tool, 0, len(defs))
	for _, d := range defs {
		var params any
		if len(d.InputSchema) > 0 {
			var m map[string]any
			if err := json.Unmarshal(d.InputSchema, &m); err == nil {
				params = m
			}
		}
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.QualifiedName,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
