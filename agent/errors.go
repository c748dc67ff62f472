package agent

import "github.com/cockroachdb/errors"

var (
	// ErrToolNotFound marks a tool call naming a tool no registered
	// server provides. Detected locally, no server round trip happens.
	ErrToolNotFound = errors.New("tool not found")

	// ErrMalformedToolCall marks a tool call whose reassembled payload is
	// unusable: invalid arguments JSON, a missing name, or conflicting
	// fragment identity.
	ErrMalformedToolCall = errors.New("malformed tool call")
)
