package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var (
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
)

// ContentProvider exposes the textual content of a typed value.
type ContentProvider interface {
	GetContent() string
}

// InputParser lets a type take over parsing of raw tool input.
type InputParser interface {
	ParseInput(input string) error
}

type Stringer interface {
	String() string
}

// Stringify renders a value for inclusion in a chat transcript.
func Stringify(s any) string {
	if v, ok := s.(Stringer); ok {
		return v.String()
	}
	if v, ok := s.(ContentProvider); ok {
		return v.GetContent()
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}
