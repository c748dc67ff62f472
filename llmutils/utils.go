package llmutils

import (
	"bytes"
	"encoding/json"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
)

// CleanJSON returns JSON by trimming prefixes and postfixes,
// as a model can reply like `Here you go: {json}`.
func CleanJSON(bs []byte) []byte {
	return trimPostfixAfterJSON(trimPrefixBeforeJSON(bs))
}

// Removes any prefixes before the JSON (like "Sure, here you go:")
func trimPrefixBeforeJSON(bs []byte) []byte {
	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')

	var start int
	if startObject == -1 && startArray == -1 {
		return bs
	} else if startObject == -1 {
		start = startArray
	} else if startArray == -1 {
		start = startObject
	} else {
		start = min(startObject, startArray)
	}
	return bs[start:]
}

// Removes any postfixes after the JSON
func trimPostfixAfterJSON(bs []byte) []byte {
	endObject := bytes.LastIndexByte(bs, '}')
	endArray := bytes.LastIndexByte(bs, ']')

	var end int
	if endObject == -1 && endArray == -1 {
		return bs
	} else if endObject == -1 {
		end = endArray
	} else if endArray == -1 {
		end = endObject
	} else {
		end = max(endObject, endArray)
	}
	return bs[:end+1]
}

// UnmarshalLoose decodes model-produced JSON tolerantly: trailing commas,
// unquoted keys and similar sloppiness are accepted. Use for payloads the
// model wrote, never for wire protocol messages.
func UnmarshalLoose(bs []byte, v any) error {
	if err := ljson.Unmarshal(CleanJSON(bs), v); err != nil {
		return errors.WithMessage(err, "failed to unmarshal")
	}
	return nil
}

// ToJSON returns compact JSON representation, ignoring marshal errors.
func ToJSON(v any) string {
	js, _ := json.Marshal(v)
	return string(js)
}

// ToJSONIndent returns indented JSON representation, ignoring marshal errors.
func ToJSONIndent(v any) string {
	js, _ := json.MarshalIndent(v, "", "  ")
	return string(js)
}

// BackticksJSON wraps JSON in a fenced code block for prompts.
func BackticksJSON(js string) string {
	return "```json\n" + js + "\n```"
}
