package transport

import (
	"bytes"
	"encoding/json"
)

// NormalizeToolInput converts a raw tool input into an object. It accepts
// either a JSON object or a JSON-encoded string containing one; anything
// else yields an empty map.
func NormalizeToolInput(raw json.RawMessage) map[string]interface{} {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]interface{}{}
	}

	if trimmed[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(trimmed, &unquoted); err != nil {
			return map[string]interface{}{}
		}
		trimmed = bytes.TrimSpace([]byte(unquoted))
		if len(trimmed) == 0 {
			return map[string]interface{}{}
		}
	}

	var args map[string]interface{}
	if err := json.Unmarshal(trimmed, &args); err != nil || args == nil {
		return map[string]interface{}{}
	}
	return args
}
