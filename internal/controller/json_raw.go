package controller

import (
	"encoding/json"
	"strings"
)

// jsonRaw accepts a field sent either as a JSON value or as a string holding JSON.
type jsonRaw json.RawMessage

func (j *jsonRaw) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}

func (j jsonRaw) String() string {
	raw := strings.TrimSpace(string(j))
	if raw == "" || raw == "null" {
		return ""
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return s
		}
	}
	return raw
}
