package domain

import (
	"strings"

	"github.com/bytedance/sonic"
)

// Todo represents a single task item as exposed on the wire.
type Todo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	UpdatedAt string `json:"updatedAt"`
}

// TodoUpdate carries the sparse field set of a merge-style write. Nil fields
// leave the stored values untouched; UpdatedAt is always set by the caller.
type TodoUpdate struct {
	Title     *string
	Completed *bool
	UpdatedAt string
}

// Empty reports whether the update carries no fields beyond the timestamp.
func (u TodoUpdate) Empty() bool {
	return u.Title == nil && u.Completed == nil
}

// Truthy coerces a raw JSON value to a boolean: absent, null, false, 0 and
// the empty string are falsy; every other value, including the strings
// "false" and "0", is truthy.
func Truthy(raw sonic.NoCopyRawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// StringValue extracts a raw JSON value as a string. The second return is
// false when the value is absent or not a JSON string.
func StringValue(raw sonic.NoCopyRawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := sonic.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// NormalizeTitle trims surrounding whitespace from a candidate title. The
// second return is false when nothing remains, so callers never persist an
// empty title.
func NormalizeTitle(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, trimmed != ""
}
