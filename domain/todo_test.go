package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestTodoMarshalIncludesZeroCompleted(t *testing.T) {
	todo := Todo{ID: "t1", Title: "Title", UpdatedAt: "2024-01-01T00:00:00.000Z"}

	payload, err := sonic.Marshal(todo)
	if err != nil {
		t.Fatalf("marshal todo: %v", err)
	}

	if !strings.Contains(string(payload), "\"completed\":false") {
		t.Fatalf("expected completed field to be present, got %s", payload)
	}
}

func TestTruthy(t *testing.T) {
	testCases := map[string]struct {
		raw  string
		want bool
	}{
		"absent":       {"", false},
		"null":         {"null", false},
		"false":        {"false", false},
		"true":         {"true", true},
		"zero":         {"0", false},
		"number":       {"2", true},
		"empty_string": {`""`, false},
		"string":       {`"yes"`, true},
		"false_string": {`"false"`, true},
		"object":       {`{}`, true},
		"array":        {`[]`, true},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := Truthy(sonic.NoCopyRawMessage(tc.raw)); got != tc.want {
				t.Fatalf("Truthy(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestStringValue(t *testing.T) {
	if _, ok := StringValue(nil); ok {
		t.Fatal("expected absent value to report not-a-string")
	}
	if _, ok := StringValue(sonic.NoCopyRawMessage("42")); ok {
		t.Fatal("expected number to report not-a-string")
	}
	s, ok := StringValue(sonic.NoCopyRawMessage(`" buy milk "`))
	if !ok || s != " buy milk " {
		t.Fatalf("unexpected string value: %q ok=%v", s, ok)
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got, ok := NormalizeTitle("  buy milk "); !ok || got != "buy milk" {
		t.Fatalf("unexpected normalized title: %q ok=%v", got, ok)
	}
	if _, ok := NormalizeTitle("   "); ok {
		t.Fatal("expected whitespace-only title to be rejected")
	}
}

func TestTodoUpdateEmpty(t *testing.T) {
	if !(TodoUpdate{UpdatedAt: "now"}).Empty() {
		t.Fatal("expected timestamp-only update to be empty")
	}
	done := true
	if (TodoUpdate{Completed: &done}).Empty() {
		t.Fatal("expected update with completed to be non-empty")
	}
}
