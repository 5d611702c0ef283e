package api

import (
	"strings"
	"testing"
	"time"
)

func TestNowISOFormat(t *testing.T) {
	got := nowISO()
	if !strings.HasSuffix(got, "Z") {
		t.Fatalf("expected UTC designator, got %q", got)
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", got); err != nil {
		t.Fatalf("unexpected timestamp format %q: %v", got, err)
	}
}
