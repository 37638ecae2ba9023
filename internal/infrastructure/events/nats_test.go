package events

import (
	"context"
	"testing"
)

func TestNormalizeSubjectPrefix(t *testing.T) {
	testCases := map[string]string{
		"":           "",
		" ppe ":      "ppe.",
		"ppe.":       "ppe.",
		".ppe.site.": "ppe.site.",
	}
	for input, want := range testCases {
		if got := normalizeSubjectPrefix(input); got != want {
			t.Fatalf("normalizeSubjectPrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", "ppe"); err == nil {
		t.Fatalf("Connect() error = nil, want missing url error")
	}
}

func TestNoopPublish(t *testing.T) {
	if err := (Noop{}).Publish(context.Background(), "correlation.completed", []byte("{}")); err != nil {
		t.Fatalf("Noop.Publish() error = %v", err)
	}
}

func TestCloseNilPublisher(t *testing.T) {
	var p *NATSPublisher
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
