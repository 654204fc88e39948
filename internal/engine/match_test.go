package engine

import "testing"

func TestMatchesEventType(t *testing.T) {
	tests := []struct {
		name      string
		patterns  []string
		eventType string
		want      bool
	}{
		{"exact match", []string{"order.created"}, "order.created", true},
		{"exact mismatch", []string{"order.created"}, "order.updated", false},
		{"wildcard matches everything", []string{"*"}, "anything.at.all", true},
		{"prefix wildcard matches", []string{"order.*"}, "order.created", true},
		{"prefix wildcard matches nested", []string{"order.*"}, "order.item.added", true},
		{"prefix wildcard mismatch", []string{"order.*"}, "invoice.paid", false},
		{"prefix wildcard needs the dot", []string{"order.*"}, "orders.created", false},
		{"second pattern matches", []string{"invoice.paid", "order.created"}, "order.created", true},
		{"no patterns", []string{}, "order.created", false},
		{"bare prefix does not match its own wildcard", []string{"order.*"}, "order", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchesEventType(tt.patterns, tt.eventType)
			if got != tt.want {
				t.Errorf("MatchesEventType(%v, %q) = %v, want %v", tt.patterns, tt.eventType, got, tt.want)
			}
		})
	}
}
