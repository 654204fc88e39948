package engine

import "strings"

// MatchesEventType reports whether an event type is covered by an endpoint's
// subscription patterns. A pattern is an exact type ("ticket.created"), the
// global wildcard ("*"), or a trailing segment wildcard ("ticket.*") matching
// any type under that prefix.
func MatchesEventType(patterns []string, eventType string) bool {
	for _, p := range patterns {
		if p == "*" || p == eventType {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, ".*"); ok {
			if strings.HasPrefix(eventType, prefix+".") {
				return true
			}
		}
	}
	return false
}
