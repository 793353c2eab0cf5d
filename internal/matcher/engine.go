// Package matcher selects the auto-reply for an inbound message.
package matcher

import (
	"errors"
	"strings"

	"autoreply/internal/model"
)

// DefaultTrigger is recorded as the matched keyword when no keyword matches.
const DefaultTrigger = "default"

// FallbackResponse is the reply sent when no keyword matches.
const FallbackResponse = "Hvala na poruci! Odgovorićemo Vam uskoro."

// ErrEmptyTrigger is returned for a trigger that is empty after trimming.
var ErrEmptyTrigger = errors.New("trigger must not be empty")

// Result is the outcome of matching one message.
type Result struct {
	Response string
	Trigger  string
}

// Matched reports whether a keyword matched rather than the fallback.
func (r Result) Matched() bool {
	return r.Trigger != DefaultTrigger
}

// Match returns the response of the first active keyword whose trigger is a
// case-insensitive substring of text, or the fallback reply.
func Match(text string, keywords []model.Keyword) Result {
	return MatchWithFallback(text, keywords, FallbackResponse)
}

// MatchWithFallback is Match with a caller-supplied fallback reply.
// An empty fallback selects FallbackResponse.
func MatchWithFallback(text string, keywords []model.Keyword, fallback string) Result {
	if fallback == "" {
		fallback = FallbackResponse
	}

	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if !kw.IsActive {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw.Trigger)) {
			return Result{Response: kw.Response, Trigger: kw.Trigger}
		}
	}

	return Result{Response: fallback, Trigger: DefaultTrigger}
}

// NormalizeTrigger trims surrounding whitespace and rejects empty triggers.
func NormalizeTrigger(trigger string) (string, error) {
	trimmed := strings.TrimSpace(trigger)
	if trimmed == "" {
		return "", ErrEmptyTrigger
	}
	return trimmed, nil
}

// ValidateTrigger checks whether trigger can be stored.
func ValidateTrigger(trigger string) error {
	_, err := NormalizeTrigger(trigger)
	return err
}
