// Package notify alerts the operator when a reply could not be delivered.
package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"autoreply/internal/model"
)

// Notifier receives delivery failures from the inbound pipeline.
type Notifier interface {
	DeliveryFailed(ctx context.Context, bot model.Bot, recipientID string, err error)
}

// Nop discards every notification.
type Nop struct{}

// DeliveryFailed does nothing.
func (Nop) DeliveryFailed(context.Context, model.Bot, string, error) {}

const maxErrorText = 300

// FormatDeliveryFailure formats a delivery failure as an alert message.
func FormatDeliveryFailure(bot model.Bot, recipientID string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] reply not delivered\n\n", bot.Name)
	fmt.Fprintf(&b, "Bot: #%d (account %s)\n", bot.ID, bot.AccountID)
	fmt.Fprintf(&b, "Recipient: %s\n", recipientID)
	if err != nil {
		text := err.Error()
		if len(text) > maxErrorText {
			text = truncate(text, maxErrorText) + "..."
		}
		fmt.Fprintf(&b, "Error: %s", text)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
