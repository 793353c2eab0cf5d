// Package webhook implements the messaging platform's subscription handshake
// and parses its delivery payloads.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ObjectInstagram is the payload object kind carrying direct messages.
const ObjectInstagram = "instagram"

// ModeSubscribe is the only accepted handshake mode.
const ModeSubscribe = "subscribe"

// ErrVerificationFailed is returned when a handshake does not match.
var ErrVerificationFailed = errors.New("verification failed")

// InboundEvent is one text message addressed to a bot account.
type InboundEvent struct {
	SenderID    string
	RecipientID string
	Text        string
	MessageID   string
	Timestamp   int64
}

// Payload is the delivery body posted by the platform.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups messaging items for one account.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging is a single item of an entry.
type Messaging struct {
	Sender    Party    `json:"sender"`
	Recipient Party    `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *Message `json:"message,omitempty"`
}

// Party identifies a sender or recipient.
type Party struct {
	ID string `json:"id"`
}

// Message is the message part of a messaging item.
type Message struct {
	MID    string  `json:"mid"`
	Text   *string `json:"text"` // nil for attachment-only messages
	IsEcho bool    `json:"is_echo"`
}

// VerifyHandshake returns challenge when mode and token match the expected
// verify token. An empty expected token never verifies.
func VerifyHandshake(mode, token, challenge, expected string) (string, error) {
	if expected == "" || mode != ModeSubscribe || token != expected {
		return "", ErrVerificationFailed
	}
	return challenge, nil
}

// Decode unmarshals a delivery body.
func Decode(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &p, nil
}

// Events extracts the text messages of a payload. Payloads of another object
// kind yield no events. Items without text, echoes of the account's own
// messages, and items missing a party id are skipped. A present but empty
// text still yields an event.
func (p *Payload) Events() []InboundEvent {
	if p.Object != ObjectInstagram {
		return nil
	}

	var events []InboundEvent
	for _, entry := range p.Entry {
		for _, item := range entry.Messaging {
			msg := item.Message
			if msg == nil || msg.Text == nil || msg.IsEcho {
				continue
			}
			if item.Sender.ID == "" || item.Recipient.ID == "" {
				continue
			}
			events = append(events, InboundEvent{
				SenderID:    item.Sender.ID,
				RecipientID: item.Recipient.ID,
				Text:        *msg.Text,
				MessageID:   msg.MID,
				Timestamp:   item.Timestamp,
			})
		}
	}
	return events
}

// ParseDeliveryEvent decodes body and returns its text message events.
func ParseDeliveryEvent(body []byte) ([]InboundEvent, error) {
	p, err := Decode(body)
	if err != nil {
		return nil, err
	}
	return p.Events(), nil
}
