// Package pipeline turns inbound webhook events into logged, delivered replies.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autoreply/internal/instagram"
	"autoreply/internal/matcher"
	"autoreply/internal/model"
	"autoreply/internal/notify"
	"autoreply/internal/storage"
	"autoreply/internal/webhook"
)

// Outcome classifies how a single event was handled.
type Outcome string

// Possible event outcomes.
const (
	OutcomeReplied        Outcome = "replied"
	OutcomeNoBot          Outcome = "no_bot"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	OutcomeError          Outcome = "error"
)

// Summary counts the outcomes of a batch.
type Summary struct {
	Replied        int
	NoBot          int
	DeliveryFailed int
	Errors         int
}

// OK reports whether the batch finished without store or internal errors.
// Delivery failures do not count: the reply is already recorded.
func (s Summary) OK() bool {
	return s.Errors == 0
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeReplied:
		s.Replied++
	case OutcomeNoBot:
		s.NoBot++
	case OutcomeDeliveryFailed:
		s.DeliveryFailed++
	default:
		s.Errors++
	}
}

// Options tunes a Processor.
type Options struct {
	// Fallback replaces matcher.FallbackResponse when non-empty.
	Fallback string
	// SendTimeout bounds each outbound call; zero means 10 seconds.
	SendTimeout time.Duration
	// Notifier is told about delivery failures; nil means notify.Nop.
	Notifier notify.Notifier
}

// Processor routes events to bots, picks replies, logs and sends them.
type Processor struct {
	store    storage.Storage
	sender   instagram.Sender
	notifier notify.Notifier
	fallback string
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a Processor.
func New(store storage.Storage, sender instagram.Sender, log *slog.Logger, opts Options) *Processor {
	p := &Processor{
		store:    store,
		sender:   sender,
		notifier: opts.Notifier,
		fallback: opts.Fallback,
		timeout:  opts.SendTimeout,
		log:      log.With("component", "pipeline"),
	}
	if p.notifier == nil {
		p.notifier = notify.Nop{}
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Second
	}
	return p
}

// Process handles events in order. A failing event does not stop the batch.
func (p *Processor) Process(ctx context.Context, events []webhook.InboundEvent) Summary {
	var sum Summary
	for _, ev := range events {
		outcome, err := p.ProcessEvent(ctx, ev)
		if err != nil {
			p.log.Error("process event",
				"sender_id", ev.SenderID, "recipient_id", ev.RecipientID,
				"outcome", outcome, "error", err)
		}
		sum.add(outcome)
	}
	return sum
}

// ProcessEvent handles one event. The returned error is non-nil for
// OutcomeDeliveryFailed and OutcomeError.
func (p *Processor) ProcessEvent(ctx context.Context, ev webhook.InboundEvent) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeError
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	bot, err := p.store.GetActiveBotByAccountID(ctx, ev.RecipientID)
	if errors.Is(err, storage.ErrNotFound) {
		p.log.Debug("no active bot for recipient", "recipient_id", ev.RecipientID)
		return OutcomeNoBot, nil
	}
	if err != nil {
		return OutcomeError, fmt.Errorf("find bot: %w", err)
	}

	keywords, err := p.store.ListActiveKeywords(ctx, bot.ID)
	if err != nil {
		return OutcomeError, fmt.Errorf("list keywords: %w", err)
	}

	res := matcher.MatchWithFallback(ev.Text, keywords, p.fallback)

	record := model.MessageRecord{
		BotID:          bot.ID,
		SenderID:       ev.SenderID,
		MessageText:    ev.Text,
		BotResponse:    res.Response,
		MatchedKeyword: res.Trigger,
	}
	if err := p.store.CreateMessage(ctx, &record); err != nil {
		return OutcomeError, fmt.Errorf("record message: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.sender.Send(sendCtx, bot.AccessToken, ev.SenderID, res.Response); err != nil {
		p.notifier.DeliveryFailed(ctx, *bot, ev.SenderID, err)
		return OutcomeDeliveryFailed, fmt.Errorf("deliver reply: %w", err)
	}

	p.log.Info("replied",
		"bot_id", bot.ID, "sender_id", ev.SenderID,
		"matched", res.Trigger, "record_id", record.ID)
	return OutcomeReplied, nil
}
