package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autoreply/internal/model"
)

// alertQueueSize bounds the alerts waiting for Run to send them.
const alertQueueSize = 32

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends alerts to a single operator chat through the Telegram Bot API.
type Telegram struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
	alerts chan string
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newTelegram(api, chatID, log), nil
}

func newTelegram(api telegramAPI, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{
		api:    api,
		chatID: chatID,
		log:    log.With("component", "notify"),
		alerts: make(chan string, alertQueueSize),
	}
}

// DeliveryFailed queues an alert describing the failed reply for Run to send.
// It never blocks: the alert is dropped when ctx is done or the queue is full.
func (t *Telegram) DeliveryFailed(ctx context.Context, bot model.Bot, recipientID string, err error) {
	if ctx.Err() != nil {
		t.log.Warn("alert dropped", "bot_id", bot.ID, "error", ctx.Err())
		return
	}
	select {
	case t.alerts <- FormatDeliveryFailure(bot, recipientID, err):
	default:
		t.log.Warn("alert queue full, dropping alert", "bot_id", bot.ID)
	}
}

// Run sends queued alerts until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-t.alerts:
			t.SendMessage(text)
		}
	}
}

// SendMessage sends a text message to the alert chat.
func (t *Telegram) SendMessage(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("send alert", "chat_id", t.chatID, "error", err)
	}
}
