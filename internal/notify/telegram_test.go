package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"autoreply/internal/model"
)

type sentMsg struct {
	ChatID int64
	Text   string
}

type mockAPI struct {
	mu    sync.Mutex
	sent  []sentMsg
	err   error
	delay time.Duration
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	time.Sleep(m.delay)
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.mu.Lock()
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
		m.mu.Unlock()
	}
	return tgbotapi.Message{}, m.err
}

func (m *mockAPI) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Text
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatDeliveryFailure(t *testing.T) {
	bot := model.Bot{ID: 7, Name: "Shop", AccountID: "17841400000000001"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "with error",
			err:  errors.New("graph api: status 400: Invalid OAuth access token"),
			want: "[Shop] reply not delivered\n\nBot: #7 (account 17841400000000001)\nRecipient: A\nError: graph api: status 400: Invalid OAuth access token",
		},
		{
			name: "without error",
			err:  nil,
			want: "[Shop] reply not delivered\n\nBot: #7 (account 17841400000000001)\nRecipient: A\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDeliveryFailure(bot, "A", tt.err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FormatDeliveryFailure mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatDeliveryFailureTruncates(t *testing.T) {
	got := FormatDeliveryFailure(model.Bot{Name: "B"}, "A", errors.New(strings.Repeat("x", 1000)))
	if !strings.HasSuffix(got, strings.Repeat("x", maxErrorText)+"...") {
		t.Errorf("expected truncated error text, got %q", got)
	}
}

func TestFormatDeliveryFailureKeepsRunes(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "two byte rune at cut", msg: strings.Repeat("a", maxErrorText-1) + "š tail", want: strings.Repeat("a", maxErrorText-1) + "..."},
		{name: "rune fits exactly", msg: strings.Repeat("a", maxErrorText-2) + "š tail", want: strings.Repeat("a", maxErrorText-2) + "š..."},
		{name: "cyrillic", msg: strings.Repeat("ж", maxErrorText), want: strings.Repeat("ж", maxErrorText/2) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDeliveryFailure(model.Bot{Name: "B"}, "A", errors.New(tt.msg))
			if !utf8.ValidString(got) {
				t.Fatalf("alert is not valid UTF-8: %q", got)
			}
			if !strings.HasSuffix(got, "Error: "+tt.want) {
				t.Errorf("expected suffix %q, got %q", tt.want, got)
			}
		})
	}
}

func waitForAlerts(t *testing.T, api *mockAPI, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(api.texts()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d alerts, got %d", n, len(api.texts()))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTelegramDeliveryFailed(t *testing.T) {
	api := &mockAPI{}
	n := newTelegram(api, 555, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	n.DeliveryFailed(context.Background(), model.Bot{ID: 1, Name: "Shop", AccountID: "B"}, "A", errors.New("boom"))
	waitForAlerts(t, api, 1)

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.sent) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(api.sent))
	}
	if diff := cmp.Diff(int64(555), api.sent[0].ChatID); diff != "" {
		t.Errorf("chat id mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(api.sent[0].Text, "Error: boom") {
		t.Errorf("alert text missing error: %q", api.sent[0].Text)
	}
}

func TestTelegramSendErrorIsLogged(t *testing.T) {
	api := &mockAPI{err: errors.New("telegram down")}
	n := newTelegram(api, 1, testLogger())

	n.SendMessage("hello")

	if diff := cmp.Diff([]string{"hello"}, api.texts()); diff != "" {
		t.Errorf("sent texts mismatch (-want +got):\n%s", diff)
	}
}

func TestTelegramDeliveryFailedDoesNotBlock(t *testing.T) {
	bot := model.Bot{ID: 1, Name: "Shop", AccountID: "B"}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		calls     int
		wantQueue int
	}{
		{name: "queued", ctx: context.Background(), calls: 1, wantQueue: 1},
		{name: "cancelled context dropped", ctx: cancelled, calls: 1, wantQueue: 0},
		{name: "full queue dropped", ctx: context.Background(), calls: alertQueueSize + 5, wantQueue: alertQueueSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{delay: 2 * time.Second}
			n := newTelegram(api, 1, testLogger())

			start := time.Now()
			for i := 0; i < tt.calls; i++ {
				n.DeliveryFailed(tt.ctx, bot, "A", errors.New("boom"))
			}
			if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
				t.Errorf("DeliveryFailed took %v", elapsed)
			}
			if diff := cmp.Diff(tt.wantQueue, len(n.alerts)); diff != "" {
				t.Errorf("queued alerts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTelegramRunStops(t *testing.T) {
	n := newTelegram(&mockAPI{}, 1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Run(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

var (
	_ Notifier = Nop{}
	_ Notifier = (*Telegram)(nil)
)
