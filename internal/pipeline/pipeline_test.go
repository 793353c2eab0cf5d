package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"autoreply/internal/matcher"
	"autoreply/internal/model"
	"autoreply/internal/storage"
	"autoreply/internal/webhook"
)

type sentReply struct {
	AccessToken string
	RecipientID string
	Text        string
}

type mockSender struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
	panics  bool
}

func (m *mockSender) Send(ctx context.Context, accessToken, recipientID, text string) error {
	if m.panics {
		panic("sender exploded")
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("send context has no deadline")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, sentReply{AccessToken: accessToken, RecipientID: recipientID, Text: text})
	return m.err
}

func (m *mockSender) getReplies() []sentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentReply, len(m.replies))
	copy(cp, m.replies)
	return cp
}

type mockNotifier struct {
	mu       sync.Mutex
	failures []string
}

func (m *mockNotifier) DeliveryFailed(_ context.Context, bot model.Bot, recipientID string, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, bot.AccountID+"->"+recipientID)
}

// failingStore fails CreateMessage for one sender id.
type failingStore struct {
	storage.Storage
	failSender string
}

func (f *failingStore) CreateMessage(ctx context.Context, msg *model.MessageRecord) error {
	if msg.SenderID == f.failSender {
		return errors.New("disk full")
	}
	return f.Storage.CreateMessage(ctx, msg)
}

var ignoreMessageTS = cmpopts.IgnoreFields(model.MessageRecord{}, "ID", "CreatedAt")

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedBot creates an operator and an active bot on account "B" with the given keywords.
func seedBot(t *testing.T, s *storage.Store, keywords ...model.Keyword) *model.Bot {
	t.Helper()
	ctx := context.Background()

	op := model.Operator{Username: "owner", Email: "owner@example.com", PasswordHash: "x"}
	if err := s.CreateOperator(ctx, &op); err != nil {
		t.Fatalf("create operator: %v", err)
	}
	bot := model.Bot{OwnerID: op.ID, Name: "Shop", AccountID: "B", AccessToken: "page-token", IsActive: true}
	if err := s.CreateBot(ctx, &bot); err != nil {
		t.Fatalf("create bot: %v", err)
	}
	for _, kw := range keywords {
		kw.BotID = bot.ID
		if err := s.CreateKeyword(ctx, &kw); err != nil {
			t.Fatalf("create keyword: %v", err)
		}
	}
	return &bot
}

func helpKeywords() []model.Keyword {
	return []model.Keyword{
		{Trigger: "hi", Response: "Hello there", IsActive: true},
		{Trigger: "help", Response: "Contact support", IsActive: true},
	}
}

func TestProcessMatchedReply(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	bot := seedBot(t, store, helpKeywords()...)
	sender := &mockSender{}

	p := New(store, sender, testLogger(), Options{})
	sum := p.Process(ctx, []webhook.InboundEvent{{SenderID: "A", RecipientID: "B", Text: "need help please"}})

	if diff := cmp.Diff(Summary{Replied: 1}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	wantReplies := []sentReply{{AccessToken: "page-token", RecipientID: "A", Text: "Contact support"}}
	if diff := cmp.Diff(wantReplies, sender.getReplies()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}

	msgs, err := store.ListMessages(ctx, bot.ID, 10, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	wantMsgs := []model.MessageRecord{{
		BotID:          bot.ID,
		SenderID:       "A",
		MessageText:    "need help please",
		BotResponse:    "Contact support",
		MatchedKeyword: "help",
	}}
	if diff := cmp.Diff(wantMsgs, msgs, ignoreMessageTS); diff != "" {
		t.Errorf("message log mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessFallbackRecordsSentinel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	bot := seedBot(t, store, helpKeywords()...)
	sender := &mockSender{}

	p := New(store, sender, testLogger(), Options{})
	p.Process(ctx, []webhook.InboundEvent{{SenderID: "A", RecipientID: "B", Text: "xyz"}})

	msgs, err := store.ListMessages(ctx, bot.ID, 10, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(msgs))
	}
	if diff := cmp.Diff(matcher.DefaultTrigger, msgs[0].MatchedKeyword); diff != "" {
		t.Errorf("matched keyword mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(matcher.FallbackResponse, msgs[0].BotResponse); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessConfiguredFallback(t *testing.T) {
	store := newTestStore(t)
	seedBot(t, store)
	sender := &mockSender{}

	p := New(store, sender, testLogger(), Options{Fallback: "We will get back to you."})
	p.Process(context.Background(), []webhook.InboundEvent{{SenderID: "A", RecipientID: "B", Text: "anything"}})

	want := []sentReply{{AccessToken: "page-token", RecipientID: "A", Text: "We will get back to you."}}
	if diff := cmp.Diff(want, sender.getReplies()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessAllKeywordsInactive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	bot := seedBot(t, store, helpKeywords()...)

	kws, err := store.ListKeywords(ctx, bot.ID)
	if err != nil {
		t.Fatalf("list keywords: %v", err)
	}
	for i := range kws {
		kws[i].IsActive = false
		if err := store.UpdateKeyword(ctx, &kws[i]); err != nil {
			t.Fatalf("update keyword: %v", err)
		}
	}

	sender := &mockSender{}
	p := New(store, sender, testLogger(), Options{})
	p.Process(ctx, []webhook.InboundEvent{
		{SenderID: "A", RecipientID: "B", Text: "hi"},
		{SenderID: "A", RecipientID: "B", Text: "help"},
	})

	for _, r := range sender.getReplies() {
		if diff := cmp.Diff(matcher.FallbackResponse, r.Text); diff != "" {
			t.Errorf("reply mismatch (-want +got):\n%s", diff)
		}
	}
	if len(sender.getReplies()) != 2 {
		t.Errorf("expected 2 replies, got %d", len(sender.getReplies()))
	}
}

func TestProcessNoBot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	bot := seedBot(t, store, helpKeywords()...)
	bot.IsActive = false
	if err := store.UpdateBot(ctx, bot); err != nil {
		t.Fatalf("update bot: %v", err)
	}
	sender := &mockSender{}

	p := New(store, sender, testLogger(), Options{})
	sum := p.Process(ctx, []webhook.InboundEvent{
		{SenderID: "A", RecipientID: "B", Text: "hi"},
		{SenderID: "A", RecipientID: "unknown", Text: "hi"},
	})

	if diff := cmp.Diff(Summary{NoBot: 2}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if !sum.OK() {
		t.Error("expected summary to be OK")
	}
	if n := len(sender.getReplies()); n != 0 {
		t.Errorf("expected no replies, got %d", n)
	}
	msgs, _ := store.ListMessages(ctx, bot.ID, 10, 0)
	if len(msgs) != 0 {
		t.Errorf("expected no records, got %d", len(msgs))
	}
}

func TestProcessDeliveryFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	bot := seedBot(t, store, helpKeywords()...)
	sender := &mockSender{err: errors.New("graph api: status 400")}
	notifier := &mockNotifier{}

	p := New(store, sender, testLogger(), Options{Notifier: notifier})
	outcome, err := p.ProcessEvent(ctx, webhook.InboundEvent{SenderID: "A", RecipientID: "B", Text: "hi"})

	if diff := cmp.Diff(OutcomeDeliveryFailed, outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if err == nil {
		t.Error("expected delivery error")
	}

	msgs, _ := store.ListMessages(ctx, bot.ID, 10, 0)
	if len(msgs) != 1 {
		t.Fatalf("expected record to be kept, got %d", len(msgs))
	}
	if diff := cmp.Diff([]string{"B->A"}, notifier.failures); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}

	sum := p.Process(ctx, []webhook.InboundEvent{{SenderID: "A", RecipientID: "B", Text: "hi"}})
	if !sum.OK() {
		t.Error("delivery failure must not mark the batch as failed")
	}
}

func TestProcessStoreErrorContinuesBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedBot(t, store, helpKeywords()...)
	sender := &mockSender{}

	p := New(&failingStore{Storage: store, failSender: "bad"}, sender, testLogger(), Options{})
	sum := p.Process(ctx, []webhook.InboundEvent{
		{SenderID: "bad", RecipientID: "B", Text: "hi"},
		{SenderID: "good", RecipientID: "B", Text: "hi"},
	})

	if diff := cmp.Diff(Summary{Replied: 1, Errors: 1}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if sum.OK() {
		t.Error("expected summary to report failure")
	}
	want := []sentReply{{AccessToken: "page-token", RecipientID: "good", Text: "Hello there"}}
	if diff := cmp.Diff(want, sender.getReplies()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessRecoversPanic(t *testing.T) {
	store := newTestStore(t)
	seedBot(t, store, helpKeywords()...)

	p := New(store, &mockSender{panics: true}, testLogger(), Options{SendTimeout: time.Second})
	outcome, err := p.ProcessEvent(context.Background(), webhook.InboundEvent{SenderID: "A", RecipientID: "B", Text: "hi"})

	if diff := cmp.Diff(OutcomeError, outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if err == nil {
		t.Error("expected error from recovered panic")
	}
}
