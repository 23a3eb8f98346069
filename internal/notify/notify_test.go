package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stockwatch/internal/config"
	"stockwatch/internal/errors"
)

// fakeChannel records deliveries and optionally fails them.
type fakeChannel struct {
	name      string
	enabled   bool
	failAll   bool
	delivered []string
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }

func (f *fakeChannel) Deliver(ctx context.Context, userRef, text string) error {
	if f.failAll {
		return errors.NewDeliveryError(f.name, userRef, errors.ErrTimeout)
	}
	f.delivered = append(f.delivered, userRef+": "+text)
	return nil
}

func TestMultiDispatcherFansOut(t *testing.T) {
	a := &fakeChannel{name: "a", enabled: true}
	b := &fakeChannel{name: "b", enabled: true}
	disabled := &fakeChannel{name: "c", enabled: false}

	md, err := NewMultiDispatcher(&config.NotificationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	md.AddChannel(a)
	md.AddChannel(b)
	md.AddChannel(disabled)

	if err := md.Deliver(context.Background(), "42", "hello"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(a.delivered) != 1 || len(b.delivered) != 1 {
		t.Errorf("enabled channels got %d and %d deliveries, want 1 each", len(a.delivered), len(b.delivered))
	}
	if len(disabled.delivered) != 0 {
		t.Errorf("disabled channel got %d deliveries, want 0", len(disabled.delivered))
	}
}

func TestMultiDispatcherReportsPartialFailure(t *testing.T) {
	good := &fakeChannel{name: "good", enabled: true}
	bad := &fakeChannel{name: "bad", enabled: true, failAll: true}

	md, _ := NewMultiDispatcher(&config.NotificationConfig{})
	md.AddChannel(bad)
	md.AddChannel(good)

	err := md.Deliver(context.Background(), "42", "hello")
	if err == nil {
		t.Fatal("expected an error from the failing channel")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("error %q should name the failing channel", err)
	}
	// A failing channel must not block the others.
	if len(good.delivered) != 1 {
		t.Errorf("good channel got %d deliveries, want 1", len(good.delivered))
	}
}

func TestMultiDispatcherHasChannels(t *testing.T) {
	md, _ := NewMultiDispatcher(&config.NotificationConfig{})
	if md.HasChannels() {
		t.Error("empty dispatcher should report no channels")
	}
	md.AddChannel(&fakeChannel{name: "off", enabled: false})
	if md.HasChannels() {
		t.Error("dispatcher with only disabled channels should report no channels")
	}
	md.AddChannel(&fakeChannel{name: "on", enabled: true})
	if !md.HasChannels() {
		t.Error("dispatcher with an enabled channel should report channels")
	}
}

func TestWebhookChannelDelivers(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewWebhookChannel(config.WebhookConfig{Enabled: true, URL: server.URL})
	if err := ch.Deliver(context.Background(), "42", "AAPL hit 150"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if received.User != "42" {
		t.Errorf("payload user = %q, want 42", received.User)
	}
	if received.Text != "AAPL hit 150" {
		t.Errorf("payload text = %q", received.Text)
	}
	if received.SentAt.IsZero() {
		t.Error("payload sent_at should be set")
	}
}

func TestWebhookChannelRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewWebhookChannel(config.WebhookConfig{Enabled: true, URL: server.URL})
	ch.retry.InitialDelay = 0

	if err := ch.Deliver(context.Background(), "42", "text"); err != nil {
		t.Fatalf("Deliver should succeed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhookChannelReportsExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ch := NewWebhookChannel(config.WebhookConfig{Enabled: true, URL: server.URL})
	ch.retry.InitialDelay = 0

	err := ch.Deliver(context.Background(), "42", "text")
	if err == nil {
		t.Fatal("expected delivery to fail")
	}
	var delErr *errors.DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("error should be a DeliveryError, got %T", err)
	}
	if delErr.Channel != "webhook" {
		t.Errorf("channel = %q, want webhook", delErr.Channel)
	}
}

func TestWebhookChannelDisabledIsNoOp(t *testing.T) {
	ch := NewWebhookChannel(config.WebhookConfig{Enabled: false, URL: "http://127.0.0.1:1"})
	if ch.IsEnabled() {
		t.Error("channel should be disabled")
	}
	if err := ch.Deliver(context.Background(), "42", "text"); err != nil {
		t.Errorf("disabled channel should not deliver: %v", err)
	}
}

// fakeTelegramSender substitutes the bot API network call.
type fakeTelegramSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func TestTelegramChannelDelivers(t *testing.T) {
	sender := &fakeTelegramSender{}
	ch := &TelegramChannel{bot: sender, enabled: true}

	if err := ch.Deliver(context.Background(), "123456789", "AAPL hit 150"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].ChatID != 123456789 {
		t.Errorf("chat ID = %d, want 123456789", sender.sent[0].ChatID)
	}
	if sender.sent[0].Text != "AAPL hit 150" {
		t.Errorf("text = %q", sender.sent[0].Text)
	}
}

func TestTelegramChannelRejectsNonNumericUser(t *testing.T) {
	ch := &TelegramChannel{bot: &fakeTelegramSender{}, enabled: true}

	err := ch.Deliver(context.Background(), "not-a-chat-id", "text")
	if err == nil {
		t.Fatal("expected an error for a non-numeric user reference")
	}
	var delErr *errors.DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("error should be a DeliveryError, got %T", err)
	}
}

func TestTelegramChannelHonorsCancelledContext(t *testing.T) {
	sender := &fakeTelegramSender{}
	ch := &TelegramChannel{bot: sender, enabled: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ch.Deliver(ctx, "123", "text"); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d messages after cancellation, want 0", len(sender.sent))
	}
}

func TestTerminalChannelWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	ch := NewTerminalChannelWriter(&buf)

	if err := ch.Deliver(context.Background(), "42", "AAPL hit 150"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "42") || !strings.Contains(out, "AAPL hit 150") {
		t.Errorf("output %q should contain the user and message", out)
	}
}
