// Package notify provides notification delivery for fired alerts.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"stockwatch/internal/config"
	"stockwatch/internal/errors"
)

// Dispatcher delivers a rendered alert message to a user.
//
// The engine treats delivery as fire-and-report: a returned error is logged
// by the caller, never retried at the cycle level, and never blocks the
// target's state transition. Channels that want delivery guarantees layer
// their own retry inside Deliver.
type Dispatcher interface {
	Deliver(ctx context.Context, userRef, text string) error
}

// Channel is one concrete delivery transport.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, userRef, text string) error
	IsEnabled() bool
}

// MultiDispatcher fans a delivery out to all enabled channels.
type MultiDispatcher struct {
	channels []Channel
	mu       sync.RWMutex
}

// NewMultiDispatcher creates a dispatcher from the notification config.
// Channels that fail to initialize are skipped; the caller decides whether
// running without them is acceptable.
func NewMultiDispatcher(cfg *config.NotificationConfig) (*MultiDispatcher, error) {
	md := &MultiDispatcher{}

	if cfg.Webhook.Enabled {
		md.channels = append(md.channels, NewWebhookChannel(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		tg, err := NewTelegramChannel(cfg.Telegram)
		if err != nil {
			return nil, errors.Wrap(err, "initializing telegram channel")
		}
		md.channels = append(md.channels, tg)
	}

	return md, nil
}

// AddChannel adds a delivery channel.
func (md *MultiDispatcher) AddChannel(ch Channel) {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.channels = append(md.channels, ch)
}

// HasChannels reports whether any channel is configured and enabled.
func (md *MultiDispatcher) HasChannels() bool {
	md.mu.RLock()
	defer md.mu.RUnlock()
	for _, ch := range md.channels {
		if ch.IsEnabled() {
			return true
		}
	}
	return false
}

// Deliver sends the message through every enabled channel.
func (md *MultiDispatcher) Deliver(ctx context.Context, userRef, text string) error {
	md.mu.RLock()
	channels := md.channels
	md.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Deliver(ctx, userRef, text); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("delivery errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NoOpDispatcher is a dispatcher that does nothing (for testing or when
// no channel is configured).
type NoOpDispatcher struct{}

// NewNoOpDispatcher creates a new NoOpDispatcher.
func NewNoOpDispatcher() *NoOpDispatcher {
	return &NoOpDispatcher{}
}

// Deliver does nothing.
func (n *NoOpDispatcher) Deliver(ctx context.Context, userRef, text string) error {
	return nil
}
