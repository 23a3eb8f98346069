package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stockwatch/internal/config"
	"stockwatch/internal/errors"
)

// telegramSender is the slice of the bot API the channel needs. Lets tests
// substitute the network call.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel delivers alerts as Telegram messages. The user reference
// is the recipient's chat ID.
type TelegramChannel struct {
	bot     telegramSender
	enabled bool
}

// NewTelegramChannel creates a new TelegramChannel. It authorizes against
// the Telegram Bot API, so it needs network access at construction time.
func NewTelegramChannel(cfg config.TelegramConfig) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("authorizing telegram bot: %w", err)
	}
	bot.Debug = false

	return &TelegramChannel{
		bot:     bot,
		enabled: cfg.Enabled,
	}, nil
}

// Name returns the name of the channel.
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// IsEnabled returns whether the channel is enabled.
func (t *TelegramChannel) IsEnabled() bool {
	return t.enabled
}

// Deliver sends the rendered message to the chat identified by userRef.
func (t *TelegramChannel) Deliver(ctx context.Context, userRef, text string) error {
	if !t.enabled {
		return nil
	}

	chatID, err := strconv.ParseInt(userRef, 10, 64)
	if err != nil {
		return errors.NewDeliveryError(t.Name(), userRef, fmt.Errorf("user reference is not a chat ID: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return errors.NewDeliveryError(t.Name(), userRef, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return errors.NewDeliveryError(t.Name(), userRef, err)
	}
	return nil
}
