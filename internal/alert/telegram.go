package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI used for outgoing messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	sender Sender
	chatID int64
}

func NewTelegramNotifier(sender Sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

func (t *TelegramNotifier) Notify(ctx context.Context, msg string) error {
	if t == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Plain text: alert fields carry symbols and error messages with markdown metacharacters.
	if _, err := t.sender.Send(tgbotapi.NewMessage(t.chatID, msg)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
