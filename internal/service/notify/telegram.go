package notify

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/config"
)

type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram alerts the operator chat when a job needs intervention. Other
// event types are ignored.
type Telegram struct {
	bot    chatSender
	chatID int64
	logger *zap.Logger
}

func NewTelegram(cfg config.TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram token and chat_id are required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	logger.Info("Telegram notifier ready", zap.String("bot", bot.Self.UserName))
	return &Telegram{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

func (t *Telegram) Notify(_ context.Context, event Event) error {
	if event.Type != EventJobFailed {
		return nil
	}

	text := fmt.Sprintf(
		"⚠️ <b>Outreach job #%d failed</b>\n"+
			"Platform: %s\n"+
			"User: %d\n"+
			"Error: %s",
		event.JobID,
		html.EscapeString(event.Platform),
		event.UserID,
		html.EscapeString(event.Message),
	)
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	return nil
}

func (t *Telegram) Close() error { return nil }
