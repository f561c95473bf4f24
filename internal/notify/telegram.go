package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"descansos/internal/models"
)

// TelegramNotifier posts break reminders to the crew's group chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier connects the bot and targets the given chat.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// SendReminder posts the reminder message.
func (t *TelegramNotifier) SendReminder(_ context.Context, r models.Reservation) error {
	text := fmt.Sprintf("⏰ %s: tu descanso de %d min empieza a las %s (%s)",
		r.OwnerName, r.DurationMinutes, r.StartTime.Format("15:04"), r.ShiftLabel)
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// LogNotifier writes reminders to the log. Used when no Telegram token
// is configured.
type LogNotifier struct {
	Logger zerolog.Logger
}

// SendReminder logs the reminder.
func (l *LogNotifier) SendReminder(_ context.Context, r models.Reservation) error {
	l.Logger.Info().
		Str("owner", r.OwnerName).
		Time("start", r.StartTime).
		Int("minutes", r.DurationMinutes).
		Msg("break starting soon")
	return nil
}
