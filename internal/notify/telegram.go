package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/models"
)

// Sender отправляет сообщение от имени бота. *tgbotapi.BotAPI реализует его.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UserLookup возвращает пользователя для определения его Telegram чата.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TelegramPublisher дублирует события сообщениями от бота.
type TelegramPublisher struct {
	bot   Sender
	users UserLookup
	log   *logrus.Logger
}

func NewTelegramPublisher(bot Sender, users UserLookup, log *logrus.Logger) *TelegramPublisher {
	return &TelegramPublisher{bot: bot, users: users, log: log}
}

func (p *TelegramPublisher) Publish(ctx context.Context, events ...Event) {
	for _, e := range events {
		entry := p.log.WithFields(logrus.Fields{"event": e.Type, "user_id": e.RecipientID})

		user, err := p.users.GetByID(ctx, e.RecipientID)
		if err != nil {
			entry.WithError(err).Warn("notify: получатель не найден")
			continue
		}

		// В личном чате с ботом chat_id совпадает с telegram_id пользователя.
		msg := tgbotapi.NewMessage(user.TelegramID, Text(e))
		if _, err := p.bot.Send(msg); err != nil {
			entry.WithError(err).Warn("notify: не удалось отправить сообщение в Telegram")
		}
	}
}
