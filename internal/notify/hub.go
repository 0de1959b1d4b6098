package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Broadcaster отправляет сообщение в открытые соединения пользователя.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// HubPublisher доставляет события через WebSocket.
type HubPublisher struct {
	hub Broadcaster
	log *logrus.Logger
}

func NewHubPublisher(hub Broadcaster, log *logrus.Logger) *HubPublisher {
	return &HubPublisher{hub: hub, log: log}
}

func (p *HubPublisher) Publish(_ context.Context, events ...Event) {
	for _, e := range events {
		if err := p.hub.BroadcastToUser(e.RecipientID, string(e.Type), e); err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"event":   e.Type,
				"user_id": e.RecipientID,
			}).Warn("notify: не удалось отправить событие в ws")
		}
	}
}
