// Package notify доставляет пользователям события о заявках и друзьях.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EventType имя события, которое получает клиент.
type EventType string

const (
	EventListingApplied   EventType = "listing.applied"
	EventListingAccepted  EventType = "listing.accepted"
	EventListingRejected  EventType = "listing.rejected"
	EventListingCompleted EventType = "listing.completed"
	EventListingConfirmed EventType = "listing.confirmed"
	EventListingCancelled EventType = "listing.cancelled"
	EventFriendRequested  EventType = "friend.requested"
	EventFriendAccepted   EventType = "friend.accepted"
)

// Event событие для одного получателя.
type Event struct {
	Type        EventType  `json:"type"`
	RecipientID uuid.UUID  `json:"-"`
	ActorID     uuid.UUID  `json:"actor_id"`
	ActorName   string     `json:"actor_name,omitempty"`
	ListingID   *uuid.UUID `json:"listing_id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Hours       float64    `json:"hours,omitempty"`
}

// Publisher доставляет события. Ошибки доставки не возвращаются вызывающему.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

// Nop ничего не отправляет.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) {}

// Text человекочитаемое описание события для чат-уведомлений.
func Text(e Event) string {
	actor := e.ActorName
	if actor == "" {
		actor = "Пользователь"
	}
	switch e.Type {
	case EventListingApplied:
		return fmt.Sprintf("%s откликнулся на заявку «%s»", actor, e.Title)
	case EventListingAccepted:
		return fmt.Sprintf("%s принял ваш отклик на «%s»", actor, e.Title)
	case EventListingRejected:
		return fmt.Sprintf("%s отклонил ваш отклик на «%s»", actor, e.Title)
	case EventListingCompleted:
		return fmt.Sprintf("%s отметил заявку «%s» выполненной, подтвердите выполнение", actor, e.Title)
	case EventListingConfirmed:
		return fmt.Sprintf("%s подтвердил выполнение «%s», начислено %.1f ч", actor, e.Title, e.Hours)
	case EventListingCancelled:
		return fmt.Sprintf("%s отменил заявку «%s»", actor, e.Title)
	case EventFriendRequested:
		return fmt.Sprintf("%s хочет добавить вас в друзья", actor)
	case EventFriendAccepted:
		return fmt.Sprintf("%s принял заявку в друзья", actor)
	default:
		return fmt.Sprintf("Новое событие: %s", e.Type)
	}
}
