package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
)

// Friendship - заявка в друзья. На неупорядоченную пару пользователей допускается одна запись.
type Friendship struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	RequesterID uuid.UUID        `db:"requester_id" json:"requester_id"`
	TargetID    uuid.UUID        `db:"target_id" json:"target_id"`
	Status      FriendshipStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// Other возвращает вторую сторону дружбы.
func (f *Friendship) Other(userID uuid.UUID) uuid.UUID {
	if f.RequesterID == userID {
		return f.TargetID
	}
	return f.RequesterID
}

// FriendRequest - входящая заявка вместе с профилем отправителя.
type FriendRequest struct {
	ID        uuid.UUID  `json:"id"`
	From      PublicUser `json:"from"`
	CreatedAt time.Time  `json:"created_at"`
}
