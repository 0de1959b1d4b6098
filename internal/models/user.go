package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает участника банка времени.
type User struct {
	ID          uuid.UUID `db:"id" json:"id"`
	TelegramID  int64     `db:"telegram_id" json:"telegram_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	AvatarURL   *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Balance     float64   `db:"balance" json:"balance"`
	EarnedHours float64   `db:"earned_hours" json:"earned_hours"`
	SpentHours  float64   `db:"spent_hours" json:"spent_hours"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PublicUser - представление пользователя для других участников, без баланса.
type PublicUser struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	EarnedHours *float64  `json:"earned_hours,omitempty"`
	SpentHours  *float64  `json:"spent_hours,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Public возвращает публичное представление. withStats добавляет счётчики часов.
func (u *User) Public(withStats bool) PublicUser {
	p := PublicUser{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
	}
	if withStats {
		earned, spent := u.EarnedHours, u.SpentHours
		p.EarnedHours = &earned
		p.SpentHours = &spent
	}
	return p
}

// Session представляет сохранённую refresh-сессию. ID совпадает с jti refresh токена.
type Session struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	UserAgent *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
