package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/repository/common"
)

// SessionRepository хранит refresh-сессии в user_sessions.
type SessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create сохраняет сессию. ID должен совпадать с jti refresh токена.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO user_sessions (id, user_id, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		session.ID, session.UserID, session.UserAgent, session.IPAddress, session.ExpiresAt,
	).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("session repository: create: %w", err)
	}
	return nil
}

// Consume удаляет действующую сессию и возвращает её. Повторный вызов с тем же id
// вернёт ErrSessionNotFound, поэтому refresh токен работает ровно один раз.
func (r *SessionRepository) Consume(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, err := common.GetOne[models.Session](ctx, r.db, ErrSessionNotFound, `
		DELETE FROM user_sessions
		WHERE id = $1 AND expires_at > NOW()
		RETURNING id, user_id, user_agent, ip_address, expires_at, created_at
	`, id)
	if err != nil && err != ErrSessionNotFound {
		return nil, fmt.Errorf("session repository: consume: %w", err)
	}
	return session, err
}

// ListByUser возвращает активные сессии пользователя.
func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions := []models.Session{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT id, user_id, user_agent, ip_address, expires_at, created_at
		FROM user_sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("session repository: list: %w", err)
	}
	return sessions, nil
}

// DeleteForUser удаляет сессию, только если она принадлежит пользователю.
func (r *SessionRepository) DeleteForUser(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("session repository: delete: %w", err)
	}
	return common.RequireAffected(res, ErrSessionNotFound)
}

// DeleteExpired чистит истёкшие сессии и возвращает число удалённых строк.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("session repository: delete expired: %w", err)
	}
	return res.RowsAffected()
}
