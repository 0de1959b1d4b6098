package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/repository/common"
)

const friendshipColumns = `id, requester_id, target_id, status, created_at`

// IncomingRequest - входящая заявка вместе с данными отправителя.
type IncomingRequest struct {
	ID              uuid.UUID `db:"id"`
	CreatedAt       time.Time `db:"created_at"`
	RequesterID     uuid.UUID `db:"requester_id"`
	RequesterName   string    `db:"requester_name"`
	RequesterAvatar *string   `db:"requester_avatar"`
}

// FriendRepository отвечает за таблицу friendships.
type FriendRepository struct {
	db *sqlx.DB
}

func NewFriendRepository(db *sqlx.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

// Create добавляет заявку. Уникальный индекс по неупорядоченной паре
// превращает гонку встречных заявок в ErrFriendshipExists.
func (r *FriendRepository) Create(ctx context.Context, f *models.Friendship) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO friendships (id, requester_id, target_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, f.ID, f.RequesterID, f.TargetID, f.Status).Scan(&f.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return ErrFriendshipExists
		}
		return fmt.Errorf("friend repository: create: %w", err)
	}
	return nil
}

func (r *FriendRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Friendship, error) {
	f, err := common.GetOne[models.Friendship](ctx, r.db, ErrFriendshipNotFound,
		`SELECT `+friendshipColumns+` FROM friendships WHERE id = $1`, id)
	if err != nil && err != ErrFriendshipNotFound {
		return nil, fmt.Errorf("friend repository: get by id: %w", err)
	}
	return f, err
}

// FindBetween ищет запись между пользователями в любом направлении.
func (r *FriendRepository) FindBetween(ctx context.Context, a, b uuid.UUID) (*models.Friendship, error) {
	f, err := common.GetOne[models.Friendship](ctx, r.db, ErrFriendshipNotFound, `
		SELECT `+friendshipColumns+`
		FROM friendships
		WHERE (requester_id = $1 AND target_id = $2) OR (requester_id = $2 AND target_id = $1)
	`, a, b)
	if err != nil && err != ErrFriendshipNotFound {
		return nil, fmt.Errorf("friend repository: find between: %w", err)
	}
	return f, err
}

// MarkAccepted переводит заявку в accepted, только если она ещё pending.
func (r *FriendRepository) MarkAccepted(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE friendships SET status = 'accepted' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("friend repository: accept: %w", err)
	}
	return common.RequireAffected(res, ErrFriendshipNotPending)
}

// DeletePending удаляет заявку, только если она ещё pending.
func (r *FriendRepository) DeletePending(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM friendships WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("friend repository: delete: %w", err)
	}
	return common.RequireAffected(res, ErrFriendshipNotPending)
}

// ListFriends возвращает вторую сторону всех принятых заявок пользователя.
func (r *FriendRepository) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT u.id, u.telegram_id, u.display_name, u.avatar_url, u.balance,
		       u.earned_hours, u.spent_hours, u.created_at, u.updated_at
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.requester_id = $1 THEN f.target_id ELSE f.requester_id END
		WHERE f.status = 'accepted' AND (f.requester_id = $1 OR f.target_id = $1)
		ORDER BY u.display_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("friend repository: list friends: %w", err)
	}
	return users, nil
}

// ListIncoming возвращает входящие заявки, ожидающие ответа.
func (r *FriendRepository) ListIncoming(ctx context.Context, userID uuid.UUID) ([]IncomingRequest, error) {
	reqs := []IncomingRequest{}
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT f.id, f.created_at, u.id AS requester_id,
		       u.display_name AS requester_name, u.avatar_url AS requester_avatar
		FROM friendships f
		JOIN users u ON u.id = f.requester_id
		WHERE f.target_id = $1 AND f.status = 'pending'
		ORDER BY f.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("friend repository: list incoming: %w", err)
	}
	return reqs, nil
}

// AreFriends сообщает, есть ли между пользователями принятая дружба.
func (r *FriendRepository) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM friendships
			WHERE status = 'accepted'
			  AND ((requester_id = $1 AND target_id = $2) OR (requester_id = $2 AND target_id = $1))
		)
	`, a, b)
	if err != nil {
		return false, fmt.Errorf("friend repository: are friends: %w", err)
	}
	return exists, nil
}
