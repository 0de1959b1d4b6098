package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/repository/common"
)

const userColumns = `id, telegram_id, display_name, avatar_url, balance, earned_hours, spent_hours, created_at, updated_at`

// UserRepository отвечает за таблицу users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create добавляет пользователя. При гонке за telegram_id возвращает ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, telegram_id, display_name, avatar_url, balance, earned_hours, spent_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.TelegramID, user.DisplayName, user.AvatarURL,
		user.Balance, user.EarnedHours, user.SpentHours,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("user repository: create: %w", err)
	}

	return nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := common.GetOne[models.User](ctx, r.db, ErrUserNotFound,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil && err != ErrUserNotFound {
		return nil, fmt.Errorf("user repository: get by id: %w", err)
	}
	return user, err
}

// GetByTelegramID возвращает пользователя по идентификатору Telegram.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := common.GetOne[models.User](ctx, r.db, ErrUserNotFound,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	if err != nil && err != ErrUserNotFound {
		return nil, fmt.Errorf("user repository: get by telegram id: %w", err)
	}
	return user, err
}

// UpdateProfile обновляет имя и аватар. Балансы здесь не меняются.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET display_name = $2, avatar_url = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, user.ID, user.DisplayName, user.AvatarURL).Scan(&user.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: update profile: %w", err)
	}
	return nil
}

// Search ищет пользователей по подстроке имени, исключая excludeID.
func (r *UserRepository) Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM users
		WHERE display_name ILIKE $1 ESCAPE '\' AND id <> $2
		ORDER BY display_name
		LIMIT $3
	`, "%"+common.EscapeLike(query)+"%", excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("user repository: search: %w", err)
	}
	return users, nil
}

// ListPartners возвращает пользователей, с которыми есть завершённые объявления.
func (r *UserRepository) ListPartners(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT DISTINCT u.id, u.telegram_id, u.display_name, u.avatar_url, u.balance,
		       u.earned_hours, u.spent_hours, u.created_at, u.updated_at
		FROM users u
		JOIN listings l ON l.status = 'completed'
		 AND ((l.creator_id = $1 AND l.worker_id = u.id) OR (l.worker_id = $1 AND l.creator_id = u.id))
		ORDER BY u.display_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("user repository: list partners: %w", err)
	}
	return users, nil
}
