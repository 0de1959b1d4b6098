package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/repository/common"
)

const listingColumns = `id, creator_id, worker_id, title, description, hours, status, listing_type, prepayment_transaction_id, created_at, updated_at`

// ListingRepository - чтение и создание объявлений. Переходы статусов идут через Tx.
type ListingRepository struct {
	db *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create сохраняет новое объявление.
func (r *ListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}

	query := `
		INSERT INTO listings (id, creator_id, title, description, hours, status, listing_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		listing.ID, listing.CreatorID, listing.Title, listing.Description,
		listing.Hours, listing.Status, listing.Type,
	).Scan(&listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("listing repository: create: %w", err)
	}
	return nil
}

// GetByID возвращает объявление без блокировки.
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := common.GetOne[models.Listing](ctx, r.db, ErrListingNotFound,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	if err != nil && err != ErrListingNotFound {
		return nil, fmt.Errorf("listing repository: get by id: %w", err)
	}
	return listing, err
}

// List возвращает объявления по фильтру, новые первыми.
func (r *ListingRepository) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conds = append(conds, fmt.Sprintf("listing_type = $%d", len(args)))
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	listings := []models.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("listing repository: list: %w", err)
	}
	return listings, nil
}

// ListByUser возвращает объявления, где пользователь автор или исполнитель.
func (r *ListingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Listing, error) {
	listings := []models.Listing{}
	err := r.db.SelectContext(ctx, &listings, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE creator_id = $1 OR worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing repository: list by user: %w", err)
	}
	return listings, nil
}
