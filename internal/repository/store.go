package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/repository/common"
)

// Tx - операции, выполняемые внутри одной транзакции перехода объявления.
// Строки, прочитанные через Lock*, остаются заблокированными до конца транзакции.
type Tx interface {
	LockListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	UpdateListing(ctx context.Context, listing *models.Listing) error
	LockUsers(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.User, error)
	UpdateBalances(ctx context.Context, user *models.User) error
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// Store открывает транзакции над PostgreSQL.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WithinTx выполняет fn в транзакции. Ошибка fn откатывает все изменения.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return common.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, &sqlTx{tx: tx})
	})
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) LockListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := common.GetOne[models.Listing](ctx, t.tx, ErrListingNotFound,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
	if err != nil && err != ErrListingNotFound {
		return nil, fmt.Errorf("store: lock listing: %w", err)
	}
	return listing, err
}

func (t *sqlTx) UpdateListing(ctx context.Context, listing *models.Listing) error {
	err := t.tx.QueryRowxContext(ctx, `
		UPDATE listings
		SET worker_id = $2, status = $3, prepayment_transaction_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, listing.ID, listing.WorkerID, listing.Status, listing.PrepaymentTransactionID).Scan(&listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update listing: %w", err)
	}
	return nil
}

// LockUsers блокирует строки пользователей в порядке возрастания id,
// чтобы встречные переходы не взаимоблокировались.
func (t *sqlTx) LockUsers(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.User, error) {
	keys := make([]string, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id.String())
	}
	sort.Strings(keys)

	var users []models.User
	err := t.tx.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`,
		pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("store: lock users: %w", err)
	}
	if len(users) != len(keys) {
		return nil, ErrUserNotFound
	}

	locked := make(map[uuid.UUID]*models.User, len(users))
	for i := range users {
		locked[users[i].ID] = &users[i]
	}
	return locked, nil
}

func (t *sqlTx) UpdateBalances(ctx context.Context, user *models.User) error {
	err := t.tx.QueryRowxContext(ctx, `
		UPDATE users
		SET balance = $2, earned_hours = $3, spent_hours = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, user.ID, user.Balance, user.EarnedHours, user.SpentHours).Scan(&user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: update balances: %w", err)
	}
	return nil
}

func (t *sqlTx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO transactions (id, payer_id, payee_id, hours, description, kind, listing_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, tr.ID, tr.PayerID, tr.PayeeID, tr.Hours, tr.Description, tr.Kind, tr.ListingID).Scan(&tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tr, err := common.GetOne[models.Transaction](ctx, t.tx, ErrTransactionNotFound,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil && err != ErrTransactionNotFound {
		return nil, fmt.Errorf("store: get transaction: %w", err)
	}
	return tr, err
}
