package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sratov/TimeBankingBot/internal/models"
)

const transactionColumns = `id, payer_id, payee_id, hours, description, kind, listing_id, created_at`

// TransactionRepository - чтение журнала переводов. Запись идёт только через Tx.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByUser возвращает входящие и исходящие переводы пользователя.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE payer_id = $1 OR payee_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: list: %w", err)
	}
	return txs, nil
}
