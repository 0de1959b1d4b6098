package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// TransferInput описывает перевод часов между пользователями.
type TransferInput struct {
	PayerID     uuid.UUID
	PayeeID     uuid.UUID
	Hours       float64
	Kind        models.TransactionKind
	Description string
	ListingID   *uuid.UUID
}

// Ledger - единственное место, где меняются балансы и создаются записи журнала.
type Ledger struct {
	transactions TransactionRepository
}

func NewLedger(transactions TransactionRepository) *Ledger {
	return &Ledger{transactions: transactions}
}

// Transfer переводит часы внутри переданной транзакции хранилища.
// Баланс плательщика проверяется по заблокированной строке.
func (l *Ledger) Transfer(ctx context.Context, tx repository.Tx, in TransferInput) (*models.Transaction, error) {
	hours := models.RoundAmount(in.Hours)
	if hours <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма перевода должна быть больше нуля")
	}
	if in.PayerID == in.PayeeID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя перевести часы самому себе")
	}
	if !in.Kind.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип перевода")
	}

	users, err := tx.LockUsers(ctx, in.PayerID, in.PayeeID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("ledger: %w", err)
	}
	payer, payee := users[in.PayerID], users[in.PayeeID]

	if payer.Balance < hours {
		return nil, apperror.ErrInsufficientFunds
	}

	payer.Balance = models.RoundAmount(payer.Balance - hours)
	payee.Balance = models.RoundAmount(payee.Balance + hours)

	if err := tx.UpdateBalances(ctx, payer); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	if err := tx.UpdateBalances(ctx, payee); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	record := &models.Transaction{
		PayerID:     in.PayerID,
		PayeeID:     in.PayeeID,
		Hours:       hours,
		Description: in.Description,
		Kind:        in.Kind,
		ListingID:   in.ListingID,
	}
	if err := tx.InsertTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	return record, nil
}

// Settle фиксирует итог выполненного объявления в счётчиках участников.
// Балансы не меняются: деньги уже переведены через Transfer.
func (l *Ledger) Settle(ctx context.Context, tx repository.Tx, payerID, receiverID uuid.UUID, hours float64) error {
	users, err := tx.LockUsers(ctx, payerID, receiverID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrUserNotFound
		}
		return fmt.Errorf("ledger: %w", err)
	}
	payer, receiver := users[payerID], users[receiverID]

	receiver.EarnedHours = models.RoundAmount(receiver.EarnedHours + hours)
	payer.SpentHours = models.RoundAmount(payer.SpentHours + hours)

	if err := tx.UpdateBalances(ctx, receiver); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := tx.UpdateBalances(ctx, payer); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// History возвращает переводы пользователя, новые первыми.
func (l *Ledger) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	limit, offset = clampPage(limit, offset, defaultHistoryLimit, maxHistoryLimit)

	items, err := l.transactions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("ledger: %w", err))
	}
	return items, nil
}

func clampPage(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
