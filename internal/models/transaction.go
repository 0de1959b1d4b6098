package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionKindPrepayment TransactionKind = "prepayment"
	TransactionKindPayment    TransactionKind = "payment"
	// TransactionKindRefund зарезервирован, текущий сценарий объявлений его не создаёт.
	TransactionKindRefund TransactionKind = "refund"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindPrepayment, TransactionKindPayment, TransactionKindRefund:
		return true
	}
	return false
}

// Transaction - неизменяемая запись журнала переводов часов.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PayerID     uuid.UUID       `db:"payer_id" json:"payer_id"`
	PayeeID     uuid.UUID       `db:"payee_id" json:"payee_id"`
	Hours       float64         `db:"hours" json:"hours"`
	Description string          `db:"description" json:"description"`
	Kind        TransactionKind `db:"kind" json:"kind"`
	ListingID   *uuid.UUID      `db:"listing_id" json:"listing_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
