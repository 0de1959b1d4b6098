package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	ListingStatusActive              ListingStatus = "active"
	ListingStatusPendingWorker       ListingStatus = "pending_worker"
	ListingStatusInProgress          ListingStatus = "in_progress"
	ListingStatusPendingConfirmation ListingStatus = "pending_confirmation"
	ListingStatusCompleted           ListingStatus = "completed"
	ListingStatusCancelled           ListingStatus = "cancelled"
)

var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingStatusActive:              {ListingStatusPendingWorker, ListingStatusCancelled},
	ListingStatusPendingWorker:       {ListingStatusActive, ListingStatusInProgress, ListingStatusCancelled},
	ListingStatusInProgress:          {ListingStatusPendingConfirmation},
	ListingStatusPendingConfirmation: {ListingStatusCompleted},
	ListingStatusCompleted:           {},
	ListingStatusCancelled:           {},
}

func (s ListingStatus) IsValid() bool {
	_, ok := listingTransitions[s]
	return ok
}

func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusCompleted || s == ListingStatusCancelled
}

func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	for _, allowed := range listingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ListingType string

const (
	// ListingTypeRequest - автору нужна помощь, платит автор.
	ListingTypeRequest ListingType = "request"
	// ListingTypeOffer - автор предлагает помощь, платит исполнитель.
	ListingTypeOffer ListingType = "offer"
)

func (t ListingType) IsValid() bool {
	return t == ListingTypeRequest || t == ListingTypeOffer
}

// Listing - объявление с запросом или предложением помощи.
type Listing struct {
	ID                      uuid.UUID     `db:"id" json:"id"`
	CreatorID               uuid.UUID     `db:"creator_id" json:"creator_id"`
	WorkerID                *uuid.UUID    `db:"worker_id" json:"worker_id,omitempty"`
	Title                   string        `db:"title" json:"title"`
	Description             string        `db:"description" json:"description"`
	Hours                   float64       `db:"hours" json:"hours"`
	Status                  ListingStatus `db:"status" json:"status"`
	Type                    ListingType   `db:"listing_type" json:"listing_type"`
	PrepaymentTransactionID *uuid.UUID    `db:"prepayment_transaction_id" json:"prepayment_transaction_id,omitempty"`
	CreatedAt               time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time     `db:"updated_at" json:"updated_at"`
}

func (l *Listing) IsCreator(userID uuid.UUID) bool {
	return l.CreatorID == userID
}

func (l *Listing) IsWorker(userID uuid.UUID) bool {
	return l.WorkerID != nil && *l.WorkerID == userID
}

// IsParticipant сообщает, является ли пользователь автором или исполнителем.
func (l *Listing) IsParticipant(userID uuid.UUID) bool {
	return l.IsCreator(userID) || l.IsWorker(userID)
}

// Parties возвращает плательщика и получателя. Для request платит автор,
// для offer платит исполнитель. ok=false, если исполнитель ещё не выбран.
func (l *Listing) Parties() (payer, receiver uuid.UUID, ok bool) {
	if l.WorkerID == nil {
		return uuid.Nil, uuid.Nil, false
	}
	if l.Type == ListingTypeOffer {
		return *l.WorkerID, l.CreatorID, true
	}
	return l.CreatorID, *l.WorkerID, true
}

// ListingFilter задаёт параметры выборки объявлений.
type ListingFilter struct {
	Status *ListingStatus
	Type   *ListingType
	Limit  int
	Offset int
}

// PrepaymentShare - доля предоплаты от стоимости объявления.
const PrepaymentShare = 0.33

// Prepayment считает предоплату: 33% от часов с округлением до десятых, половина вверх.
func Prepayment(hours float64) float64 {
	tenths := RoundAmount(hours * PrepaymentShare * 10)
	return math.Floor(tenths+0.5) / 10
}

// RoundAmount убирает погрешность двоичной арифметики в суммах часов.
func RoundAmount(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
