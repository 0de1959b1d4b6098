package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/repository"
)

// TxRunner открывает транзакцию хранилища. *repository.Store реализует его.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

// UserRepository описывает зависимости сервисов от хранилища пользователей.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]models.User, error)
	ListPartners(ctx context.Context, userID uuid.UUID) ([]models.User, error)
}

// ListingRepository - чтение и создание объявлений. Переходы идут через Tx.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Listing, error)
}

// TransactionRepository - чтение журнала переводов.
type TransactionRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// FriendRepository описывает хранилище заявок в друзья.
type FriendRepository interface {
	Create(ctx context.Context, f *models.Friendship) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Friendship, error)
	FindBetween(ctx context.Context, a, b uuid.UUID) (*models.Friendship, error)
	MarkAccepted(ctx context.Context, id uuid.UUID) error
	DeletePending(ctx context.Context, id uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.User, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]repository.IncomingRequest, error)
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// SessionRepository хранит refresh-сессии.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Consume(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	DeleteForUser(ctx context.Context, id, userID uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// FriendChecker проверяет дружбу для ограничения видимости.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// Observer получает бизнес-метрики. *metrics.Recorder реализует его.
type Observer interface {
	Transition(name, outcome string)
	Transfer(kind string, hours float64)
	Login(method, outcome string)
}

type nopObserver struct{}

func (nopObserver) Transition(string, string) {}
func (nopObserver) Transfer(string, float64) {}
func (nopObserver) Login(string, string) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

// outcome - метка результата операции для метрик.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperror.CodeOf(err))
}

// toAppError переводит ошибки хранилища в ошибки приложения.
// Уже сформированные AppError возвращаются как есть.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.From(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrListingNotFound):
		return apperror.ErrListingNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrFriendshipNotFound):
		return apperror.ErrFriendNotFound
	case errors.Is(err, repository.ErrSessionNotFound):
		return apperror.ErrSessionNotFound
	case errors.Is(err, repository.ErrFriendshipExists):
		return apperror.ErrFriendExists
	case errors.Is(err, repository.ErrFriendshipNotPending):
		return apperror.New(apperror.ErrCodeInvalidState, "заявка в друзья уже обработана")
	default:
		return apperror.Internal(err)
	}
}
