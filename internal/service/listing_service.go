package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/notify"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/repository"
	"github.com/sratov/TimeBankingBot/internal/validation"
)

const (
	defaultListingLimit = 20
	maxListingLimit     = 100
)

// CreateListingInput содержит данные нового объявления.
type CreateListingInput struct {
	Title       string
	Description string
	Hours       float64
	Type        models.ListingType
}

// ListingService управляет жизненным циклом объявлений.
type ListingService struct {
	listings  ListingRepository
	users     UserRepository
	friends   FriendChecker
	store     TxRunner
	ledger    *Ledger
	publisher notify.Publisher
	observer  Observer
	log       *logrus.Logger
}

// ListingDeps собирает зависимости ListingService.
type ListingDeps struct {
	Listings  ListingRepository
	Users     UserRepository
	Friends   FriendChecker
	Store     TxRunner
	Ledger    *Ledger
	Publisher notify.Publisher
	Observer  Observer
	Log       *logrus.Logger
}

func NewListingService(deps ListingDeps) *ListingService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &ListingService{
		listings:  deps.Listings,
		users:     deps.Users,
		friends:   deps.Friends,
		store:     deps.Store,
		ledger:    deps.Ledger,
		publisher: publisher,
		observer:  observerOrNop(deps.Observer),
		log:       deps.Log,
	}
}

// Create публикует объявление. Для запроса помощи у автора должно хватать часов на всю сумму.
func (s *ListingService) Create(ctx context.Context, creatorID uuid.UUID, in CreateListingInput) (*models.Listing, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	hours := models.RoundAmount(in.Hours)

	if err := validation.ValidateListingTitle(title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateListingDescription(description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateHours(hours); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if !in.Type.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "тип объявления должен быть request или offer")
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, toAppError(err)
	}
	if in.Type == models.ListingTypeRequest && creator.Balance < hours {
		s.observer.Transition("create", string(apperror.ErrCodeInsufficientFunds))
		return nil, apperror.ErrInsufficientFunds
	}

	listing := &models.Listing{
		CreatorID:   creatorID,
		Title:       title,
		Description: description,
		Hours:       hours,
		Status:      models.ListingStatusActive,
		Type:        in.Type,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, apperror.Internal(fmt.Errorf("listing service: %w", err))
	}

	s.observer.Transition("create", "ok")
	return listing, nil
}

// Get возвращает объявление по ID.
func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, toAppError(err)
	}
	return listing, nil
}

// List возвращает ленту объявлений с фильтрами.
func (s *ListingService) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус объявления")
	}
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип объявления")
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset, defaultListingLimit, maxListingLimit)

	items, err := s.listings.List(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("listing service: %w", err))
	}
	return items, nil
}

// ListForUser возвращает объявления пользователя. Доступно самому пользователю и его друзьям.
func (s *ListingService) ListForUser(ctx context.Context, viewerID, targetID uuid.UUID, limit, offset int) ([]models.Listing, error) {
	if viewerID != targetID {
		if _, err := s.users.GetByID(ctx, targetID); err != nil {
			return nil, toAppError(err)
		}
		ok, err := s.friends.AreFriends(ctx, viewerID, targetID)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("listing service: %w", err))
		}
		if !ok {
			return nil, apperror.New(apperror.ErrCodeForbidden, "объявления пользователя видны только друзьям")
		}
	}

	limit, offset = clampPage(limit, offset, defaultListingLimit, maxListingLimit)
	items, err := s.listings.ListByUser(ctx, targetID, limit, offset)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("listing service: %w", err))
	}
	return items, nil
}

// Apply назначает откликнувшегося исполнителем. Для предложения помощи у него должно хватать часов.
func (s *ListingService) Apply(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return s.transition(ctx, "apply", listingID, actorID, func(ctx context.Context, tx repository.Tx, l *models.Listing, fx *effects) error {
		if err := requireState(l, models.ListingStatusPendingWorker); err != nil {
			return err
		}
		if l.IsCreator(actorID) {
			return apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на своё объявление")
		}
		if l.Type == models.ListingTypeOffer {
			users, err := tx.LockUsers(ctx, actorID)
			if err != nil {
				return err
			}
			if users[actorID].Balance < l.Hours {
				return apperror.ErrInsufficientFunds
			}
		}

		worker := actorID
		l.WorkerID = &worker
		l.Status = models.ListingStatusPendingWorker
		fx.notify(notify.EventListingApplied, l.CreatorID)
		return nil
	})
}

// Reject отклоняет исполнителя и возвращает объявление в ленту.
func (s *ListingService) Reject(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return s.transition(ctx, "reject", listingID, actorID, func(ctx context.Context, tx repository.Tx, l *models.Listing, fx *effects) error {
		if err := requireState(l, models.ListingStatusActive); err != nil {
			return err
		}
		if !l.IsCreator(actorID) {
			return apperror.New(apperror.ErrCodeForbidden, "отклонить исполнителя может только автор")
		}

		if l.WorkerID != nil {
			fx.notify(notify.EventListingRejected, *l.WorkerID)
		}
		l.WorkerID = nil
		l.Status = models.ListingStatusActive
		return nil
	})
}

// Accept утверждает исполнителя и списывает предоплату с плательщика.
func (s *ListingService) Accept(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return s.transition(ctx, "accept", listingID, actorID, func(ctx context.Context, tx repository.Tx, l *models.Listing, fx *effects) error {
		if err := requireState(l, models.ListingStatusInProgress); err != nil {
			return err
		}
		if !l.IsCreator(actorID) {
			return apperror.New(apperror.ErrCodeForbidden, "принять исполнителя может только автор")
		}
		payer, receiver, ok := l.Parties()
		if !ok {
			return apperror.ErrInvalidState
		}

		// При очень малой стоимости предоплата округляется до нуля и не проводится.
		if amount := models.Prepayment(l.Hours); amount > 0 {
			record, err := s.ledger.Transfer(ctx, tx, TransferInput{
				PayerID:     payer,
				PayeeID:     receiver,
				Hours:       amount,
				Kind:        models.TransactionKindPrepayment,
				Description: "Предоплата: " + l.Title,
				ListingID:   &l.ID,
			})
			if err != nil {
				return err
			}
			l.PrepaymentTransactionID = &record.ID
			fx.transfers = append(fx.transfers, record)
		}

		l.Status = models.ListingStatusInProgress
		fx.notify(notify.EventListingAccepted, *l.WorkerID)
		return nil
	})
}

// Complete отмечает работу выполненной. Вызывает получатель часов.
func (s *ListingService) Complete(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return s.transition(ctx, "complete", listingID, actorID, func(ctx context.Context, tx repository.Tx, l *models.Listing, fx *effects) error {
		if err := requireState(l, models.ListingStatusPendingConfirmation); err != nil {
			return err
		}
		payer, receiver, ok := l.Parties()
		if !ok {
			return apperror.ErrInvalidState
		}
		if actorID != receiver {
			return apperror.New(apperror.ErrCodeForbidden, "отметить выполнение может только исполнитель работы")
		}

		l.Status = models.ListingStatusPendingConfirmation
		fx.notify(notify.EventListingCompleted, payer)
		return nil
	})
}

// Confirm подтверждает выполнение, переводит остаток и обновляет счётчики. Вызывает плательщик.
func (s *ListingService) Confirm(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return s.transition(ctx, "confirm", listingID, actorID, func(ctx context.Context, tx repository.Tx, l *models.Listing, fx *effects) error {
		if err := requireState(l, models.ListingStatusCompleted); err != nil {
			return err
		}
		payer, receiver, ok := l.Parties()
		if !ok {
			return apperror.ErrInvalidState
		}
		if actorID != payer {
			return apperror.New(apperror.ErrCodeForbidden, "подтвердить выполнение может только плательщик")
		}

		prepaid := 0.0
		if l.PrepaymentTransactionID != nil {
			prepayment, err := tx.GetTransaction(ctx, *l.PrepaymentTransactionID)
			if err != nil {
				return err
			}
			prepaid = prepayment.Hours
		}

		if remaining := models.RoundAmount(l.Hours - prepaid); remaining > 0 {
			record, err := s.ledger.Transfer(ctx, tx, TransferInput{
				PayerID:     payer,
				PayeeID:     receiver,
				Hours:       remaining,
				Kind:        models.TransactionKindPayment,
				Description: "Оплата: " + l.Title,
				ListingID:   &l.ID,
			})
			if err != nil {
				return err
			}
			fx.transfers = append(fx.transfers, record)
		}

		if err := s.ledger.Settle(ctx, tx, payer, receiver, l.Hours); err != nil {
			return err
		}

		l.Status = models.ListingStatusCompleted
		fx.notifyHours(notify.EventListingConfirmed, receiver, l.Hours)
		return nil
	})
}

// Cancel снимает объявление до начала работы.
func (s *ListingService) Cancel(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return s.transition(ctx, "cancel", listingID, actorID, func(ctx context.Context, tx repository.Tx, l *models.Listing, fx *effects) error {
		if err := requireState(l, models.ListingStatusCancelled); err != nil {
			return err
		}
		if !l.IsCreator(actorID) {
			return apperror.New(apperror.ErrCodeForbidden, "отменить объявление может только автор")
		}

		if l.WorkerID != nil {
			fx.notify(notify.EventListingCancelled, *l.WorkerID)
		}
		l.WorkerID = nil
		l.Status = models.ListingStatusCancelled
		return nil
	})
}

// effects накапливает последствия перехода, которые применяются только после коммита.
type effects struct {
	listing   *models.Listing
	transfers []*models.Transaction
	events    []notify.Event
}

func (fx *effects) notify(typ notify.EventType, recipient uuid.UUID) {
	fx.notifyHours(typ, recipient, 0)
}

func (fx *effects) notifyHours(typ notify.EventType, recipient uuid.UUID, hours float64) {
	id := fx.listing.ID
	fx.events = append(fx.events, notify.Event{
		Type:        typ,
		RecipientID: recipient,
		ListingID:   &id,
		Title:       fx.listing.Title,
		Hours:       hours,
	})
}

type transitionStep func(ctx context.Context, tx repository.Tx, l *models.Listing, fx *effects) error

// transition выполняет переход в одной транзакции: блокировка объявления,
// проверки шага, переводы и сохранение статуса. Любая ошибка откатывает всё.
func (s *ListingService) transition(ctx context.Context, name string, listingID, actorID uuid.UUID, step transitionStep) (*models.Listing, error) {
	fx := &effects{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		listing, err := tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		fx.listing = listing

		if err := step(ctx, tx, listing, fx); err != nil {
			return err
		}
		return tx.UpdateListing(ctx, listing)
	})
	err = toAppError(err)
	s.observer.Transition(name, outcome(err))

	if err != nil {
		if apperror.CodeOf(err) == apperror.ErrCodeInternal {
			s.log.WithError(err).WithFields(logrus.Fields{
				"transition": name,
				"listing_id": listingID,
			}).Error("listing service: переход не выполнен")
		}
		return nil, err
	}

	for _, t := range fx.transfers {
		s.observer.Transfer(string(t.Kind), t.Hours)
	}
	s.publish(ctx, actorID, fx.events)
	return fx.listing, nil
}

func (s *ListingService) publish(ctx context.Context, actorID uuid.UUID, events []notify.Event) {
	if len(events) == 0 {
		return
	}
	actorName := ""
	if actor, err := s.users.GetByID(ctx, actorID); err == nil {
		actorName = actor.DisplayName
	}
	for i := range events {
		events[i].ActorID = actorID
		events[i].ActorName = actorName
	}
	s.publisher.Publish(ctx, events...)
}

// requireState проверяет, что из текущего статуса разрешён переход в next.
func requireState(l *models.Listing, next models.ListingStatus) error {
	if !l.Status.CanTransitionTo(next) {
		return apperror.ErrInvalidState
	}
	return nil
}
