package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/notify"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/repository"
)

// FriendService - граф друзей.
type FriendService struct {
	friends   FriendRepository
	users     UserRepository
	publisher notify.Publisher
}

func NewFriendService(friends FriendRepository, users UserRepository, publisher notify.Publisher) *FriendService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &FriendService{friends: friends, users: users, publisher: publisher}
}

// Request отправляет заявку в друзья. На пару пользователей допускается одна запись в любом направлении.
func (s *FriendService) Request(ctx context.Context, fromID, toID uuid.UUID) (*models.Friendship, error) {
	if fromID == toID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя добавить в друзья самого себя")
	}

	from, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return nil, toAppError(err)
	}
	if _, err := s.users.GetByID(ctx, toID); err != nil {
		return nil, toAppError(err)
	}

	if _, err := s.friends.FindBetween(ctx, fromID, toID); err == nil {
		return nil, apperror.ErrFriendExists
	} else if !errors.Is(err, repository.ErrFriendshipNotFound) {
		return nil, apperror.Internal(fmt.Errorf("friend service: %w", err))
	}

	f := &models.Friendship{
		RequesterID: fromID,
		TargetID:    toID,
		Status:      models.FriendshipStatusPending,
	}
	if err := s.friends.Create(ctx, f); err != nil {
		return nil, toAppError(err)
	}

	s.publisher.Publish(ctx, notify.Event{
		Type:        notify.EventFriendRequested,
		RecipientID: toID,
		ActorID:     fromID,
		ActorName:   from.DisplayName,
	})
	return f, nil
}

// Accept принимает входящую заявку. Принять может только адресат.
func (s *FriendService) Accept(ctx context.Context, requestID, actorID uuid.UUID) (*models.Friendship, error) {
	f, err := s.pendingFor(ctx, requestID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.friends.MarkAccepted(ctx, f.ID); err != nil {
		return nil, toAppError(err)
	}
	f.Status = models.FriendshipStatusAccepted

	event := notify.Event{
		Type:        notify.EventFriendAccepted,
		RecipientID: f.RequesterID,
		ActorID:     actorID,
	}
	if actor, err := s.users.GetByID(ctx, actorID); err == nil {
		event.ActorName = actor.DisplayName
	}
	s.publisher.Publish(ctx, event)
	return f, nil
}

// Reject отклоняет входящую заявку и удаляет её.
func (s *FriendService) Reject(ctx context.Context, requestID, actorID uuid.UUID) error {
	f, err := s.pendingFor(ctx, requestID, actorID)
	if err != nil {
		return err
	}
	return toAppError(s.friends.DeletePending(ctx, f.ID))
}

// ListFriends возвращает друзей пользователя. Друзьям видны счётчики часов.
func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.PublicUser, error) {
	users, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("friend service: %w", err))
	}
	return publicList(users, true), nil
}

// ListPending возвращает входящие заявки.
func (s *FriendService) ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	incoming, err := s.friends.ListIncoming(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("friend service: %w", err))
	}

	result := make([]models.FriendRequest, 0, len(incoming))
	for _, r := range incoming {
		result = append(result, models.FriendRequest{
			ID: r.ID,
			From: models.PublicUser{
				ID:          r.RequesterID,
				DisplayName: r.RequesterName,
				AvatarURL:   r.RequesterAvatar,
			},
			CreatedAt: r.CreatedAt,
		})
	}
	return result, nil
}

// AreFriends сообщает, дружат ли пользователи.
func (s *FriendService) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	ok, err := s.friends.AreFriends(ctx, a, b)
	if err != nil {
		return false, apperror.Internal(fmt.Errorf("friend service: %w", err))
	}
	return ok, nil
}

func (s *FriendService) pendingFor(ctx context.Context, requestID, actorID uuid.UUID) (*models.Friendship, error) {
	f, err := s.friends.GetByID(ctx, requestID)
	if err != nil {
		return nil, toAppError(err)
	}
	if f.TargetID != actorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "ответить на заявку может только её адресат")
	}
	if f.Status != models.FriendshipStatusPending {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "заявка в друзья уже обработана")
	}
	return f, nil
}
