package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/repository"
	"github.com/sratov/TimeBankingBot/internal/telegram"
	"github.com/sratov/TimeBankingBot/internal/validation"
)

const searchLimit = 10

// UserService - справочник пользователей.
type UserService struct {
	users           UserRepository
	friends         FriendChecker
	startingBalance float64
	log             *logrus.Logger
}

func NewUserService(users UserRepository, friends FriendChecker, startingBalance float64, log *logrus.Logger) *UserService {
	return &UserService{
		users:           users,
		friends:         friends,
		startingBalance: startingBalance,
		log:             log,
	}
}

// GetOrCreate находит пользователя по Telegram ID или создаёт его со стартовым балансом.
// Если параллельный запрос успел создать запись первым, возвращается его запись.
func (s *UserService) GetOrCreate(ctx context.Context, tu telegram.User) (*models.User, bool, error) {
	if tu.ID <= 0 {
		return nil, false, apperror.ErrMalformedInitData
	}
	name := validation.NormalizeDisplayName(tu.DisplayName())
	if name == "" {
		name = "user_" + strconv.FormatInt(tu.ID, 10)
	}
	photo := strings.TrimSpace(tu.PhotoURL)

	existing, err := s.users.GetByTelegramID(ctx, tu.ID)
	if err == nil {
		s.syncProfile(ctx, existing, name, photo)
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, apperror.Internal(fmt.Errorf("user service: %w", err))
	}

	user := &models.User{
		TelegramID:  tu.ID,
		DisplayName: name,
		Balance:     s.startingBalance,
	}
	if isRemoteURL(photo) {
		user.AvatarURL = &photo
	}

	err = s.users.Create(ctx, user)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, repository.ErrUserExists) {
		return nil, false, apperror.Internal(fmt.Errorf("user service: %w", err))
	}

	// Запись создал параллельный вход того же пользователя.
	winner, err := s.users.GetByTelegramID(ctx, tu.ID)
	if err != nil {
		return nil, false, apperror.Internal(fmt.Errorf("user service: повторное чтение: %w", err))
	}
	s.syncProfile(ctx, winner, name, photo)
	return winner, false, nil
}

// syncProfile обновляет имя и аватар из Telegram. Загруженный вручную аватар не перезаписывается.
func (s *UserService) syncProfile(ctx context.Context, user *models.User, name, photo string) {
	changed := false
	if name != user.DisplayName {
		user.DisplayName = name
		changed = true
	}
	if isRemoteURL(photo) && (user.AvatarURL == nil || (isRemoteURL(*user.AvatarURL) && *user.AvatarURL != photo)) {
		user.AvatarURL = &photo
		changed = true
	}
	if !changed {
		return
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("user service: не удалось обновить профиль")
	}
}

// Me возвращает полный профиль текущего пользователя.
func (s *UserService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, toAppError(err)
	}
	return user, nil
}

// Profile возвращает публичный профиль. Счётчики часов видны самому пользователю и его друзьям.
func (s *UserService) Profile(ctx context.Context, viewerID, targetID uuid.UUID) (*models.PublicUser, error) {
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, toAppError(err)
	}

	withStats, err := s.canSeePrivate(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}

	public := user.Public(withStats)
	return &public, nil
}

// Search ищет пользователей по имени, исключая самого ищущего.
func (s *UserService) Search(ctx context.Context, viewerID uuid.UUID, query string) ([]models.PublicUser, error) {
	if err := validation.ValidateSearchQuery(query); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	users, err := s.users.Search(ctx, strings.TrimSpace(query), viewerID, searchLimit)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("user service: %w", err))
	}
	return publicList(users, false), nil
}

// Partners возвращает пользователей, с которыми есть завершённые объявления.
func (s *UserService) Partners(ctx context.Context, userID uuid.UUID) ([]models.PublicUser, error) {
	users, err := s.users.ListPartners(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("user service: %w", err))
	}
	return publicList(users, false), nil
}

// SetAvatar сохраняет ссылку на загруженный аватар.
func (s *UserService) SetAvatar(ctx context.Context, userID uuid.UUID, url string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, toAppError(err)
	}

	user.AvatarURL = &url
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, toAppError(err)
	}
	return user, nil
}

func (s *UserService) canSeePrivate(ctx context.Context, viewerID, targetID uuid.UUID) (bool, error) {
	if viewerID == targetID {
		return true, nil
	}
	ok, err := s.friends.AreFriends(ctx, viewerID, targetID)
	if err != nil {
		return false, apperror.Internal(fmt.Errorf("user service: %w", err))
	}
	return ok, nil
}

func publicList(users []models.User, withStats bool) []models.PublicUser {
	result := make([]models.PublicUser, 0, len(users))
	for i := range users {
		result = append(result, users[i].Public(withStats))
	}
	return result
}

func isRemoteURL(raw string) bool {
	return strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://")
}
