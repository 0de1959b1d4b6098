package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/repository"
	"github.com/sratov/TimeBankingBot/internal/telegram"
)

const (
	loginTelegram = "telegram"
	loginDev      = "dev"
	loginRefresh  = "refresh"
)

// AuthConfig - параметры входа через Telegram.
type AuthConfig struct {
	BotToken   string
	AuthMaxAge time.Duration
}

// AuthResult возвращает итог авторизации.
type AuthResult struct {
	User      *models.User
	Created   bool
	TokenPair *TokenPair
}

// AuthService инкапсулирует вход через Telegram и ротацию сессий.
type AuthService struct {
	cfg          AuthConfig
	users        *UserService
	userRepo     UserRepository
	sessions     SessionRepository
	tokenManager *TokenManager
	observer     Observer
	log          *logrus.Logger
	now          func() time.Time
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(cfg AuthConfig, users *UserService, userRepo UserRepository, sessions SessionRepository,
	tokenManager *TokenManager, observer Observer, log *logrus.Logger) *AuthService {
	return &AuthService{
		cfg:          cfg,
		users:        users,
		userRepo:     userRepo,
		sessions:     sessions,
		tokenManager: tokenManager,
		observer:     observerOrNop(observer),
		log:          log,
		now:          time.Now,
	}
}

// TelegramLogin проверяет подписанные init data и выдаёт пару токенов.
// Пользователь создаётся при первом входе.
func (s *AuthService) TelegramLogin(ctx context.Context, initData string, meta map[string]string) (*AuthResult, error) {
	result, err := s.telegramLogin(ctx, initData, meta)
	s.observer.Login(loginTelegram, outcome(err))
	return result, err
}

func (s *AuthService) telegramLogin(ctx context.Context, initData string, meta map[string]string) (*AuthResult, error) {
	data, err := telegram.Verify(initData, s.cfg.BotToken)
	if err != nil {
		if errors.Is(err, telegram.ErrMalformed) {
			return nil, apperror.Wrap(err, apperror.ErrCodeMalformed, apperror.ErrMalformedInitData.Message)
		}
		if errors.Is(err, telegram.ErrEmptyBotToken) {
			return nil, apperror.Internal(err)
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthenticated, apperror.ErrInvalidSignature.Message)
	}
	if data.Expired(s.now(), s.cfg.AuthMaxAge) {
		return nil, apperror.Wrap(telegram.ErrExpired, apperror.ErrCodeUnauthenticated, "данные авторизации Telegram устарели, откройте приложение заново")
	}

	user, created, err := s.users.GetOrCreate(ctx, data.User)
	if err != nil {
		return nil, err
	}

	pair, err := s.startSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	if created {
		s.log.WithFields(logrus.Fields{
			"user_id":     user.ID,
			"telegram_id": user.TelegramID,
		}).Info("auth service: зарегистрирован новый пользователь")
	}
	return &AuthResult{User: user, Created: created, TokenPair: pair}, nil
}

// DevLogin входит без проверки подписи. Маршрут регистрируется только в режиме разработки.
func (s *AuthService) DevLogin(ctx context.Context, telegramID int64, displayName string, meta map[string]string) (*AuthResult, error) {
	result, err := s.devLogin(ctx, telegramID, displayName, meta)
	s.observer.Login(loginDev, outcome(err))
	return result, err
}

func (s *AuthService) devLogin(ctx context.Context, telegramID int64, displayName string, meta map[string]string) (*AuthResult, error) {
	if telegramID <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "telegram_id должен быть положительным")
	}

	user, created, err := s.users.GetOrCreate(ctx, telegram.User{ID: telegramID, Username: displayName})
	if err != nil {
		return nil, err
	}

	pair, err := s.startSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Created: created, TokenPair: pair}, nil
}

// Refresh выпускает новую пару токенов. Старая сессия удаляется, поэтому refresh токен одноразовый.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta map[string]string) (*AuthResult, error) {
	result, err := s.refresh(ctx, refreshToken, meta)
	s.observer.Login(loginRefresh, outcome(err))
	return result, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string, meta map[string]string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, apperror.ErrUnauthenticated
	}

	claims, err := s.tokenManager.Validate(refreshToken, TokenRefresh)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperror.Wrap(err, apperror.ErrCodeUnauthenticated, apperror.ErrSessionExpired.Message)
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthenticated, "refresh токен невалиден")
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthenticated, "refresh токен невалиден")
	}

	session, err := s.sessions.Consume(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperror.Wrap(err, apperror.ErrCodeUnauthenticated, apperror.ErrSessionExpired.Message)
		}
		return nil, apperror.Internal(fmt.Errorf("auth service: %w", err))
	}

	userID, _ := claims.UserID()
	if session.UserID != userID {
		return nil, apperror.ErrUnauthenticated
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUnauthenticated
		}
		return nil, apperror.Internal(fmt.Errorf("auth service: %w", err))
	}

	pair, err := s.startSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Logout удаляет сессию refresh токена. Невалидный или уже использованный токен не считается ошибкой.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokenManager.Validate(refreshToken, TokenRefresh)
	if err != nil {
		return nil
	}
	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil
	}

	if _, err := s.sessions.Consume(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return apperror.Internal(fmt.Errorf("auth service: %w", err))
	}
	return nil
}

// ListSessions возвращает список активных сессий пользователя.
func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("auth service: %w", err))
	}
	return sessions, nil
}

// DeleteSession удаляет сессию пользователя по идентификатору.
func (s *AuthService) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	return toAppError(s.sessions.DeleteForUser(ctx, sessionID, userID))
}

// PurgeExpiredSessions удаляет истёкшие сессии.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("auth service: %w", err)
	}
	return n, nil
}

func (s *AuthService) startSession(ctx context.Context, user *models.User, meta map[string]string) (*TokenPair, error) {
	sessionID := uuid.New()
	pair, refreshExp, err := s.tokenManager.GeneratePair(user, sessionID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("auth service: %w", err))
	}

	session := &models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		ExpiresAt: refreshExp,
	}
	if ua, ok := meta["user_agent"]; ok && ua != "" {
		session.UserAgent = &ua
	}
	if ip, ok := meta["ip"]; ok && ip != "" {
		session.IPAddress = &ip
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperror.Internal(fmt.Errorf("auth service: %w", err))
	}
	return pair, nil
}
