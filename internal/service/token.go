package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/models"
)

// TokenKind различает access и refresh токены.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

var (
	ErrTokenExpired   = errors.New("token: срок действия истёк")
	ErrTokenMalformed = errors.New("token: некорректный токен")
)

// Claims - содержимое токена. Права в токене не хранятся, только личность.
type Claims struct {
	TelegramID  int64     `json:"tid"`
	DisplayName string    `json:"name"`
	Kind        TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// UserID возвращает внутренний идентификатор пользователя из sub.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenPair хранит пару access/refresh токенов.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// GeneratePair выпускает пару токенов. sessionID становится jti refresh токена.
func (m *TokenManager) GeneratePair(user *models.User, sessionID uuid.UUID) (*TokenPair, time.Time, error) {
	now := m.now()
	accessExp := now.Add(m.accessTTL)
	refreshExp := now.Add(m.refreshTTL)

	accessToken, err := m.sign(user, TokenAccess, uuid.NewString(), now, accessExp)
	if err != nil {
		return nil, time.Time{}, err
	}

	refreshToken, err := m.sign(user, TokenRefresh, sessionID.String(), now, refreshExp)
	if err != nil {
		return nil, time.Time{}, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
		ExpiresAt:    accessExp,
	}, refreshExp, nil
}

// Validate проверяет подпись, срок и вид токена.
func (m *TokenManager) Validate(raw string, kind TokenKind) (*Claims, error) {
	secret := m.accessSecret
	if kind == TokenRefresh {
		secret = m.refreshSecret
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !parsed.Valid || claims.Kind != kind {
		return nil, ErrTokenMalformed
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// ParseAccess извлекает userID из access токена.
func (m *TokenManager) ParseAccess(raw string) (uuid.UUID, error) {
	claims, err := m.Validate(raw, TokenAccess)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID()
}

func (m *TokenManager) sign(user *models.User, kind TokenKind, jti string, issued, exp time.Time) (string, error) {
	claims := Claims{
		TelegramID:  user.TelegramID,
		DisplayName: user.DisplayName,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secret := m.accessSecret
	if kind == TokenRefresh {
		secret = m.refreshSecret
	}
	return token.SignedString(secret)
}
