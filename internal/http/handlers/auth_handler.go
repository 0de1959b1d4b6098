package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/http/handlers/common"
	"github.com/sratov/TimeBankingBot/internal/http/middleware"
	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/service"
)

// RefreshCookie - имя cookie с refresh токеном.
const RefreshCookie = "refresh_token"

// AuthUseCase - операции входа и управления сессиями.
type AuthUseCase interface {
	TelegramLogin(ctx context.Context, initData string, meta map[string]string) (*service.AuthResult, error)
	DevLogin(ctx context.Context, telegramID int64, displayName string, meta map[string]string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, meta map[string]string) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error
}

// CookieOptions задаёт параметры cookie сессии.
type CookieOptions struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthHandler предоставляет HTTP слой для входа через Telegram и ротации сессий.
type AuthHandler struct {
	auth    AuthUseCase
	cookies CookieOptions
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth AuthUseCase, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies}
}

// TelegramLogin обрабатывает POST /auth/telegram.
func (h *AuthHandler) TelegramLogin(c *gin.Context) {
	var req struct {
		InitData string `json:"init_data"`
	}
	// Тело необязательно: init data может прийти в query.
	_ = c.ShouldBindJSON(&req)
	if req.InitData == "" {
		req.InitData = c.Query("init_data")
	}
	if req.InitData == "" {
		common.Fail(c, apperror.ErrMalformedInitData)
		return
	}

	result, err := h.auth.TelegramLogin(c.Request.Context(), req.InitData, requestMeta(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	h.respondAuth(c, result)
}

// DevLogin обрабатывает POST /auth/dev. Маршрут существует только в режиме разработки.
func (h *AuthHandler) DevLogin(c *gin.Context) {
	var req struct {
		TelegramID  int64  `json:"telegram_id" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.auth.DevLogin(c.Request.Context(), req.TelegramID, req.DisplayName, requestMeta(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	h.respondAuth(c, result)
}

// Refresh обрабатывает POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	result, err := h.auth.Refresh(c.Request.Context(), refreshToken(c), requestMeta(c))
	if err != nil {
		h.clearCookies(c)
		common.Fail(c, err)
		return
	}

	h.setCookies(c, result.TokenPair)
	c.JSON(http.StatusOK, gin.H{"tokens": result.TokenPair})
}

// Logout обрабатывает POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), refreshToken(c)); err != nil {
		common.Fail(c, err)
		return
	}

	h.clearCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "вы вышли из аккаунта"})
}

// ListSessions обрабатывает GET /auth/sessions - список активных сессий.
func (h *AuthHandler) ListSessions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	sessions, err := h.auth.ListSessions(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// DeleteSession обрабатывает DELETE /auth/sessions/:id - удаление конкретной сессии.
func (h *AuthHandler) DeleteSession(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	sessionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.auth.DeleteSession(c.Request.Context(), sessionID, userID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "сессия успешно удалена"})
}

func (h *AuthHandler) respondAuth(c *gin.Context, result *service.AuthResult) {
	h.setCookies(c, result.TokenPair)

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"user":    result.User,
		"created": result.Created,
		"tokens":  result.TokenPair,
	})
}

func (h *AuthHandler) setCookies(c *gin.Context, pair *service.TokenPair) {
	if pair == nil {
		return
	}
	h.sameSite(c)
	c.SetCookie(middleware.AccessCookie, pair.AccessToken, int(h.cookies.AccessTTL.Seconds()), "/", "", h.cookies.Secure, true)
	c.SetCookie(RefreshCookie, pair.RefreshToken, int(h.cookies.RefreshTTL.Seconds()), "/api/auth", "", h.cookies.Secure, true)
}

func (h *AuthHandler) clearCookies(c *gin.Context) {
	h.sameSite(c)
	c.SetCookie(middleware.AccessCookie, "", -1, "/", "", h.cookies.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/api/auth", "", h.cookies.Secure, true)
}

// Mini App открывается во встроенном браузере Telegram на чужом домене,
// поэтому secure cookie отправляются с SameSite=None.
func (h *AuthHandler) sameSite(c *gin.Context) {
	if h.cookies.Secure {
		c.SetSameSite(http.SameSiteNoneMode)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
}

func refreshToken(c *gin.Context) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := c.Cookie(RefreshCookie); err == nil {
		return cookie
	}
	return ""
}

func requestMeta(c *gin.Context) map[string]string {
	return map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}
}
