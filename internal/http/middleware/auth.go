package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey    = "userID"
	ContextRequestIDKey = "requestID"
)

// AccessCookie - имя cookie с access токеном.
const AccessCookie = "access_token"

// AccessParser проверяет access токен. *service.TokenManager реализует его.
type AccessParser interface {
	ParseAccess(raw string) (uuid.UUID, error)
}

// AuthMiddleware проверяет JWT access токен из заголовка Authorization или cookie.
func AuthMiddleware(tokens AccessParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			AbortWithError(c, apperror.ErrUnauthenticated)
			return
		}

		userID, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			if errors.Is(err, service.ErrTokenExpired) {
				AbortWithError(c, apperror.ErrSessionExpired)
				return
			}
			AbortWithError(c, apperror.New(apperror.ErrCodeUnauthenticated, "токен невалиден"))
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := c.Cookie(AccessCookie); err == nil {
		return cookie
	}
	return ""
}

// AbortWithError прерывает запрос и отдаёт ошибку в общем формате.
func AbortWithError(c *gin.Context, err *apperror.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, gin.H{
		"error": err.Message,
		"code":  err.Code,
	})
}
