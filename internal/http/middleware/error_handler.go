package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Непредвиденные ошибки логируются, клиент получает общее сообщение.
func ErrorHandler(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := apperror.From(err)
		if !ok {
			appErr = apperror.Internal(err)
		}

		entry := log.WithFields(logrus.Fields{
			"error":      err.Error(),
			"code":       appErr.Code,
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"request_id": c.GetString(ContextRequestIDKey),
		})
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			entry.Error("Request error")
		} else {
			entry.Debug("Request rejected")
		}

		c.JSON(appErr.HTTPStatus, gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
	}
}

// Recovery перехватывает panic в обработчиках и отвечает 500.
func Recovery(log *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.WithFields(logrus.Fields{
			"panic":      recovered,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(ContextRequestIDKey),
		}).Error("Panic recovered")
		AbortWithError(c, apperror.Internal(nil))
	})
}
