package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/service"
)

type stubParser struct {
	userID uuid.UUID
	err    error
	seen   string
}

func (p *stubParser) ParseAccess(raw string) (uuid.UUID, error) {
	p.seen = raw
	return p.userID, p.err
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error, body.Code
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func authRouter(p AccessParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(p), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ContextUserIDKey).(uuid.UUID).String())
	})
	return r
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	p := &stubParser{userID: uuid.New()}
	r := authRouter(p)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, p.userID.String(), w.Body.String())
	assert.Equal(t, "abc.def", p.seen)
}

func TestAuthMiddleware_Cookie(t *testing.T) {
	p := &stubParser{userID: uuid.New()}
	r := authRouter(p)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "from-cookie"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-cookie", p.seen)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		parser  *stubParser
		wantMsg string
	}{
		{"no credentials", "", &stubParser{}, apperror.ErrUnauthenticated.Message},
		{"wrong scheme", "Basic dXNlcjpwYXNz", &stubParser{}, apperror.ErrUnauthenticated.Message},
		{"expired", "Bearer old", &stubParser{err: service.ErrTokenExpired}, apperror.ErrSessionExpired.Message},
		{"malformed", "Bearer junk", &stubParser{err: service.ErrTokenMalformed}, "токен невалиден"},
		{"nil subject", "Bearer odd", &stubParser{}, "токен невалиден"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := authRouter(tt.parser)
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			msg, code := errorBody(t, w)
			assert.Equal(t, "UNAUTHENTICATED", code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
		wantLogged bool
	}{
		{"app error", apperror.ErrListingNotFound, http.StatusNotFound, "NOT_FOUND", apperror.ErrListingNotFound.Message, false},
		{"wrapped app error", errors.Join(errors.New("ctx"), apperror.ErrInsufficientFunds), http.StatusBadRequest, "INSUFFICIENT_FUNDS", apperror.ErrInsufficientFunds.Message, false},
		{"unknown error", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "INTERNAL_ERROR", "внутренняя ошибка сервера", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			log, hook := test.NewNullLogger()
			r := gin.New()
			r.Use(ErrorHandler(log))
			r.GET("/x", func(c *gin.Context) { _ = c.Error(tt.err) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			msg, code := errorBody(t, w)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
			assert.NotContains(t, w.Body.String(), "password")

			var errorEntries int
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.ErrorLevel {
					errorEntries++
				}
			}
			assert.Equal(t, tt.wantLogged, errorEntries > 0)
		})
	}
}

func TestErrorHandler_LeavesWrittenResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(quietLogger()))
	r.GET("/x", func(c *gin.Context) {
		c.JSON(http.StatusTeapot, gin.H{"ok": true})
		_ = c.Error(errors.New("late"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(Recovery(log))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	_, code := errorBody(t, w)
	assert.Equal(t, "INTERNAL_ERROR", code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Panic recovered", hook.LastEntry().Message)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/listings/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/listings/abc", nil))

	requestID := w.Header().Get("X-Request-ID")
	_, err := uuid.Parse(requestID)
	assert.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "/listings/:id", entry.Data["route"])
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, requestID, entry.Data["request_id"])
}

func TestRequestLogger_KeepsValidIncomingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(quietLogger()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(2, time.Minute))
	r.POST("/auth/telegram", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/telegram", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestUUIDValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/listings/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/listings/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/listings/42", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, code := errorBody(t, w)
	assert.Equal(t, "VALIDATION_ERROR", code)
}
