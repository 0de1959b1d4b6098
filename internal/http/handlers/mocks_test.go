package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/sratov/TimeBankingBot/internal/http/middleware"
	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/service"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newTestRouter собирает gin с ErrorHandler и, если userID задан, с авторизованным пользователем.
func newTestRouter(userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(quietLogger()))
	if userID != uuid.Nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserIDKey, userID)
			c.Next()
		})
	}
	return r
}

type listingMock struct{ mock.Mock }

func listingResult(args mock.Arguments) (*models.Listing, error) {
	l, _ := args.Get(0).(*models.Listing)
	return l, args.Error(1)
}

func (m *listingMock) Create(ctx context.Context, creatorID uuid.UUID, in service.CreateListingInput) (*models.Listing, error) {
	return listingResult(m.Called(ctx, creatorID, in))
}

func (m *listingMock) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, id))
}

func (m *listingMock) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	args := m.Called(ctx, filter)
	items, _ := args.Get(0).([]models.Listing)
	return items, args.Error(1)
}

func (m *listingMock) ListForUser(ctx context.Context, viewerID, targetID uuid.UUID, limit, offset int) ([]models.Listing, error) {
	args := m.Called(ctx, viewerID, targetID, limit, offset)
	items, _ := args.Get(0).([]models.Listing)
	return items, args.Error(1)
}

func (m *listingMock) Apply(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, listingID, actorID))
}

func (m *listingMock) Reject(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, listingID, actorID))
}

func (m *listingMock) Accept(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, listingID, actorID))
}

func (m *listingMock) Complete(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, listingID, actorID))
}

func (m *listingMock) Confirm(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, listingID, actorID))
}

func (m *listingMock) Cancel(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error) {
	return listingResult(m.Called(ctx, listingID, actorID))
}

type authMock struct{ mock.Mock }

func authResult(args mock.Arguments) (*service.AuthResult, error) {
	r, _ := args.Get(0).(*service.AuthResult)
	return r, args.Error(1)
}

func (m *authMock) TelegramLogin(ctx context.Context, initData string, meta map[string]string) (*service.AuthResult, error) {
	return authResult(m.Called(ctx, initData, meta))
}

func (m *authMock) DevLogin(ctx context.Context, telegramID int64, displayName string, meta map[string]string) (*service.AuthResult, error) {
	return authResult(m.Called(ctx, telegramID, displayName, meta))
}

func (m *authMock) Refresh(ctx context.Context, refreshToken string, meta map[string]string) (*service.AuthResult, error) {
	return authResult(m.Called(ctx, refreshToken, meta))
}

func (m *authMock) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *authMock) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.Session)
	return items, args.Error(1)
}

func (m *authMock) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	return m.Called(ctx, sessionID, userID).Error(0)
}

type userMock struct{ mock.Mock }

func (m *userMock) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *userMock) Profile(ctx context.Context, viewerID, targetID uuid.UUID) (*models.PublicUser, error) {
	args := m.Called(ctx, viewerID, targetID)
	u, _ := args.Get(0).(*models.PublicUser)
	return u, args.Error(1)
}

func (m *userMock) Search(ctx context.Context, viewerID uuid.UUID, query string) ([]models.PublicUser, error) {
	args := m.Called(ctx, viewerID, query)
	items, _ := args.Get(0).([]models.PublicUser)
	return items, args.Error(1)
}

func (m *userMock) Partners(ctx context.Context, userID uuid.UUID) ([]models.PublicUser, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.PublicUser)
	return items, args.Error(1)
}

func (m *userMock) SetAvatar(ctx context.Context, userID uuid.UUID, url string) (*models.User, error) {
	args := m.Called(ctx, userID, url)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type avatarMock struct{ mock.Mock }

func (m *avatarMock) Save(ctx context.Context, userID uuid.UUID, originalName string, r io.Reader) (string, error) {
	args := m.Called(ctx, userID, originalName, r)
	return args.String(0), args.Error(1)
}

func (m *avatarMock) Delete(ctx context.Context, relativePath string) error {
	return m.Called(ctx, relativePath).Error(0)
}

func (m *avatarMock) MaxUploadBytes() int64 { return 1024 * 1024 }

type friendMock struct{ mock.Mock }

func (m *friendMock) Request(ctx context.Context, fromID, toID uuid.UUID) (*models.Friendship, error) {
	args := m.Called(ctx, fromID, toID)
	f, _ := args.Get(0).(*models.Friendship)
	return f, args.Error(1)
}

func (m *friendMock) Accept(ctx context.Context, requestID, actorID uuid.UUID) (*models.Friendship, error) {
	args := m.Called(ctx, requestID, actorID)
	f, _ := args.Get(0).(*models.Friendship)
	return f, args.Error(1)
}

func (m *friendMock) Reject(ctx context.Context, requestID, actorID uuid.UUID) error {
	return m.Called(ctx, requestID, actorID).Error(0)
}

func (m *friendMock) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.PublicUser, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.PublicUser)
	return items, args.Error(1)
}

func (m *friendMock) ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.FriendRequest)
	return items, args.Error(1)
}

type ledgerMock struct{ mock.Mock }

func (m *ledgerMock) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	items, _ := args.Get(0).([]models.Transaction)
	return items, args.Error(1)
}
