package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sratov/TimeBankingBot/internal/http/handlers/common"
	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/storage"
)

// UserUseCase - операции каталога пользователей.
type UserUseCase interface {
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Profile(ctx context.Context, viewerID, targetID uuid.UUID) (*models.PublicUser, error)
	Search(ctx context.Context, viewerID uuid.UUID, query string) ([]models.PublicUser, error)
	Partners(ctx context.Context, userID uuid.UUID) ([]models.PublicUser, error)
	SetAvatar(ctx context.Context, userID uuid.UUID, url string) (*models.User, error)
}

// UserListings возвращает объявления конкретного пользователя.
type UserListings interface {
	ListForUser(ctx context.Context, viewerID, targetID uuid.UUID, limit, offset int) ([]models.Listing, error)
}

// AvatarStore сохраняет загруженные аватары.
type AvatarStore interface {
	Save(ctx context.Context, userID uuid.UUID, originalName string, r io.Reader) (string, error)
	Delete(ctx context.Context, relativePath string) error
	MaxUploadBytes() int64
}

// UserHandler обслуживает /users.
type UserHandler struct {
	users        UserUseCase
	listings     UserListings
	avatars      AvatarStore
	mediaBaseURL string
	log          *logrus.Logger
}

// NewUserHandler создаёт хэндлер.
func NewUserHandler(users UserUseCase, listings UserListings, avatars AvatarStore, mediaBaseURL string, log *logrus.Logger) *UserHandler {
	return &UserHandler{
		users:        users,
		listings:     listings,
		avatars:      avatars,
		mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
		log:          log,
	}
}

// Me обрабатывает GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	user, err := h.users.Me(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Search обрабатывает GET /users/search?q=.
func (h *UserHandler) Search(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	users, err := h.users.Search(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// Partners обрабатывает GET /users/partners.
func (h *UserHandler) Partners(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	users, err := h.users.Partners(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// Profile обрабатывает GET /users/:id.
func (h *UserHandler) Profile(c *gin.Context) {
	viewerID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	targetID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	profile, err := h.users.Profile(c.Request.Context(), viewerID, targetID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Listings обрабатывает GET /users/:id/listings.
func (h *UserHandler) Listings(c *gin.Context) {
	viewerID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	targetID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	items, err := h.listings.ListForUser(c.Request.Context(), viewerID, targetID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// UploadAvatar обрабатывает POST /users/me/avatar (multipart, поле file).
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	// Запас на заголовки multipart сверх лимита файла.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.avatars.MaxUploadBytes()+64*1024)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.Fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "размер файла превышает лимит"))
			return
		}
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeValidation, "файл обязателен"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		common.Fail(c, apperror.Internal(err))
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	current, err := h.users.Me(ctx, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	rel, err := h.avatars.Save(ctx, userID, fileHeader.Filename, file)
	if err != nil {
		common.Fail(c, storageError(err))
		return
	}

	user, err := h.users.SetAvatar(ctx, userID, h.mediaBaseURL+"/"+rel)
	if err != nil {
		h.removeFile(ctx, rel)
		common.Fail(c, err)
		return
	}

	if old, ok := h.localPath(current.AvatarURL); ok {
		h.removeFile(ctx, old)
	}

	c.JSON(http.StatusOK, user)
}

// localPath возвращает путь в хранилище, если аватар был загружен к нам, а не взят из Telegram.
func (h *UserHandler) localPath(url *string) (string, bool) {
	if url == nil {
		return "", false
	}
	rel, ok := strings.CutPrefix(*url, h.mediaBaseURL+"/")
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}

func (h *UserHandler) removeFile(ctx context.Context, rel string) {
	if err := h.avatars.Delete(ctx, rel); err != nil {
		h.log.WithError(err).WithField("path", rel).Warn("user handler: не удалось удалить файл аватара")
	}
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrEmptyFile),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrExtensionMismatch):
		return apperror.Wrap(err, apperror.ErrCodeValidation, strings.TrimPrefix(err.Error(), "storage: "))
	default:
		return apperror.Internal(err)
	}
}
