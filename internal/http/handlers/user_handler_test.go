package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/pkg/apperror"
	"github.com/sratov/TimeBankingBot/internal/storage"
)

const testMediaURL = "https://bank.example/media"

func avatarRequest(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func strPtr(s string) *string { return &s }

func TestUserHandler_UploadAvatar_ReplacesLocalFile(t *testing.T) {
	userID := uuid.New()
	users := &userMock{}
	avatars := &avatarMock{}
	h := NewUserHandler(users, &listingMock{}, avatars, testMediaURL+"/", quietLogger())

	r := newTestRouter(userID)
	r.POST("/users/me/avatar", h.UploadAvatar)

	oldRel := userID.String() + "/avatar_1.png"
	newRel := userID.String() + "/avatar_2.png"
	users.On("Me", mock.Anything, userID).Return(&models.User{ID: userID, AvatarURL: strPtr(testMediaURL + "/" + oldRel)}, nil)
	avatars.On("Save", mock.Anything, userID, "me.png", mock.Anything).Return(newRel, nil)
	users.On("SetAvatar", mock.Anything, userID, testMediaURL+"/"+newRel).Return(&models.User{ID: userID, AvatarURL: strPtr(testMediaURL + "/" + newRel)}, nil)
	avatars.On("Delete", mock.Anything, oldRel).Return(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, avatarRequest(t, "me.png", []byte("\x89PNG\r\n\x1a\n")))

	assert.Equal(t, http.StatusOK, w.Code)
	users.AssertExpectations(t)
	avatars.AssertExpectations(t)
}

func TestUserHandler_UploadAvatar_KeepsTelegramPhoto(t *testing.T) {
	userID := uuid.New()
	users := &userMock{}
	avatars := &avatarMock{}
	h := NewUserHandler(users, &listingMock{}, avatars, testMediaURL, quietLogger())

	r := newTestRouter(userID)
	r.POST("/users/me/avatar", h.UploadAvatar)

	newRel := userID.String() + "/avatar_2.png"
	users.On("Me", mock.Anything, userID).Return(&models.User{ID: userID, AvatarURL: strPtr("https://t.me/i/userpic/320/alice.jpg")}, nil)
	avatars.On("Save", mock.Anything, userID, "me.png", mock.Anything).Return(newRel, nil)
	users.On("SetAvatar", mock.Anything, userID, testMediaURL+"/"+newRel).Return(&models.User{ID: userID}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, avatarRequest(t, "me.png", []byte("\x89PNG\r\n\x1a\n")))

	assert.Equal(t, http.StatusOK, w.Code)
	avatars.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUserHandler_UploadAvatar_RejectedFile(t *testing.T) {
	userID := uuid.New()
	users := &userMock{}
	avatars := &avatarMock{}
	h := NewUserHandler(users, &listingMock{}, avatars, testMediaURL, quietLogger())

	r := newTestRouter(userID)
	r.POST("/users/me/avatar", h.UploadAvatar)

	users.On("Me", mock.Anything, userID).Return(&models.User{ID: userID}, nil)
	avatars.On("Save", mock.Anything, userID, "script.png", mock.Anything).Return("", storage.ErrUnsupportedType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, avatarRequest(t, "script.png", []byte("#!/bin/sh")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, code := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", code)
	users.AssertNotCalled(t, "SetAvatar", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_UploadAvatar_MissingFile(t *testing.T) {
	h := NewUserHandler(&userMock{}, &listingMock{}, &avatarMock{}, testMediaURL, quietLogger())
	r := newTestRouter(uuid.New())
	r.POST("/users/me/avatar", h.UploadAvatar)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/me/avatar", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_Listings_ForbiddenForStrangers(t *testing.T) {
	viewerID := uuid.New()
	targetID := uuid.New()
	listings := &listingMock{}
	h := NewUserHandler(&userMock{}, listings, &avatarMock{}, testMediaURL, quietLogger())

	r := newTestRouter(viewerID)
	r.GET("/users/:id/listings", h.Listings)

	listings.On("ListForUser", mock.Anything, viewerID, targetID, 20, 0).Return(nil, apperror.ErrForbidden)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+targetID.String()+"/listings", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	listings.AssertExpectations(t)
}

func TestUserHandler_Search(t *testing.T) {
	viewerID := uuid.New()
	users := &userMock{}
	h := NewUserHandler(users, &listingMock{}, &avatarMock{}, testMediaURL, quietLogger())

	r := newTestRouter(viewerID)
	r.GET("/users/search", h.Search)

	users.On("Search", mock.Anything, viewerID, "ali").Return([]models.PublicUser{{ID: uuid.New(), DisplayName: "alice"}}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/search?q=ali", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
	assert.NotContains(t, w.Body.String(), "balance")
}
