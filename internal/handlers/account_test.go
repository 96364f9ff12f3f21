package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/apperr"
	"chat-core/internal/media"
	"chat-core/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	f := setupRouter()
	f.accounts.On("Register", mock.Anything, "alice", "hunter22").
		Return(models.AuthResult{Token: "tok", User: models.User{ID: 1, Username: "alice"}}, nil).Once()
	f.accounts.On("Login", mock.Anything, "alice", "nope").
		Return(nil, apperr.Unauthorized("invalid username or password")).Once()

	rec := f.do(http.MethodPost, "/auth/register", `{"username":"alice","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token":"tok"`)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = f.do(http.MethodPost, "/auth/login", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/auth/login", `{"username":"alice"}`).Code)
	f.accounts.AssertExpectations(t)
}

func TestUserRoutes(t *testing.T) {
	f := setupRouter()
	f.accounts.On("Me", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	f.accounts.On("Profile", mock.Anything, 2).Return(models.Profile{User: models.User{ID: 2}, Online: true}, nil).Once()
	mediaID := "01ARZ3NDEKTSV4RRFFQ69G5FAV.png"
	url := "/uploads/" + mediaID
	f.accounts.On("UpdateAvatar", mock.Anything, 1, &url, &mediaID).Return(models.User{ID: 1, AvatarURL: &url}, nil).Once()

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/users/me", "").Code)

	rec := f.do(http.MethodGet, "/users/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"online":true`)

	body := fmt.Sprintf(`{"avatarUrl":%q,"avatarMediaId":%q}`, url, mediaID)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPatch, "/users/me", body).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/users/me", `{"avatarMediaId":"x.exe"}`).Code)
	f.accounts.AssertExpectations(t)
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "upload.bin")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadMedia(t *testing.T) {
	f := setupRouter()
	png := []byte("\x89PNG\r\n\x1a\n0000")
	f.media.On("Upload", mock.Anything, png).Return(media.Media{URL: "/uploads/a.png", MediaID: "a.png"}, nil).Once()
	f.media.On("Upload", mock.Anything, []byte("plain text")).Return(nil, fmt.Errorf("%w: text/plain", media.ErrUnsupportedType)).Once()

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, "file", png))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"url":"/uploads/a.png","mediaId":"a.png"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, "file", []byte("plain text")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, "file", bytes.Repeat([]byte{1}, 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, "other", png))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.media.AssertExpectations(t)
}
