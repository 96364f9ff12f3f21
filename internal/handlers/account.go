package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/media"
	"chat-core/internal/models"
)

// AccountService is the account surface used by the REST API.
type AccountService interface {
	Register(ctx context.Context, username, password string) (models.AuthResult, error)
	Login(ctx context.Context, username, password string) (models.AuthResult, error)
	Me(ctx context.Context, userID int) (models.User, error)
	Profile(ctx context.Context, userID int) (models.Profile, error)
	UpdateAvatar(ctx context.Context, userID int, avatarURL, avatarMediaID *string) (models.User, error)
}

// AccountHandler serves sign-up, sign-in, profiles and media uploads.
type AccountHandler struct {
	accounts AccountService
	media    media.Store
	maxBytes int64
}

func NewAccountHandler(accounts AccountService, store media.Store, maxBytes int64) *AccountHandler {
	return &AccountHandler{accounts: accounts, media: store, maxBytes: maxBytes}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	res, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AccountHandler) Me(c *gin.Context) {
	user, err := h.accounts.Me(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) GetUser(c *gin.Context) {
	userID, ok := idParam(c, "user_id")
	if !ok {
		return
	}
	profile, err := h.accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type avatarRequest struct {
	AvatarURL     *string `json:"avatarUrl"`
	AvatarMediaID *string `json:"avatarMediaId"`
}

// UpdateMe sets the caller's avatar; an empty or null avatarUrl clears it.
func (h *AccountHandler) UpdateMe(c *gin.Context) {
	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	if req.AvatarMediaID != nil && *req.AvatarMediaID != "" {
		if err := media.ValidateID(*req.AvatarMediaID); err != nil {
			badRequest(c, "invalid avatarMediaId")
			return
		}
	}
	user, err := h.accounts.UpdateAvatar(c.Request.Context(), c.GetInt("userID"), req.AvatarURL, req.AvatarMediaID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UploadMedia stores the multipart "file" field and returns its url and media id.
func (h *AccountHandler) UploadMedia(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": media.ErrTooLarge.Error()})
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "file is unreadable")
		return
	}
	defer file.Close()

	var reader io.Reader = file
	if h.maxBytes > 0 {
		reader = io.LimitReader(file, h.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		badRequest(c, "file is unreadable")
		return
	}

	out, err := h.media.Upload(c.Request.Context(), data)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": media.ErrTooLarge.Error()})
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmpty):
		badRequest(c, err.Error())
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(http.StatusCreated, out)
	}
}
