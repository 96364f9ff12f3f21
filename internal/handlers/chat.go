package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-core/internal/media"
	"chat-core/internal/models"
	"chat-core/internal/telemetry"
)

// ChatService is the chat surface used by the REST API.
type ChatService interface {
	CreateDirect(ctx context.Context, actorID, peerID int) (models.ChatDetail, bool, error)
	CreateGroup(ctx context.Context, actorID int, title string, participantIDs []int) (models.ChatDetail, error)
	List(ctx context.Context, userID int) ([]models.ChatSummary, error)
	Get(ctx context.Context, chatID, viewerID int) (models.ChatDetail, error)
	UpdateGroup(ctx context.Context, chatID, actorID int, patch models.GroupPatch) (models.ChatDetail, error)
	Delete(ctx context.Context, chatID, actorID int) error
	Leave(ctx context.Context, chatID, actorID int) error
	AddParticipant(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error)
	RemoveParticipant(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error)
	PromoteAdmin(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error)
	DemoteAdmin(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error)
}

// ChatHandler serves chat creation, listing and group administration.
type ChatHandler struct {
	chats ChatService
	audit *telemetry.AuditEmitter
}

func NewChatHandler(chats ChatService, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chats: chats, audit: audit}
}

type createChatRequest struct {
	Type           string `json:"type" binding:"required"`
	PeerID         int    `json:"peerId"`
	Title          string `json:"title"`
	ParticipantIDs []int  `json:"participantIds"`
}

// CreateChat creates a DIRECT or GROUP chat. An existing DIRECT chat is returned with 200.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "type is required")
		return
	}
	userID := c.GetInt("userID")

	switch models.ChatType(strings.ToUpper(req.Type)) {
	case models.ChatTypeDirect:
		chat, created, err := h.chats.CreateDirect(c.Request.Context(), userID, req.PeerID)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, chat)
	case models.ChatTypeGroup:
		chat, err := h.chats.CreateGroup(c.Request.Context(), userID, req.Title, req.ParticipantIDs)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, chat)
	default:
		badRequest(c, "type must be DIRECT or GROUP")
	}
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.List(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	chat, err := h.chats.Get(c.Request.Context(), chatID, c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

type updateChatRequest struct {
	Title         *string `json:"title"`
	AvatarURL     *string `json:"avatarUrl"`
	AvatarMediaID *string `json:"avatarMediaId"`
}

// UpdateChat edits a group's title and avatar. An empty avatarUrl removes the avatar.
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	var req updateChatRequest
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

	chat, err := h.chats.UpdateGroup(c.Request.Context(), chatID, c.GetInt("userID"), models.GroupPatch{
		Title:         req.Title,
		AvatarURL:     req.AvatarURL,
		AvatarMediaID: req.AvatarMediaID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.emitAudit(c, telemetry.AuditChatUpdated, chatID, 0)
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	if err := h.chats.Delete(c.Request.Context(), chatID, c.GetInt("userID")); err != nil {
		respondError(c, err)
		return
	}
	h.emitAudit(c, telemetry.AuditChatDeleted, chatID, 0)
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) LeaveChat(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	if err := h.chats.Leave(c.Request.Context(), chatID, c.GetInt("userID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type participantRequest struct {
	UserID int `json:"userId" binding:"required"`
}

func (h *ChatHandler) AddParticipant(c *gin.Context) {
	h.withBodyTarget(c, telemetry.AuditParticipantAdded, h.chats.AddParticipant)
}

func (h *ChatHandler) PromoteAdmin(c *gin.Context) {
	h.withBodyTarget(c, telemetry.AuditAdminPromoted, h.chats.PromoteAdmin)
}

func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	h.withPathTarget(c, telemetry.AuditParticipantRemoved, h.chats.RemoveParticipant)
}

func (h *ChatHandler) DemoteAdmin(c *gin.Context) {
	h.withPathTarget(c, telemetry.AuditAdminDemoted, h.chats.DemoteAdmin)
}

type participantOp func(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error)

func (h *ChatHandler) withBodyTarget(c *gin.Context, action string, op participantOp) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 {
		badRequest(c, "userId is required")
		return
	}
	h.runParticipantOp(c, action, op, chatID, req.UserID)
}

func (h *ChatHandler) withPathTarget(c *gin.Context, action string, op participantOp) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	targetID, ok := idParam(c, "user_id")
	if !ok {
		return
	}
	h.runParticipantOp(c, action, op, chatID, targetID)
}

func (h *ChatHandler) runParticipantOp(c *gin.Context, action string, op participantOp, chatID, targetID int) {
	chat, err := op(c.Request.Context(), chatID, c.GetInt("userID"), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.emitAudit(c, action, chatID, targetID)
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) emitAudit(c *gin.Context, action string, chatID, targetID int) {
	h.audit.Emit(c.Request.Context(), auditRecord(c, action, chatID, targetID))
}
