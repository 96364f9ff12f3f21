package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/models"
	"chat-core/internal/realtime"
)

// MessageService is the message surface used by the REST API.
type MessageService interface {
	Create(ctx context.Context, in models.NewMessage) (models.Message, error)
	Edit(ctx context.Context, in models.MessageEdit) (models.Message, error)
	Delete(ctx context.Context, messageID int64, chatID, actorID int) (realtime.MessageDeletedPayload, error)
	MarkRead(ctx context.Context, chatID, readerID int) (int64, error)
	List(ctx context.Context, chatID, viewerID int, q models.PageQuery) (models.MessagePage, error)
	Get(ctx context.Context, chatID int, messageID int64, viewerID int) (models.Message, error)
}

type MessageHandler struct {
	messages MessageService
}

func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// ListMessages returns one page of history. Query: limit, cursor, direction (older|newer).
func (h *MessageHandler) ListMessages(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	q := models.PageQuery{Direction: c.Query("direction")}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid limit")
			return
		}
		q.Limit = limit
	}
	if raw := c.Query("cursor"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid cursor")
			return
		}
		q.Cursor = &cursor
	}

	page, err := h.messages.List(c.Request.Context(), chatID, c.GetInt("userID"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *MessageHandler) GetMessage(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	msg, err := h.messages.Get(c.Request.Context(), chatID, messageID, c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type createMessageRequest struct {
	Text          string  `json:"text"`
	ImageURL      *string `json:"imageUrl"`
	ImagePublicID *string `json:"imagePublicId"`
}

func (h *MessageHandler) CreateMessage(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	msg, err := h.messages.Create(c.Request.Context(), models.NewMessage{
		ChatID:        chatID,
		FromID:        c.GetInt("userID"),
		Text:          req.Text,
		ImageURL:      req.ImageURL,
		ImagePublicID: req.ImagePublicID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// editMessageRequest keeps omitted fields apart from explicit nulls.
type editMessageRequest struct {
	Text          models.Optional[string] `json:"text"`
	ImageURL      models.Optional[string] `json:"imageUrl"`
	ImagePublicID models.Optional[string] `json:"imagePublicId"`
}

func (h *MessageHandler) EditMessage(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	msg, err := h.messages.Edit(c.Request.Context(), models.MessageEdit{
		MessageID:     messageID,
		ChatID:        chatID,
		FromID:        c.GetInt("userID"),
		Text:          req.Text,
		ImageURL:      req.ImageURL,
		ImagePublicID: req.ImagePublicID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	if _, err := h.messages.Delete(c.Request.Context(), messageID, chatID, c.GetInt("userID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkRead marks every unread message from others as read and reports how many changed.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	chatID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	updated, err := h.messages.MarkRead(c.Request.Context(), chatID, c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
