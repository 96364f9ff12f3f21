package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
	"chat-core/internal/realtime"
)

func TestListMessagesQuery(t *testing.T) {
	f := setupRouter()
	cursor := int64(40)
	next := int64(21)
	f.messages.On("List", mock.Anything, 5, 1, models.PageQuery{Limit: 20, Cursor: &cursor, Direction: "older"}).
		Return(models.MessagePage{Messages: []models.Message{{ID: 21}}, NextCursor: &next}, nil).Once()
	f.messages.On("List", mock.Anything, 5, 1, models.PageQuery{}).
		Return(models.MessagePage{Messages: []models.Message{}}, nil).Once()

	rec := f.do(http.MethodGet, "/chats/5/messages?limit=20&cursor=40&direction=older", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, float64(21), page["nextCursor"])

	rec = f.do(http.MethodGet, "/chats/5/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[],"nextCursor":null}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/chats/5/messages?cursor=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/chats/5/messages?limit=x", "").Code)
	f.messages.AssertExpectations(t)
}

func TestCreateMessage(t *testing.T) {
	f := setupRouter()
	url := "/uploads/a.png"
	f.messages.On("Create", mock.Anything, models.NewMessage{ChatID: 5, FromID: 1, ImageURL: &url}).
		Return(models.Message{ID: 1, ChatID: 5, ImageURL: &url}, nil).Once()
	f.messages.On("Create", mock.Anything, models.NewMessage{ChatID: 5, FromID: 1, Text: "   "}).
		Return(nil, apperr.Validation("message must have text or image")).Once()

	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/chats/5/messages", `{"imageUrl":"/uploads/a.png"}`).Code)

	rec := f.do(http.MethodPost, "/chats/5/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "message must have text or image", errorBody(t, rec))
	f.messages.AssertExpectations(t)
}

func TestEditMessageOptionalFields(t *testing.T) {
	f := setupRouter()
	f.messages.On("Edit", mock.Anything, models.MessageEdit{
		MessageID: 9,
		ChatID:    5,
		FromID:    1,
		Text:      models.Some("fixed"),
		ImageURL:  models.Null[string](),
	}).Return(models.Message{ID: 9, Edited: true}, nil).Once()
	f.messages.On("Edit", mock.Anything, mock.MatchedBy(func(in models.MessageEdit) bool { return in.MessageID == 10 })).
		Return(nil, apperr.Forbidden("you can only edit your own messages")).Once()

	rec := f.do(http.MethodPatch, "/chats/5/messages/9", `{"text":"fixed","imageUrl":null}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPatch, "/chats/5/messages/10", `{"text":"x"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/chats/5/messages/0", `{"text":"x"}`).Code)
	f.messages.AssertExpectations(t)
}

func TestDeleteAndReadMessages(t *testing.T) {
	f := setupRouter()
	f.messages.On("Delete", mock.Anything, int64(9), 5, 1).Return(realtime.MessageDeletedPayload{ID: 9, ChatID: 5}, nil).Once()
	f.messages.On("Get", mock.Anything, 5, int64(9), 1).Return(nil, apperr.NotFound("message not found")).Once()
	f.messages.On("MarkRead", mock.Anything, 5, 1).Return(int64(3), nil).Once()

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/chats/5/messages/9", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/chats/5/messages/9", "").Code)

	rec := f.do(http.MethodPatch, "/chats/5/read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":3}`, rec.Body.String())
	f.messages.AssertExpectations(t)
}
