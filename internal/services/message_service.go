package services

import (
	"context"
	"strings"

	"chat-core/internal/apperr"
	"chat-core/internal/guard"
	"chat-core/internal/media"
	"chat-core/internal/models"
	"chat-core/internal/realtime"
	"chat-core/internal/repositories"
)

const errEmptyMessage = "message must have text or image"

// MessageService owns the message lifecycle: create, edit, delete, read and history.
type MessageService struct {
	messages repositories.MessageRepository
	guard    Authorizer
	bus      Broadcaster
	media    media.Store
}

func NewMessageService(messages repositories.MessageRepository, authz Authorizer, bus Broadcaster, store media.Store) *MessageService {
	return &MessageService{messages: messages, guard: authz, bus: bus, media: store}
}

// Create stores a TEXT message from a member and fans it out to the chat and its members.
func (s *MessageService) Create(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if _, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionSendMessage, ChatID: in.ChatID, ActorID: in.FromID}); err != nil {
		return models.Message{}, err
	}

	text := strings.TrimSpace(in.Text)
	imageURL := blankToNil(in.ImageURL)
	if text == "" && imageURL == nil {
		return models.Message{}, apperr.Validation(errEmptyMessage)
	}
	imagePublicID := blankToNil(in.ImagePublicID)
	if imageURL == nil {
		imagePublicID = nil
	}

	fromID := in.FromID
	msg, err := s.messages.CreateMessage(ctx, models.Message{
		ChatID:        in.ChatID,
		FromID:        &fromID,
		Text:          text,
		ImageURL:      imageURL,
		ImagePublicID: imagePublicID,
		Type:          models.MessageTypeText,
	})
	if err != nil {
		return models.Message{}, mapRepoErr("create message", err)
	}

	emit(realtime.EventReceiveMessage, s.bus.EmitToChatAndUsers(ctx, msg.ChatID, fromID, realtime.EventReceiveMessage, msg))
	return msg, nil
}

// Edit rewrites the author's own TEXT message. Omitted fields are kept, null or empty ones
// are cleared. A replaced image is released after the edit commits.
func (s *MessageService) Edit(ctx context.Context, in models.MessageEdit) (models.Message, error) {
	current, err := s.authorOwned(ctx, in.MessageID, in.ChatID, in.FromID, "edit")
	if err != nil {
		return models.Message{}, err
	}

	text := current.Text
	if in.Text.Set {
		text = ""
		if in.Text.Value != nil {
			text = strings.TrimSpace(*in.Text.Value)
		}
	}
	imageURL, imagePublicID := current.ImageURL, current.ImagePublicID
	if in.ImageURL.Set {
		imageURL = blankToNil(in.ImageURL.Value)
		if !sameString(imageURL, current.ImageURL) && !in.ImagePublicID.Set {
			imagePublicID = nil
		}
	}
	if in.ImagePublicID.Set {
		imagePublicID = blankToNil(in.ImagePublicID.Value)
	}
	if imageURL == nil {
		imagePublicID = nil
	}
	if text == "" && imageURL == nil {
		return models.Message{}, apperr.Validation(errEmptyMessage)
	}

	updated, err := s.messages.UpdateMessage(ctx, current.ID, in.FromID, text, imageURL, imagePublicID)
	if err != nil {
		return models.Message{}, mapRepoErr("edit message", err)
	}

	if current.ImagePublicID != nil && !sameString(current.ImagePublicID, updated.ImagePublicID) {
		releaseMedia(ctx, s.media, *current.ImagePublicID)
	}
	emit(realtime.EventReceiveEditedMessage, s.bus.EmitToChatAndUsers(ctx, updated.ChatID, in.FromID, realtime.EventReceiveEditedMessage, updated))
	return updated, nil
}

// Delete removes the author's own TEXT message. The chat channel receives
// {id, chatId, nextLast}; each member's user channel additionally gets its unread count.
func (s *MessageService) Delete(ctx context.Context, messageID int64, chatID, actorID int) (realtime.MessageDeletedPayload, error) {
	current, err := s.authorOwned(ctx, messageID, chatID, actorID, "delete")
	if err != nil {
		return realtime.MessageDeletedPayload{}, err
	}

	deleted, nextLast, err := s.messages.DeleteMessage(ctx, current.ID, actorID)
	if err != nil {
		return realtime.MessageDeletedPayload{}, mapRepoErr("delete message", err)
	}
	if deleted.ImagePublicID != nil {
		releaseMedia(ctx, s.media, *deleted.ImagePublicID)
	}

	payload := realtime.MessageDeletedPayload{ID: deleted.ID, ChatID: deleted.ChatID, NextLast: nextLast}
	emit(realtime.EventMessageDeleted, s.bus.EmitToChatAndMembers(ctx, deleted.ChatID, realtime.EventMessageDeleted, payload,
		func(userID int) (any, error) {
			unread, err := s.messages.UnreadCount(ctx, deleted.ChatID, userID)
			if err != nil {
				return nil, err
			}
			p := payload
			p.UnreadCount = &unread
			return p, nil
		}))
	return payload, nil
}

// MarkRead flags everything the reader has not written as read and returns how many rows changed.
func (s *MessageService) MarkRead(ctx context.Context, chatID, readerID int) (int64, error) {
	if _, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionViewChat, ChatID: chatID, ActorID: readerID}); err != nil {
		return 0, err
	}
	updated, err := s.messages.MarkRead(ctx, chatID, readerID)
	if err != nil {
		return 0, mapRepoErr("mark read", err)
	}
	if updated > 0 {
		emit(realtime.EventMessagesRead, s.bus.EmitToChatAndUsers(ctx, chatID, readerID, realtime.EventMessagesRead,
			realtime.MessagesReadPayload{ChatID: chatID, ReaderID: readerID}))
	}
	return updated, nil
}

// List returns one page of history in ascending id order. NextCursor is the boundary id to
// continue from, or nil once the history is exhausted in that direction.
func (s *MessageService) List(ctx context.Context, chatID, viewerID int, q models.PageQuery) (models.MessagePage, error) {
	direction := q.Direction
	if direction == "" {
		direction = models.DirectionOlder
	}
	if direction != models.DirectionOlder && direction != models.DirectionNewer {
		return models.MessagePage{}, apperr.Validation("direction must be older or newer")
	}
	if q.Cursor != nil && *q.Cursor <= 0 {
		return models.MessagePage{}, apperr.Validation("invalid cursor")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = models.DefaultPageLimit
	}
	if limit > models.MaxPageLimit {
		limit = models.MaxPageLimit
	}

	if _, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionViewChat, ChatID: chatID, ActorID: viewerID}); err != nil {
		return models.MessagePage{}, err
	}

	msgs, err := s.messages.ListMessages(ctx, chatID, q.Cursor, direction, limit+1)
	if err != nil {
		return models.MessagePage{}, mapRepoErr("list messages", err)
	}

	page := models.MessagePage{Messages: msgs}
	if len(msgs) > limit {
		if direction == models.DirectionOlder {
			page.Messages = msgs[1:]
			next := page.Messages[0].ID
			page.NextCursor = &next
		} else {
			page.Messages = msgs[:limit]
			next := page.Messages[limit-1].ID
			page.NextCursor = &next
		}
	}
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}
	return page, nil
}

// Get returns one message of a chat the viewer belongs to.
func (s *MessageService) Get(ctx context.Context, chatID int, messageID int64, viewerID int) (models.Message, error) {
	if _, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionViewChat, ChatID: chatID, ActorID: viewerID}); err != nil {
		return models.Message{}, err
	}
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, mapRepoErr("get message", err)
	}
	if msg.ChatID != chatID {
		return models.Message{}, apperr.NotFound("message not found")
	}
	return msg, nil
}

// authorOwned loads a message and checks that actorID may change it: the message must belong
// to chatID (when given), the actor must still be a member and must have written it.
func (s *MessageService) authorOwned(ctx context.Context, messageID int64, chatID, actorID int, verb string) (models.Message, error) {
	current, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, mapRepoErr("get message", err)
	}
	if chatID != 0 && current.ChatID != chatID {
		return models.Message{}, apperr.NotFound("message not found")
	}
	if _, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionSendMessage, ChatID: current.ChatID, ActorID: actorID}); err != nil {
		return models.Message{}, err
	}
	if current.Type == models.MessageTypeSystem {
		return models.Message{}, apperr.Forbidden("system messages cannot be modified")
	}
	if !current.AuthoredBy(actorID) {
		return models.Message{}, apperr.Forbidden("you can only " + verb + " your own messages")
	}
	return current, nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
