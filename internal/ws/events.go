package ws

import (
	"context"
	"encoding/json"
	"log"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/realtime"
)

// Inbound event names.
const (
	EventJoin           = "join"
	EventJoinChat       = "join_chat"
	EventLeaveChat      = "leave_chat"
	EventSendMessage    = "send_message"
	EventEditMessage    = "edit_message"
	EventDeleteMessage  = "delete_message"
	EventReadMessages   = "read_messages"
	EventGetOrCreate    = "get_or_create_chat"
	EventGetOnlineUsers = "get_online_users"
)

var knownEvents = map[string]struct{}{
	EventJoin: {}, EventJoinChat: {}, EventLeaveChat: {},
	EventSendMessage: {}, EventEditMessage: {}, EventDeleteMessage: {},
	EventReadMessages: {}, EventGetOrCreate: {}, EventGetOnlineUsers: {},
}

// metricEvent maps client-supplied names outside the inbound set to one label value.
func metricEvent(event string) string {
	if _, ok := knownEvents[event]; ok {
		return event
	}
	return "unknown"
}

type joinPayload struct {
	UserID int `json:"userId"`
}

type chatPayload struct {
	ChatID int `json:"chatId"`
}

type sendPayload struct {
	ChatID        int     `json:"chatId"`
	Text          string  `json:"text"`
	ImageURL      *string `json:"imageUrl"`
	ImagePublicID *string `json:"imagePublicId"`
}

type editPayload struct {
	ID               int64                   `json:"id"`
	ChatID           int                     `json:"chatId"`
	NewText          models.Optional[string] `json:"newText"`
	NewImageURL      models.Optional[string] `json:"newImageUrl"`
	NewImagePublicID models.Optional[string] `json:"newImagePublicId"`
}

type deletePayload struct {
	ID     int64 `json:"id"`
	ChatID int   `json:"chatId"`
}

type peerPayload struct {
	PeerID int `json:"peerId"`
}

// HandleEvent runs one inbound frame for session. Failures are reported to the session as
// an error event and never end it.
func (g *Gateway) HandleEvent(ctx context.Context, session *realtime.Session, raw []byte) {
	var frame realtime.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		observability.IncInbound("unknown", "error")
		g.fail(session, "", apperr.Validation("malformed frame"))
		return
	}
	if err := g.dispatch(ctx, session, frame); err != nil {
		observability.IncInbound(metricEvent(frame.Event), "error")
		g.fail(session, frame.Event, err)
		return
	}
	observability.IncInbound(metricEvent(frame.Event), "ok")
}

func (g *Gateway) dispatch(ctx context.Context, session *realtime.Session, frame realtime.InboundFrame) error {
	userID := session.UserID
	switch frame.Event {
	case EventJoin:
		var p joinPayload
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		// The user channel is joined on connect; this only rejects foreign ids.
		if p.UserID != 0 && p.UserID != userID {
			return apperr.Forbidden("cannot join another user's channel")
		}
		return nil

	case EventJoinChat:
		var p chatPayload
		if err := decodeChat(frame.Data, &p); err != nil {
			return err
		}
		if err := g.chats.EnsureMember(ctx, p.ChatID, userID); err != nil {
			return err
		}
		g.hub.JoinChat(session, p.ChatID)
		return nil

	case EventLeaveChat:
		var p chatPayload
		if err := decodeChat(frame.Data, &p); err != nil {
			return err
		}
		g.hub.LeaveChat(session, p.ChatID)
		return nil

	case EventSendMessage:
		var p sendPayload
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		if p.ChatID <= 0 {
			return apperr.Validation("chatId is required")
		}
		_, err := g.messages.Create(ctx, models.NewMessage{
			ChatID:        p.ChatID,
			FromID:        userID,
			Text:          p.Text,
			ImageURL:      p.ImageURL,
			ImagePublicID: p.ImagePublicID,
		})
		return err

	case EventEditMessage:
		var p editPayload
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		if p.ID <= 0 || p.ChatID <= 0 {
			return apperr.Validation("id and chatId are required")
		}
		_, err := g.messages.Edit(ctx, models.MessageEdit{
			MessageID:     p.ID,
			ChatID:        p.ChatID,
			FromID:        userID,
			Text:          p.NewText,
			ImageURL:      p.NewImageURL,
			ImagePublicID: p.NewImagePublicID,
		})
		return err

	case EventDeleteMessage:
		var p deletePayload
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		if p.ID <= 0 || p.ChatID <= 0 {
			return apperr.Validation("id and chatId are required")
		}
		_, err := g.messages.Delete(ctx, p.ID, p.ChatID, userID)
		return err

	case EventReadMessages:
		var p chatPayload
		if err := decodeChat(frame.Data, &p); err != nil {
			return err
		}
		_, err := g.messages.MarkRead(ctx, p.ChatID, userID)
		return err

	case EventGetOrCreate:
		var p peerPayload
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		chat, _, err := g.chats.CreateDirect(ctx, userID, p.PeerID)
		if err != nil {
			return err
		}
		g.hub.JoinChat(session, chat.ID)
		session.Send(realtime.EventChatReady, realtime.ChatReadyPayload{ChatID: chat.ID, PeerID: p.PeerID})
		return nil

	case EventGetOnlineUsers:
		ids, err := g.bus.OnlineUserIDs()
		if err != nil {
			return apperr.Internal("online users", err)
		}
		session.Send(realtime.EventOnlineUsers, ids)
		return nil
	}
	return apperr.Validation("unknown event")
}

func (g *Gateway) fail(session *realtime.Session, event string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		log.Printf("ws event failed: event=%s user_id=%d conn_id=%s err=%v", event, session.UserID, session.ID, err)
	}
	session.Send(realtime.EventError, realtime.ErrorPayload{Message: apperr.PublicMessage(err)})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Validation("invalid payload")
	}
	return nil
}

func decodeChat(data json.RawMessage, p *chatPayload) error {
	if err := decode(data, p); err != nil {
		return err
	}
	if p.ChatID <= 0 {
		return apperr.Validation("chatId is required")
	}
	return nil
}
