package realtime

import (
	"encoding/json"

	"chat-core/internal/models"
)

// Outbound event names.
const (
	EventReceiveMessage       = "receive_message"
	EventReceiveEditedMessage = "receive_edited_message"
	EventMessageDeleted       = "message_deleted"
	EventMessagesRead         = "messages_read"
	EventUserOnline           = "user_online"
	EventUserOffline          = "user_offline"
	EventOnlineUsers          = "online_users"
	EventChatReady            = "chat_ready"
	EventChatCreated          = "chat_created"
	EventChatUpdated          = "chat_updated"
	EventChatDeleted          = "chat_deleted"
	EventRemovedFromChat      = "removed_from_chat"
	EventError                = "error"
)

// Frame is the envelope of every socket message in both directions.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundFrame is a client frame whose payload is decoded per event.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode renders an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

type MessageDeletedPayload struct {
	ID          int64           `json:"id"`
	ChatID      int             `json:"chatId"`
	NextLast    *models.Message `json:"nextLast"`
	UnreadCount *int            `json:"unreadCount,omitempty"`
}

type MessagesReadPayload struct {
	ChatID   int `json:"chatId"`
	ReaderID int `json:"readerId"`
}

type PresencePayload struct {
	UserID int `json:"userId"`
}

type ChatReadyPayload struct {
	ChatID int `json:"chatId"`
	PeerID int `json:"peerId"`
}

type ChatDeletedPayload struct {
	ChatID int         `json:"chatId"`
	Meta   models.Meta `json:"meta"`
}

type RemovedFromChatPayload struct {
	ChatID int `json:"chatId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
