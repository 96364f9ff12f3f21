package models

import (
	"fmt"
	"time"
)

type ChatType string

const (
	ChatTypeDirect ChatType = "DIRECT"
	ChatTypeGroup  ChatType = "GROUP"
)

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Chat is either a DIRECT chat between exactly two users or a GROUP chat.
type Chat struct {
	ID            int       `db:"id" json:"id"`
	Type          ChatType  `db:"type" json:"type"`
	Title         *string   `db:"title" json:"title"`
	AvatarURL     *string   `db:"avatar_url" json:"avatarUrl"`
	AvatarMediaID *string   `db:"avatar_media_id" json:"avatarMediaId,omitempty"`
	PrivateKey    *string   `db:"private_key" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// IsGroup reports whether group-only actions apply to the chat.
func (c Chat) IsGroup() bool {
	return c.Type == ChatTypeGroup
}

// Participant is the membership row of a user in a chat.
type Participant struct {
	ChatID   int       `db:"chat_id" json:"chatId"`
	UserID   int       `db:"user_id" json:"userId"`
	Role     Role      `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// ParticipantView joins a participant with the public user fields.
type ParticipantView struct {
	ChatID    int       `db:"chat_id" json:"-"`
	UserID    int       `db:"user_id" json:"userId"`
	Username  string    `db:"username" json:"username"`
	AvatarURL *string   `db:"avatar_url" json:"avatarUrl"`
	Role      Role      `db:"role" json:"role"`
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`
}

// ChatDetail is a chat with its current participants.
type ChatDetail struct {
	Chat
	Participants []ParticipantView `json:"participants"`
}

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	Chat
	Participants []ParticipantView `json:"participants"`
	LastMessage  *Message          `json:"lastMessage"`
	UnreadCount  int               `json:"unreadCount"`
}

// DirectKey returns the canonical "min:max" key that identifies the DIRECT chat of a user pair.
func DirectKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
