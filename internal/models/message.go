package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeSystem MessageType = "SYSTEM"
)

// Message represents a chat message. SYSTEM messages carry their payload in Meta.
type Message struct {
	ID            int64       `db:"id" json:"id"`
	ChatID        int         `db:"chat_id" json:"chatId"`
	FromID        *int        `db:"from_id" json:"fromId"`
	Text          string      `db:"text" json:"text"`
	ImageURL      *string     `db:"image_url" json:"imageUrl"`
	ImagePublicID *string     `db:"image_public_id" json:"imagePublicId"`
	Type          MessageType `db:"type" json:"type"`
	Meta          Meta        `db:"meta" json:"meta,omitempty"`
	Read          bool        `db:"read" json:"read"`
	Edited        bool        `db:"edited" json:"edited"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
}

// AuthoredBy reports whether userID wrote the message.
func (m Message) AuthoredBy(userID int) bool {
	return m.FromID != nil && *m.FromID == userID
}

// Meta is the structured payload of a SYSTEM message, stored as JSONB.
type Meta map[string]any

func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Meta) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("meta: unsupported source type %T", src)
	}
	out := Meta{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	*m = out
	return nil
}

// Action returns the system action tag, if any.
func (m Meta) Action() string {
	action, _ := m["action"].(string)
	return action
}
