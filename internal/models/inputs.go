package models

// NewMessage is the input of a message send.
type NewMessage struct {
	ChatID        int
	FromID        int
	Text          string
	ImageURL      *string
	ImagePublicID *string
}

// MessageEdit is the input of a message edit. Omitted fields stay unchanged.
type MessageEdit struct {
	MessageID     int64
	ChatID        int
	FromID        int
	Text          Optional[string]
	ImageURL      Optional[string]
	ImagePublicID Optional[string]
}

const (
	DirectionOlder = "older"
	DirectionNewer = "newer"

	DefaultPageLimit = 30
	MaxPageLimit     = 100
)

// PageQuery selects a page of chat history.
type PageQuery struct {
	Limit     int
	Cursor    *int64
	Direction string
}

// MessagePage is a page of messages in ascending id order.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor *int64    `json:"nextCursor"`
}

// GroupPatch carries the editable group fields; nil fields are left untouched.
type GroupPatch struct {
	Title         *string
	AvatarURL     *string
	AvatarMediaID *string
}

// HasChanges reports whether the patch touches any field.
func (p GroupPatch) HasChanges() bool {
	return p.Title != nil || p.AvatarURL != nil
}
