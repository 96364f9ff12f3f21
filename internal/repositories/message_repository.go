package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-core/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, chat_id, from_id, text, image_url, image_public_id, type, meta, read, edited, created_at, updated_at`

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	UpdateMessage(ctx context.Context, messageID int64, fromID int, text string, imageURL, imagePublicID *string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int64, fromID int) (models.Message, *models.Message, error)
	LastMessage(ctx context.Context, chatID int) (*models.Message, error)
	ListMessages(ctx context.Context, chatID int, cursor *int64, direction string, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID, readerID int) (int64, error)
	UnreadCount(ctx context.Context, chatID, viewerID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func insertMessage(ctx context.Context, q sqlx.QueryerContext, msg models.Message) (models.Message, error) {
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	var out models.Message
	err := sqlx.GetContext(ctx, q, &out, `INSERT INTO messages (chat_id, from_id, text, image_url, image_public_id, type, meta)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+messageColumns,
		msg.ChatID, msg.FromID, msg.Text, msg.ImageURL, msg.ImagePublicID, msg.Type, msg.Meta)
	return out, err
}

func lastMessage(ctx context.Context, q sqlx.QueryerContext, chatID int) (*models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, q, &msg, `SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 ORDER BY id DESC LIMIT 1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateMessage stores a message and bumps the chat's activity timestamp in one transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var out models.Message
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		if out, err = insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE chats SET updated_at = NOW() WHERE id=$1`, msg.ChatID)
		return err
	})
	if pgCode(err) == pqForeignKeyViolation {
		return models.Message{}, ErrChatNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return out, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateMessage rewrites the content of a TEXT message authored by fromID and flags it edited.
func (r *MessageRepo) UpdateMessage(ctx context.Context, messageID int64, fromID int, text string, imageURL, imagePublicID *string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages
        SET text=$3, image_url=$4, image_public_id=$5, edited=TRUE, updated_at=NOW()
        WHERE id=$1 AND from_id=$2 AND type=$6
        RETURNING `+messageColumns,
		messageID, fromID, text, nullable(imageURL), nullable(imagePublicID), models.MessageTypeText)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// DeleteMessage removes a TEXT message authored by fromID and returns it together with the
// chat's new last message (nil when the chat is now empty).
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int64, fromID int) (models.Message, *models.Message, error) {
	var (
		deleted  models.Message
		nextLast *models.Message
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &deleted, `DELETE FROM messages WHERE id=$1 AND from_id=$2 AND type=$3 RETURNING `+messageColumns,
			messageID, fromID, models.MessageTypeText); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMessageNotFound
			}
			return err
		}
		var err error
		nextLast, err = lastMessage(ctx, tx, deleted.ChatID)
		return err
	})
	if err != nil {
		return models.Message{}, nil, err
	}
	return deleted, nextLast, nil
}

// LastMessage returns the most recent message of a chat, or nil.
func (r *MessageRepo) LastMessage(ctx context.Context, chatID int) (*models.Message, error) {
	return lastMessage(ctx, r.db, chatID)
}

// ListMessages returns up to limit messages on one side of cursor, always in ascending id order.
// Older pages walk backwards from the cursor (or the newest message); newer pages walk forward
// from it (or the first message).
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int, cursor *int64, direction string, limit int) ([]models.Message, error) {
	var (
		query string
		args  = []any{chatID, limit}
	)
	switch {
	case direction == models.DirectionNewer && cursor != nil:
		query = `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 AND id > $3 ORDER BY id ASC LIMIT $2`
		args = append(args, *cursor)
	case direction == models.DirectionNewer:
		query = `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 ORDER BY id ASC LIMIT $2`
	case cursor != nil:
		query = `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 AND id < $3 ORDER BY id DESC LIMIT $2`
		args = append(args, *cursor)
	default:
		query = `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 ORDER BY id DESC LIMIT $2`
	}

	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	if direction != models.DirectionNewer {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, nil
}

// MarkRead flags every unread message in the chat not written by readerID as read.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID, readerID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read=TRUE
        WHERE chat_id=$1 AND read=FALSE AND from_id IS DISTINCT FROM $2`, chatID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount counts the messages of chatID that viewerID has not read.
func (r *MessageRepo) UnreadCount(ctx context.Context, chatID, viewerID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE chat_id=$1 AND read=FALSE AND from_id IS DISTINCT FROM $2`, chatID, viewerID)
	return count, err
}
