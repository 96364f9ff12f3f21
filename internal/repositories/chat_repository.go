package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-core/internal/models"
)

var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrDirectChatExists    = errors.New("direct chat already exists")
	ErrAlreadyParticipant  = errors.New("user is already a participant")
)

const chatColumns = `id, type, title, avatar_url, avatar_media_id, private_key, created_at, updated_at`

const participantViewQuery = `SELECT cp.chat_id, cp.user_id, u.username, u.avatar_url, cp.role, cp.joined_at
    FROM chat_participants cp JOIN users u ON u.id = cp.user_id`

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	FindDirectChat(ctx context.Context, key string) (models.Chat, error)
	CreateDirectChat(ctx context.Context, key string, userA, userB int) (models.Chat, error)
	CreateGroupChat(ctx context.Context, ownerID int, title string, memberIDs []int, created models.Message) (models.Chat, models.Message, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error)
	GetParticipant(ctx context.Context, chatID, userID int) (models.Participant, error)
	ListParticipants(ctx context.Context, chatID int) ([]models.ParticipantView, error)
	ListMemberIDs(ctx context.Context, chatID int) ([]int, error)
	AddParticipant(ctx context.Context, chatID, userID int, sys models.Message) (models.Message, error)
	RemoveParticipant(ctx context.Context, chatID, userID int, sys models.Message) (models.Message, error)
	UpdateParticipantRole(ctx context.Context, chatID, userID int, from, to models.Role, sys models.Message) (models.Message, error)
	UpdateChat(ctx context.Context, chatID int, patch models.GroupPatch, sys []models.Message) (ChatUpdate, error)
	DeleteChat(ctx context.Context, chatID int) ([]string, error)
}

// ChatUpdate is the outcome of a group edit.
type ChatUpdate struct {
	Chat                  models.Chat
	PreviousAvatarMediaID *string
	Messages              []models.Message
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// FindDirectChat looks a DIRECT chat up by its canonical pair key.
func (r *ChatRepo) FindDirectChat(ctx context.Context, key string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE private_key=$1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// CreateDirectChat inserts the chat and both participant rows in one transaction.
// A concurrent insert of the same key yields ErrDirectChatExists.
func (r *ChatRepo) CreateDirectChat(ctx context.Context, key string, userA, userB int) (models.Chat, error) {
	var chat models.Chat
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &chat, `INSERT INTO chats (type, private_key) VALUES ($1, $2) RETURNING `+chatColumns,
			models.ChatTypeDirect, key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, role) VALUES ($1, $2, $4), ($1, $3, $4)`,
			chat.ID, userA, userB, models.RoleMember)
		return err
	})
	switch pgCode(err) {
	case pqUniqueViolation:
		return models.Chat{}, ErrDirectChatExists
	case pqForeignKeyViolation:
		return models.Chat{}, ErrUserNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// CreateGroupChat inserts the chat, the OWNER row, MEMBER rows for memberIDs and the
// creation system message atomically.
func (r *ChatRepo) CreateGroupChat(ctx context.Context, ownerID int, title string, memberIDs []int, created models.Message) (models.Chat, models.Message, error) {
	var (
		chat models.Chat
		msg  models.Message
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &chat, `INSERT INTO chats (type, title) VALUES ($1, $2) RETURNING `+chatColumns,
			models.ChatTypeGroup, title); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, role) VALUES ($1, $2, $3)`,
			chat.ID, ownerID, models.RoleOwner); err != nil {
			return err
		}
		for _, id := range memberIDs {
			if id == ownerID {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, role) VALUES ($1, $2, $3)`,
				chat.ID, id, models.RoleMember); err != nil {
				return err
			}
		}
		created.ChatID = chat.ID
		var err error
		msg, err = insertMessage(ctx, tx, created)
		return err
	})
	if pgCode(err) == pqForeignKeyViolation {
		return models.Chat{}, models.Message{}, ErrUserNotFound
	}
	if err != nil {
		return models.Chat{}, models.Message{}, err
	}
	return chat, msg, nil
}

type chatRow struct {
	models.Chat
	UnreadCount int `db:"unread_count"`
}

// ListChatsForUser returns the user's chats, most recently active first, with participants,
// last message and the user's unread count.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	var rows []chatRow
	query := `SELECT c.id, c.type, c.title, c.avatar_url, c.avatar_media_id, c.private_key, c.created_at, c.updated_at,
        (SELECT COUNT(*) FROM messages m
            WHERE m.chat_id = c.id AND m.read = FALSE AND m.from_id IS DISTINCT FROM $1) AS unread_count
        FROM chats c
        JOIN chat_participants cp ON cp.chat_id = c.id
        WHERE cp.user_id = $1
        ORDER BY c.updated_at DESC, c.id DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	summaries := make([]models.ChatSummary, 0, len(rows))
	if len(rows) == 0 {
		return summaries, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, int64(row.ID))
	}

	var last []models.Message
	if err := r.db.SelectContext(ctx, &last, `SELECT DISTINCT ON (chat_id) `+messageColumns+`
        FROM messages WHERE chat_id = ANY($1) ORDER BY chat_id, id DESC`, pq.Array(ids)); err != nil {
		return nil, err
	}
	lastByChat := make(map[int]models.Message, len(last))
	for _, m := range last {
		lastByChat[m.ChatID] = m
	}

	var participants []models.ParticipantView
	if err := r.db.SelectContext(ctx, &participants, participantViewQuery+`
        WHERE cp.chat_id = ANY($1) ORDER BY cp.joined_at, cp.user_id`, pq.Array(ids)); err != nil {
		return nil, err
	}
	byChat := make(map[int][]models.ParticipantView)
	for _, p := range participants {
		byChat[p.ChatID] = append(byChat[p.ChatID], p)
	}

	for _, row := range rows {
		summary := models.ChatSummary{
			Chat:         row.Chat,
			Participants: byChat[row.ID],
			UnreadCount:  row.UnreadCount,
		}
		if summary.Participants == nil {
			summary.Participants = []models.ParticipantView{}
		}
		if m, ok := lastByChat[row.ID]; ok {
			m := m
			summary.LastMessage = &m
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetParticipant fetches the membership row of userID in chatID.
func (r *ChatRepo) GetParticipant(ctx context.Context, chatID, userID int) (models.Participant, error) {
	var p models.Participant
	err := r.db.GetContext(ctx, &p, `SELECT chat_id, user_id, role, joined_at FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrParticipantNotFound
	}
	return p, err
}

// ListParticipants returns the chat's members with their public profile fields.
func (r *ChatRepo) ListParticipants(ctx context.Context, chatID int) ([]models.ParticipantView, error) {
	participants := []models.ParticipantView{}
	err := r.db.SelectContext(ctx, &participants, participantViewQuery+` WHERE cp.chat_id = $1 ORDER BY cp.joined_at, cp.user_id`, chatID)
	return participants, err
}

// ListMemberIDs returns the user ids of every member of the chat.
func (r *ChatRepo) ListMemberIDs(ctx context.Context, chatID int) ([]int, error) {
	ids := []int{}
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM chat_participants WHERE chat_id=$1 ORDER BY user_id`, chatID)
	return ids, err
}

// AddParticipant inserts a MEMBER row and its system message atomically.
func (r *ChatRepo) AddParticipant(ctx context.Context, chatID, userID int, sys models.Message) (models.Message, error) {
	var msg models.Message
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, role) VALUES ($1, $2, $3)`,
			chatID, userID, models.RoleMember); err != nil {
			return err
		}
		sys.ChatID = chatID
		var err error
		msg, err = insertMessage(ctx, tx, sys)
		return err
	})
	switch pgCode(err) {
	case pqUniqueViolation:
		return models.Message{}, ErrAlreadyParticipant
	case pqForeignKeyViolation:
		return models.Message{}, ErrUserNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// RemoveParticipant deletes a non-OWNER membership row and records sys in the same transaction.
// A missing row, or an OWNER row, yields ErrParticipantNotFound.
func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID, userID int, sys models.Message) (models.Message, error) {
	var msg models.Message
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM chat_participants WHERE chat_id=$1 AND user_id=$2 AND role <> $3`,
			chatID, userID, models.RoleOwner)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrParticipantNotFound
		}
		sys.ChatID = chatID
		msg, err = insertMessage(ctx, tx, sys)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// UpdateParticipantRole moves a member from one role to another, only if it still holds from.
func (r *ChatRepo) UpdateParticipantRole(ctx context.Context, chatID, userID int, from, to models.Role, sys models.Message) (models.Message, error) {
	var msg models.Message
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE chat_participants SET role=$4 WHERE chat_id=$1 AND user_id=$2 AND role=$3`,
			chatID, userID, from, to)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrParticipantNotFound
		}
		sys.ChatID = chatID
		msg, err = insertMessage(ctx, tx, sys)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// UpdateChat applies patch to a GROUP chat and stores the describing system messages.
// An empty AvatarURL clears the avatar.
func (r *ChatRepo) UpdateChat(ctx context.Context, chatID int, patch models.GroupPatch, sys []models.Message) (ChatUpdate, error) {
	var out ChatUpdate
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current models.Chat
		if err := tx.GetContext(ctx, &current, `SELECT `+chatColumns+` FROM chats WHERE id=$1 AND type=$2 FOR UPDATE`,
			chatID, models.ChatTypeGroup); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrChatNotFound
			}
			return err
		}

		title := current.Title
		if patch.Title != nil {
			title = patch.Title
		}
		avatarURL, avatarMediaID := current.AvatarURL, current.AvatarMediaID
		if patch.AvatarURL != nil {
			avatarURL, avatarMediaID = nullable(patch.AvatarURL), nullable(patch.AvatarMediaID)
			out.PreviousAvatarMediaID = current.AvatarMediaID
		}

		if err := tx.GetContext(ctx, &out.Chat, `UPDATE chats SET title=$2, avatar_url=$3, avatar_media_id=$4, updated_at=NOW()
            WHERE id=$1 RETURNING `+chatColumns, chatID, title, avatarURL, avatarMediaID); err != nil {
			return err
		}

		for _, m := range sys {
			m.ChatID = chatID
			saved, err := insertMessage(ctx, tx, m)
			if err != nil {
				return err
			}
			out.Messages = append(out.Messages, saved)
		}
		return nil
	})
	if err != nil {
		return ChatUpdate{}, err
	}
	return out, nil
}

// DeleteChat removes the chat with its memberships and messages and returns the media ids
// they referenced.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID int) ([]string, error) {
	mediaIDs := []string{}
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &mediaIDs, `SELECT image_public_id FROM messages WHERE chat_id=$1 AND image_public_id IS NOT NULL
            UNION ALL
            SELECT avatar_media_id FROM chats WHERE id=$1 AND avatar_media_id IS NOT NULL`, chatID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrChatNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mediaIDs, nil
}
