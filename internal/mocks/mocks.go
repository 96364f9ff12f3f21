package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) FindDirectChat(ctx context.Context, key string) (models.Chat, error) {
	args := m.Called(ctx, key)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateDirectChat(ctx context.Context, key string, userA, userB int) (models.Chat, error) {
	args := m.Called(ctx, key, userA, userB)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateGroupChat(ctx context.Context, ownerID int, title string, memberIDs []int, created models.Message) (models.Chat, models.Message, error) {
	args := m.Called(ctx, ownerID, title, memberIDs, created)
	var (
		chat models.Chat
		msg  models.Message
	)
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	if val := args.Get(1); val != nil {
		msg = val.(models.Message)
	}
	return chat, msg, args.Error(2)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) GetParticipant(ctx context.Context, chatID, userID int) (models.Participant, error) {
	args := m.Called(ctx, chatID, userID)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ChatRepositoryMock) ListParticipants(ctx context.Context, chatID int) ([]models.ParticipantView, error) {
	args := m.Called(ctx, chatID)
	var list []models.ParticipantView
	if val := args.Get(0); val != nil {
		list = val.([]models.ParticipantView)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) ListMemberIDs(ctx context.Context, chatID int) ([]int, error) {
	args := m.Called(ctx, chatID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) AddParticipant(ctx context.Context, chatID, userID int, sys models.Message) (models.Message, error) {
	return m.messageResult(m.Called(ctx, chatID, userID, sys))
}

func (m *ChatRepositoryMock) RemoveParticipant(ctx context.Context, chatID, userID int, sys models.Message) (models.Message, error) {
	return m.messageResult(m.Called(ctx, chatID, userID, sys))
}

func (m *ChatRepositoryMock) UpdateParticipantRole(ctx context.Context, chatID, userID int, from, to models.Role, sys models.Message) (models.Message, error) {
	return m.messageResult(m.Called(ctx, chatID, userID, from, to, sys))
}

func (m *ChatRepositoryMock) UpdateChat(ctx context.Context, chatID int, patch models.GroupPatch, sys []models.Message) (repositories.ChatUpdate, error) {
	args := m.Called(ctx, chatID, patch, sys)
	var res repositories.ChatUpdate
	if val := args.Get(0); val != nil {
		res = val.(repositories.ChatUpdate)
	}
	return res, args.Error(1)
}

func (m *ChatRepositoryMock) DeleteChat(ctx context.Context, chatID int) ([]string, error) {
	args := m.Called(ctx, chatID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) messageResult(args mock.Arguments) (models.Message, error) {
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateMessage(ctx context.Context, messageID int64, fromID int, text string, imageURL, imagePublicID *string) (models.Message, error) {
	args := m.Called(ctx, messageID, fromID, text, imageURL, imagePublicID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID int64, fromID int) (models.Message, *models.Message, error) {
	args := m.Called(ctx, messageID, fromID)
	var (
		msg  models.Message
		next *models.Message
	)
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	if val := args.Get(1); val != nil {
		next = val.(*models.Message)
	}
	return msg, next, args.Error(2)
}

func (m *MessageRepositoryMock) LastMessage(ctx context.Context, chatID int) (*models.Message, error) {
	args := m.Called(ctx, chatID)
	var msg *models.Message
	if val := args.Get(0); val != nil {
		msg = val.(*models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID int, cursor *int64, direction string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, cursor, direction, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID, readerID int) (int64, error) {
	args := m.Called(ctx, chatID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, chatID, viewerID int) (int, error) {
	args := m.Called(ctx, chatID, viewerID)
	return args.Int(0), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	args := m.Called(ctx, username, passwordHash)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListUsers(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) UpdateAvatar(ctx context.Context, userID int, avatarURL, avatarMediaID *string) (models.User, *string, error) {
	args := m.Called(ctx, userID, avatarURL, avatarMediaID)
	var (
		user     models.User
		previous *string
	)
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	if val := args.Get(1); val != nil {
		previous = val.(*string)
	}
	return user, previous, args.Error(2)
}
