package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-core/internal/models"
	"chat-core/internal/realtime"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) detail(args mock.Arguments) models.ChatDetail {
	var out models.ChatDetail
	if val := args.Get(0); val != nil {
		out = val.(models.ChatDetail)
	}
	return out
}

func (m *ChatServiceMock) CreateDirect(ctx context.Context, actorID, peerID int) (models.ChatDetail, bool, error) {
	args := m.Called(ctx, actorID, peerID)
	return m.detail(args), args.Bool(1), args.Error(2)
}

func (m *ChatServiceMock) CreateGroup(ctx context.Context, actorID int, title string, participantIDs []int) (models.ChatDetail, error) {
	args := m.Called(ctx, actorID, title, participantIDs)
	return m.detail(args), args.Error(1)
}

func (m *ChatServiceMock) List(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var out []models.ChatSummary
	if val := args.Get(0); val != nil {
		out = val.([]models.ChatSummary)
	}
	return out, args.Error(1)
}

func (m *ChatServiceMock) Get(ctx context.Context, chatID, viewerID int) (models.ChatDetail, error) {
	args := m.Called(ctx, chatID, viewerID)
	return m.detail(args), args.Error(1)
}

func (m *ChatServiceMock) EnsureMember(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatServiceMock) UpdateGroup(ctx context.Context, chatID, actorID int, patch models.GroupPatch) (models.ChatDetail, error) {
	args := m.Called(ctx, chatID, actorID, patch)
	return m.detail(args), args.Error(1)
}

func (m *ChatServiceMock) Delete(ctx context.Context, chatID, actorID int) error {
	args := m.Called(ctx, chatID, actorID)
	return args.Error(0)
}

func (m *ChatServiceMock) Leave(ctx context.Context, chatID, actorID int) error {
	args := m.Called(ctx, chatID, actorID)
	return args.Error(0)
}

func (m *ChatServiceMock) AddParticipant(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error) {
	args := m.Called(ctx, chatID, actorID, targetID)
	return m.detail(args), args.Error(1)
}

func (m *ChatServiceMock) RemoveParticipant(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error) {
	args := m.Called(ctx, chatID, actorID, targetID)
	return m.detail(args), args.Error(1)
}

func (m *ChatServiceMock) PromoteAdmin(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error) {
	args := m.Called(ctx, chatID, actorID, targetID)
	return m.detail(args), args.Error(1)
}

func (m *ChatServiceMock) DemoteAdmin(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error) {
	args := m.Called(ctx, chatID, actorID, targetID)
	return m.detail(args), args.Error(1)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) message(args mock.Arguments) models.Message {
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out
}

func (m *MessageServiceMock) Create(ctx context.Context, in models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, in)
	return m.message(args), args.Error(1)
}

func (m *MessageServiceMock) Edit(ctx context.Context, in models.MessageEdit) (models.Message, error) {
	args := m.Called(ctx, in)
	return m.message(args), args.Error(1)
}

func (m *MessageServiceMock) Delete(ctx context.Context, messageID int64, chatID, actorID int) (realtime.MessageDeletedPayload, error) {
	args := m.Called(ctx, messageID, chatID, actorID)
	var out realtime.MessageDeletedPayload
	if val := args.Get(0); val != nil {
		out = val.(realtime.MessageDeletedPayload)
	}
	return out, args.Error(1)
}

func (m *MessageServiceMock) MarkRead(ctx context.Context, chatID, readerID int) (int64, error) {
	args := m.Called(ctx, chatID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageServiceMock) List(ctx context.Context, chatID, viewerID int, q models.PageQuery) (models.MessagePage, error) {
	args := m.Called(ctx, chatID, viewerID, q)
	var out models.MessagePage
	if val := args.Get(0); val != nil {
		out = val.(models.MessagePage)
	}
	return out, args.Error(1)
}

func (m *MessageServiceMock) Get(ctx context.Context, chatID int, messageID int64, viewerID int) (models.Message, error) {
	args := m.Called(ctx, chatID, messageID, viewerID)
	return m.message(args), args.Error(1)
}

type AccountServiceMock struct {
	mock.Mock
}

func (m *AccountServiceMock) auth(args mock.Arguments) models.AuthResult {
	var out models.AuthResult
	if val := args.Get(0); val != nil {
		out = val.(models.AuthResult)
	}
	return out
}

func (m *AccountServiceMock) Register(ctx context.Context, username, password string) (models.AuthResult, error) {
	args := m.Called(ctx, username, password)
	return m.auth(args), args.Error(1)
}

func (m *AccountServiceMock) Login(ctx context.Context, username, password string) (models.AuthResult, error) {
	args := m.Called(ctx, username, password)
	return m.auth(args), args.Error(1)
}

func (m *AccountServiceMock) Me(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *AccountServiceMock) Profile(ctx context.Context, userID int) (models.Profile, error) {
	args := m.Called(ctx, userID)
	var out models.Profile
	if val := args.Get(0); val != nil {
		out = val.(models.Profile)
	}
	return out, args.Error(1)
}

func (m *AccountServiceMock) UpdateAvatar(ctx context.Context, userID int, avatarURL, avatarMediaID *string) (models.User, error) {
	args := m.Called(ctx, userID, avatarURL, avatarMediaID)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}
