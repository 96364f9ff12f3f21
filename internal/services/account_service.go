package services

import (
	"context"
	"errors"
	"strings"

	"chat-core/internal/apperr"
	"chat-core/internal/auth"
	"chat-core/internal/media"
	"chat-core/internal/models"
	"chat-core/internal/presence"
	"chat-core/internal/repositories"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6
)

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	Issue(userID int) (string, error)
}

// OnlineChecker reports live socket sessions.
type OnlineChecker interface {
	IsOnline(userID int) bool
}

// AccountService handles sign-up, sign-in and profile edits.
type AccountService struct {
	users    repositories.UserRepository
	tokens   TokenIssuer
	presence presence.Store
	online   OnlineChecker
	media    media.Store
}

func NewAccountService(users repositories.UserRepository, tokens TokenIssuer, presenceStore presence.Store, online OnlineChecker, store media.Store) *AccountService {
	if presenceStore == nil {
		presenceStore = presence.Noop{}
	}
	return &AccountService{users: users, tokens: tokens, presence: presenceStore, online: online, media: store}
}

func (s *AccountService) Register(ctx context.Context, username, password string) (models.AuthResult, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return models.AuthResult{}, apperr.Validation("username must be 3 to 32 characters")
	}
	if len(password) < minPasswordLen {
		return models.AuthResult{}, apperr.Validation("password must be at least 6 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.AuthResult{}, apperr.Internal("hash password", err)
	}
	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		return models.AuthResult{}, mapRepoErr("create user", err)
	}
	return s.session(user)
}

func (s *AccountService) Login(ctx context.Context, username, password string) (models.AuthResult, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.AuthResult{}, apperr.Unauthorized("invalid username or password")
	}
	if err != nil {
		return models.AuthResult{}, mapRepoErr("get user", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return models.AuthResult{}, apperr.Unauthorized("invalid username or password")
	}
	return s.session(user)
}

func (s *AccountService) Me(ctx context.Context, userID int) (models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, mapRepoErr("get user", err)
	}
	return user, nil
}

// Profile returns a user with its presence. Presence lookups are best-effort.
func (s *AccountService) Profile(ctx context.Context, userID int) (models.Profile, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.Profile{}, mapRepoErr("get user", err)
	}
	p := models.Profile{User: user}
	if s.online != nil {
		p.Online = s.online.IsOnline(userID)
	}
	if !p.Online {
		if seen, err := s.presence.LastSeen(ctx, userID); err == nil {
			p.LastSeen = seen
		}
	}
	return p, nil
}

// UpdateAvatar replaces the user's avatar; an empty url clears it. The previous asset is
// released after the update.
func (s *AccountService) UpdateAvatar(ctx context.Context, userID int, avatarURL, avatarMediaID *string) (models.User, error) {
	user, previous, err := s.users.UpdateAvatar(ctx, userID, avatarURL, avatarMediaID)
	if err != nil {
		return models.User{}, mapRepoErr("update avatar", err)
	}
	if previous != nil && !sameString(previous, user.AvatarMediaID) {
		releaseMedia(ctx, s.media, *previous)
	}
	return user, nil
}

func (s *AccountService) session(user models.User) (models.AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return models.AuthResult{}, apperr.Internal("issue token", err)
	}
	return models.AuthResult{Token: token, User: user}, nil
}
