// Package services holds the chat and message use cases: authorize, mutate, then broadcast.
package services

import (
	"context"
	"errors"
	"log"

	"chat-core/internal/apperr"
	"chat-core/internal/guard"
	"chat-core/internal/media"
	"chat-core/internal/repositories"
)

// Broadcaster is the realtime fan-out used after a mutation commits.
type Broadcaster interface {
	EmitToChat(chatID int, event string, payload any) error
	EmitToUser(userID int, event string, payload any) error
	EmitToUsers(userIDs []int, event string, payload any) error
	EmitToChatAndUsers(ctx context.Context, chatID, initiatorID int, event string, payload any) error
	EmitToChatAndMembers(ctx context.Context, chatID int, event string, chatPayload any, memberPayload func(userID int) (any, error)) error
	UnsubscribeUser(chatID, userID int) error
}

// Authorizer is the guard decision point.
type Authorizer interface {
	Require(ctx context.Context, req guard.Request) (guard.Decision, error)
}

// emit logs broadcast failures. The mutation has already committed, so they never fail the call.
func emit(op string, err error) {
	if err != nil {
		log.Printf("broadcast failed: op=%s err=%v", op, err)
	}
}

// releaseMedia deletes media ids best-effort.
func releaseMedia(ctx context.Context, store media.Store, ids ...string) {
	if store == nil {
		return
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := store.Delete(ctx, id); err != nil {
			log.Printf("media delete failed: media_id=%s err=%v", id, err)
		}
	}
}

// mapRepoErr translates repository sentinels into the public taxonomy.
func mapRepoErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrChatNotFound):
		return apperr.NotFound("chat not found")
	case errors.Is(err, repositories.ErrUserNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return apperr.NotFound("participant not found")
	case errors.Is(err, repositories.ErrMessageNotFound):
		return apperr.NotFound("message not found")
	case errors.Is(err, repositories.ErrAlreadyParticipant):
		return apperr.Validation("user is already a participant")
	case errors.Is(err, repositories.ErrUsernameTaken):
		return apperr.Conflict("username already taken")
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal(op, err)
}
