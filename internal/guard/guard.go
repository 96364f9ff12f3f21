// Package guard is the single decision point for chat and membership actions.
package guard

import (
	"context"
	"errors"
	"fmt"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

type Action string

const (
	ActionViewChat          Action = "view_chat"
	ActionSendMessage       Action = "send_message"
	ActionAddParticipant    Action = "add_participant"
	ActionRemoveParticipant Action = "remove_participant"
	ActionPromoteAdmin      Action = "promote_admin"
	ActionDemoteAdmin       Action = "demote_admin"
	ActionLeaveChat         Action = "leave_chat"
	ActionEditChat          Action = "edit_chat"
	ActionDeleteChat        Action = "delete_chat"
)

type Outcome int

const (
	Allowed Outcome = iota
	Forbidden
	NotFound
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type targetRule int

const (
	targetNone targetRule = iota
	targetNotMember
	targetRemovable
	targetPromotable
	targetDemotable
)

type policy struct {
	groupOnly     bool
	roles         []models.Role
	actorNotOwner bool
	target        targetRule
}

var anyMember = []models.Role{models.RoleOwner, models.RoleAdmin, models.RoleMember}

var policies = map[Action]policy{
	ActionViewChat:          {roles: anyMember},
	ActionSendMessage:       {roles: anyMember},
	ActionAddParticipant:    {groupOnly: true, roles: anyMember, target: targetNotMember},
	ActionRemoveParticipant: {groupOnly: true, roles: []models.Role{models.RoleOwner, models.RoleAdmin}, target: targetRemovable},
	ActionPromoteAdmin:      {groupOnly: true, roles: []models.Role{models.RoleOwner}, target: targetPromotable},
	ActionDemoteAdmin:       {groupOnly: true, roles: []models.Role{models.RoleOwner}, target: targetDemotable},
	ActionLeaveChat:         {groupOnly: true, roles: anyMember, actorNotOwner: true},
	ActionEditChat:          {groupOnly: true, roles: []models.Role{models.RoleOwner, models.RoleAdmin}},
	ActionDeleteChat:        {groupOnly: true, roles: []models.Role{models.RoleOwner}},
}

// Request names the action an actor wants to take on a chat. TargetID is only read
// for actions on another participant.
type Request struct {
	Action   Action
	ChatID   int
	ActorID  int
	TargetID int
}

// Decision is the tagged result of Check. Chat, Actor, Target and TargetUser are filled
// as far as evaluation got.
type Decision struct {
	Outcome    Outcome
	Reason     string
	Chat       models.Chat
	Actor      models.Participant
	Target     *models.Participant
	TargetUser *models.User
}

// Allowed reports whether the action may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}

// Err converts a rejected decision into an apperr; nil when allowed.
func (d Decision) Err() error {
	switch d.Outcome {
	case Allowed:
		return nil
	case Forbidden:
		return apperr.Forbidden(d.Reason)
	case NotFound:
		return apperr.NotFound(d.Reason)
	default:
		return apperr.Validation(d.Reason)
	}
}

// ChatReader is the persistence the guard needs for chats and memberships.
type ChatReader interface {
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	GetParticipant(ctx context.Context, chatID, userID int) (models.Participant, error)
}

// UserReader resolves target users.
type UserReader interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// Guard evaluates membership and role rules before any mutation runs.
type Guard struct {
	chats ChatReader
	users UserReader
}

func New(chats ChatReader, users UserReader) *Guard {
	return &Guard{chats: chats, users: users}
}

// Check evaluates req. The error return is reserved for infrastructure failures; every
// rule violation is reported through the Decision.
func (g *Guard) Check(ctx context.Context, req Request) (Decision, error) {
	p, ok := policies[req.Action]
	if !ok {
		return Decision{}, fmt.Errorf("guard: unknown action %q", req.Action)
	}

	var d Decision
	chat, err := g.chats.GetChat(ctx, req.ChatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return reject(d, NotFound, "chat not found"), nil
	}
	if err != nil {
		return d, err
	}
	d.Chat = chat

	actor, err := g.chats.GetParticipant(ctx, req.ChatID, req.ActorID)
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		return reject(d, Forbidden, "you are not a participant of this chat"), nil
	}
	if err != nil {
		return d, err
	}
	d.Actor = actor

	if p.groupOnly && !chat.IsGroup() {
		return reject(d, Invalid, "not a group chat"), nil
	}
	if !hasRole(actor.Role, p.roles) {
		return reject(d, Forbidden, "insufficient role"), nil
	}
	if p.actorNotOwner && actor.Role == models.RoleOwner {
		return reject(d, Invalid, "owner cannot leave the chat"), nil
	}
	if p.target == targetNone {
		return allow(d), nil
	}

	user, err := g.users.GetUser(ctx, req.TargetID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return reject(d, NotFound, "user not found"), nil
	}
	if err != nil {
		return d, err
	}
	d.TargetUser = &user

	target, err := g.chats.GetParticipant(ctx, req.ChatID, req.TargetID)
	switch {
	case errors.Is(err, repositories.ErrParticipantNotFound):
		if p.target == targetNotMember {
			return allow(d), nil
		}
		return reject(d, NotFound, "participant not found"), nil
	case err != nil:
		return d, err
	}
	d.Target = &target

	if p.target == targetNotMember {
		return reject(d, Invalid, "user is already a participant"), nil
	}
	if target.Role == models.RoleOwner {
		return reject(d, Invalid, "owner role cannot be changed"), nil
	}
	switch {
	case p.target == targetPromotable && target.Role != models.RoleMember:
		return reject(d, Invalid, "user is already an admin"), nil
	case p.target == targetDemotable && target.Role != models.RoleAdmin:
		return reject(d, Invalid, "user is not an admin"), nil
	}
	return allow(d), nil
}

// Require runs Check and folds rejections and failures into one error.
func (g *Guard) Require(ctx context.Context, req Request) (Decision, error) {
	d, err := g.Check(ctx, req)
	if err != nil {
		return d, apperr.Internal("authorization check failed", err)
	}
	return d, d.Err()
}

func allow(d Decision) Decision {
	d.Outcome = Allowed
	d.Reason = ""
	return d
}

func reject(d Decision, o Outcome, reason string) Decision {
	d.Outcome = o
	d.Reason = reason
	return d
}

func hasRole(role models.Role, roles []models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
