package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chat-core/internal/observability"
)

var ErrRegistryNotInitialized = errors.New("realtime: session registry not initialized")

// MemberLister resolves the current members of a chat.
type MemberLister interface {
	ListMemberIDs(ctx context.Context, chatID int) ([]int, error)
}

// Dispatcher fans events out over the hub's channels. A member viewing the chat gets the
// event once on the chat channel and once on its user channel; user channels themselves
// are never hit twice for one emit.
type Dispatcher struct {
	hub     *Hub
	members MemberLister
}

func NewDispatcher(hub *Hub, members MemberLister) *Dispatcher {
	return &Dispatcher{hub: hub, members: members}
}

func (d *Dispatcher) ready() error {
	if d == nil || d.hub == nil {
		log.Printf("broadcast attempted without session registry")
		return ErrRegistryNotInitialized
	}
	return nil
}

// EmitToChat delivers to every session subscribed to the chat channel.
func (d *Dispatcher) EmitToChat(chatID int, event string, payload any) error {
	if err := d.ready(); err != nil {
		return err
	}
	frame, err := Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	deliver("chat", d.hub.ChatSessions(chatID), frame)
	return nil
}

// EmitToUser delivers to every session of userID.
func (d *Dispatcher) EmitToUser(userID int, event string, payload any) error {
	return d.EmitToUsers([]int{userID}, event, payload)
}

// EmitToUsers delivers to the user channel of each distinct id.
func (d *Dispatcher) EmitToUsers(userIDs []int, event string, payload any) error {
	if err := d.ready(); err != nil {
		return err
	}
	frame, err := Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	for _, id := range distinct(userIDs) {
		deliver("user", d.hub.UserSessions(id), frame)
	}
	return nil
}

// EmitToChatAndUsers delivers to the chat channel, to every member's user channel and to
// the initiator's user channel, so the initiator's other sessions refresh as well. A zero
// initiatorID addresses the members only.
func (d *Dispatcher) EmitToChatAndUsers(ctx context.Context, chatID, initiatorID int, event string, payload any) error {
	if err := d.ready(); err != nil {
		return err
	}
	members, err := d.members.ListMemberIDs(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list members of chat %d: %w", chatID, err)
	}
	if err := d.EmitToChat(chatID, event, payload); err != nil {
		return err
	}
	audience := append([]int{}, members...)
	if initiatorID > 0 {
		audience = append(audience, initiatorID)
	}
	return d.EmitToUsers(audience, event, payload)
}

// EmitToChatAndMembers sends chatPayload to the chat channel and a per-member payload to
// each member's user channel.
func (d *Dispatcher) EmitToChatAndMembers(ctx context.Context, chatID int, event string, chatPayload any, memberPayload func(userID int) (any, error)) error {
	if err := d.ready(); err != nil {
		return err
	}
	members, err := d.members.ListMemberIDs(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list members of chat %d: %w", chatID, err)
	}
	if err := d.EmitToChat(chatID, event, chatPayload); err != nil {
		return err
	}
	for _, id := range distinct(members) {
		payload, err := memberPayload(id)
		if err != nil {
			return err
		}
		if err := d.EmitToUser(id, event, payload); err != nil {
			return err
		}
	}
	return nil
}

// Broadcast delivers to every connected session.
func (d *Dispatcher) Broadcast(event string, payload any) error {
	if err := d.ready(); err != nil {
		return err
	}
	frame, err := Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	deliver("all", d.hub.AllSessions(), frame)
	return nil
}

// UnsubscribeUser drops every session of userID from the chat channel.
func (d *Dispatcher) UnsubscribeUser(chatID, userID int) error {
	if err := d.ready(); err != nil {
		return err
	}
	d.hub.UnsubscribeUser(chatID, userID)
	return nil
}

// OnlineUserIDs lists users that currently hold a session.
func (d *Dispatcher) OnlineUserIDs() ([]int, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.hub.OnlineUserIDs(), nil
}

func deliver(scope string, sessions []*Session, frame []byte) {
	for _, s := range sessions {
		if s.Deliver(frame) {
			observability.IncBroadcast(scope, "delivered")
		} else {
			observability.IncBroadcast(scope, "dropped")
		}
	}
}

func distinct(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
