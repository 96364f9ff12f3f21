package services

import (
	"context"
	"errors"
	"strings"

	"chat-core/internal/apperr"
	"chat-core/internal/guard"
	"chat-core/internal/media"
	"chat-core/internal/models"
	"chat-core/internal/realtime"
	"chat-core/internal/repositories"
	"chat-core/internal/systemmsg"
)

// ChatService creates chats and administers group membership.
type ChatService struct {
	chats repositories.ChatRepository
	users repositories.UserRepository
	guard Authorizer
	bus   Broadcaster
	media media.Store
}

func NewChatService(chats repositories.ChatRepository, users repositories.UserRepository, authz Authorizer, bus Broadcaster, store media.Store) *ChatService {
	return &ChatService{chats: chats, users: users, guard: authz, bus: bus, media: store}
}

// CreateDirect returns the DIRECT chat of the pair, creating it when needed. created is
// false when the chat already existed, including when a concurrent request created it first.
func (s *ChatService) CreateDirect(ctx context.Context, actorID, peerID int) (models.ChatDetail, bool, error) {
	if peerID <= 0 {
		return models.ChatDetail{}, false, apperr.Validation("peerId is required")
	}
	if peerID == actorID {
		return models.ChatDetail{}, false, apperr.Validation("cannot create direct chat with yourself")
	}
	if _, err := s.users.GetUser(ctx, peerID); err != nil {
		return models.ChatDetail{}, false, mapRepoErr("get peer", err)
	}

	key := models.DirectKey(actorID, peerID)
	chat, err := s.chats.FindDirectChat(ctx, key)
	if err == nil {
		detail, err := s.detail(ctx, chat)
		return detail, false, err
	}
	if !errors.Is(err, repositories.ErrChatNotFound) {
		return models.ChatDetail{}, false, mapRepoErr("find direct chat", err)
	}

	chat, err = s.chats.CreateDirectChat(ctx, key, actorID, peerID)
	if errors.Is(err, repositories.ErrDirectChatExists) {
		chat, err = s.chats.FindDirectChat(ctx, key)
		if err != nil {
			return models.ChatDetail{}, false, mapRepoErr("refetch direct chat", err)
		}
		detail, err := s.detail(ctx, chat)
		return detail, false, err
	}
	if err != nil {
		return models.ChatDetail{}, false, mapRepoErr("create direct chat", err)
	}

	detail, err := s.detail(ctx, chat)
	if err != nil {
		return models.ChatDetail{}, false, err
	}
	emit(realtime.EventChatCreated, s.bus.EmitToUsers([]int{actorID, peerID}, realtime.EventChatCreated, detail))
	return detail, true, nil
}

// CreateGroup creates a GROUP chat owned by actorID with the given members.
func (s *ChatService) CreateGroup(ctx context.Context, actorID int, title string, participantIDs []int) (models.ChatDetail, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.ChatDetail{}, apperr.Validation("title is required")
	}
	ids := uniqueIDs(append([]int{actorID}, participantIDs...))
	if len(ids) < 2 {
		return models.ChatDetail{}, apperr.Validation("group chat requires at least 2 participants")
	}

	users, err := s.users.ListUsers(ctx, ids)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("list users", err)
	}
	if len(users) != len(ids) {
		return models.ChatDetail{}, apperr.NotFound("user not found")
	}
	var actor *models.User
	for i := range users {
		if users[i].ID == actorID {
			actor = &users[i]
		}
	}
	if actor == nil {
		return models.ChatDetail{}, apperr.NotFound("user not found")
	}

	sys := systemmsg.New(0, systemmsg.GroupCreated, actor, nil, map[string]any{"title": title})
	chat, _, err := s.chats.CreateGroupChat(ctx, actorID, title, ids, sys)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("create group chat", err)
	}

	detail, err := s.detail(ctx, chat)
	if err != nil {
		return models.ChatDetail{}, err
	}
	emit(realtime.EventChatCreated, s.bus.EmitToUsers(ids, realtime.EventChatCreated, detail))
	return detail, nil
}

// List returns the user's chats, most recently active first.
func (s *ChatService) List(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	chats, err := s.chats.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, mapRepoErr("list chats", err)
	}
	return chats, nil
}

// Get returns a chat the viewer belongs to.
func (s *ChatService) Get(ctx context.Context, chatID, viewerID int) (models.ChatDetail, error) {
	d, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionViewChat, ChatID: chatID, ActorID: viewerID})
	if err != nil {
		return models.ChatDetail{}, err
	}
	return s.detail(ctx, d.Chat)
}

// EnsureMember fails unless userID belongs to chatID.
func (s *ChatService) EnsureMember(ctx context.Context, chatID, userID int) error {
	_, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionViewChat, ChatID: chatID, ActorID: userID})
	return err
}

// UpdateGroup edits the title and/or avatar of a group.
func (s *ChatService) UpdateGroup(ctx context.Context, chatID, actorID int, patch models.GroupPatch) (models.ChatDetail, error) {
	if !patch.HasChanges() {
		return models.ChatDetail{}, apperr.Validation("nothing to update")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return models.ChatDetail{}, apperr.Validation("title is required")
		}
		patch.Title = &title
	}

	d, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionEditChat, ChatID: chatID, ActorID: actorID})
	if err != nil {
		return models.ChatDetail{}, err
	}
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("get actor", err)
	}

	var sys []models.Message
	if patch.Title != nil && !sameString(patch.Title, d.Chat.Title) {
		extra := map[string]any{"newTitle": *patch.Title}
		if d.Chat.Title != nil {
			extra["oldTitle"] = *d.Chat.Title
		}
		sys = append(sys, systemmsg.New(chatID, systemmsg.TitleChanged, &actor, nil, extra))
	}
	if patch.AvatarURL != nil {
		sys = append(sys, systemmsg.New(chatID, systemmsg.AvatarChanged, &actor, nil, map[string]any{"avatarUrl": *patch.AvatarURL}))
	}

	res, err := s.chats.UpdateChat(ctx, chatID, patch, sys)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("update chat", err)
	}
	if res.PreviousAvatarMediaID != nil && !sameString(res.PreviousAvatarMediaID, res.Chat.AvatarMediaID) {
		releaseMedia(ctx, s.media, *res.PreviousAvatarMediaID)
	}

	detail, err := s.detail(ctx, res.Chat)
	if err != nil {
		return models.ChatDetail{}, err
	}
	for _, msg := range res.Messages {
		emit(realtime.EventReceiveMessage, s.bus.EmitToChatAndUsers(ctx, chatID, actorID, realtime.EventReceiveMessage, msg))
	}
	emit(realtime.EventChatUpdated, s.bus.EmitToChatAndUsers(ctx, chatID, actorID, realtime.EventChatUpdated, detail))
	return detail, nil
}

// Delete removes a group with everything in it. Former members are told through
// chat_deleted, whose meta describes the action; the record itself is not kept because the
// chat's messages go with it.
func (s *ChatService) Delete(ctx context.Context, chatID, actorID int) error {
	d, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionDeleteChat, ChatID: chatID, ActorID: actorID})
	if err != nil {
		return err
	}
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return mapRepoErr("get actor", err)
	}
	members, err := s.chats.ListMemberIDs(ctx, chatID)
	if err != nil {
		return mapRepoErr("list members", err)
	}

	extra := map[string]any{}
	if d.Chat.Title != nil {
		extra["title"] = *d.Chat.Title
	}
	sys := systemmsg.New(chatID, systemmsg.ChatDeleted, &actor, nil, extra)

	mediaIDs, err := s.chats.DeleteChat(ctx, chatID)
	if err != nil {
		return mapRepoErr("delete chat", err)
	}
	releaseMedia(ctx, s.media, mediaIDs...)

	payload := realtime.ChatDeletedPayload{ChatID: chatID, Meta: sys.Meta}
	emit(realtime.EventChatDeleted, s.bus.EmitToChat(chatID, realtime.EventChatDeleted, payload))
	emit(realtime.EventChatDeleted, s.bus.EmitToUsers(members, realtime.EventChatDeleted, payload))
	for _, id := range members {
		emit("unsubscribe", s.bus.UnsubscribeUser(chatID, id))
	}
	return nil
}

// Leave removes the actor from a group. The owner cannot leave.
func (s *ChatService) Leave(ctx context.Context, chatID, actorID int) error {
	if _, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionLeaveChat, ChatID: chatID, ActorID: actorID}); err != nil {
		return err
	}
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return mapRepoErr("get actor", err)
	}
	msg, err := s.chats.RemoveParticipant(ctx, chatID, actorID, systemmsg.New(chatID, systemmsg.MemberLeft, &actor, nil, nil))
	if err != nil {
		return mapRepoErr("leave chat", err)
	}
	_, err = s.announceMembership(ctx, chatID, actorID, msg, actorID)
	return err
}

// AddParticipant adds targetID to a group as MEMBER.
func (s *ChatService) AddParticipant(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error) {
	d, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionAddParticipant, ChatID: chatID, ActorID: actorID, TargetID: targetID})
	if err != nil {
		return models.ChatDetail{}, err
	}
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("get actor", err)
	}
	msg, err := s.chats.AddParticipant(ctx, chatID, targetID, systemmsg.New(chatID, systemmsg.MemberAdded, &actor, d.TargetUser, nil))
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("add participant", err)
	}
	detail, err := s.announceMembership(ctx, chatID, actorID, msg, 0)
	if err != nil {
		return models.ChatDetail{}, err
	}
	emit(realtime.EventChatCreated, s.bus.EmitToUser(targetID, realtime.EventChatCreated, detail))
	return detail, nil
}

// RemoveParticipant removes a non-owner member from a group.
func (s *ChatService) RemoveParticipant(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error) {
	d, err := s.guard.Require(ctx, guard.Request{Action: guard.ActionRemoveParticipant, ChatID: chatID, ActorID: actorID, TargetID: targetID})
	if err != nil {
		return models.ChatDetail{}, err
	}
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("get actor", err)
	}
	msg, err := s.chats.RemoveParticipant(ctx, chatID, targetID, systemmsg.New(chatID, systemmsg.MemberRemoved, &actor, d.TargetUser, nil))
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("remove participant", err)
	}
	return s.announceMembership(ctx, chatID, actorID, msg, targetID)
}

// PromoteAdmin makes a MEMBER an ADMIN. Owner only.
func (s *ChatService) PromoteAdmin(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error) {
	return s.changeRole(ctx, guard.ActionPromoteAdmin, chatID, actorID, targetID, models.RoleMember, models.RoleAdmin, systemmsg.PromotedToAdmin)
}

// DemoteAdmin turns an ADMIN back into a MEMBER. Owner only.
func (s *ChatService) DemoteAdmin(ctx context.Context, chatID, actorID, targetID int) (models.ChatDetail, error) {
	return s.changeRole(ctx, guard.ActionDemoteAdmin, chatID, actorID, targetID, models.RoleAdmin, models.RoleMember, systemmsg.DemotedFromAdmin)
}

func (s *ChatService) changeRole(ctx context.Context, action guard.Action, chatID, actorID, targetID int, from, to models.Role, sysAction string) (models.ChatDetail, error) {
	d, err := s.guard.Require(ctx, guard.Request{Action: action, ChatID: chatID, ActorID: actorID, TargetID: targetID})
	if err != nil {
		return models.ChatDetail{}, err
	}
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("get actor", err)
	}
	msg, err := s.chats.UpdateParticipantRole(ctx, chatID, targetID, from, to, systemmsg.New(chatID, sysAction, &actor, d.TargetUser, nil))
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("update role", err)
	}
	return s.announceMembership(ctx, chatID, actorID, msg, 0)
}

// announceMembership broadcasts the system message and the refreshed chat. A removed user is
// taken off the chat channel first and then told on its own user channel.
func (s *ChatService) announceMembership(ctx context.Context, chatID, actorID int, msg models.Message, removedID int) (models.ChatDetail, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("get chat", err)
	}
	detail, err := s.detail(ctx, chat)
	if err != nil {
		return models.ChatDetail{}, err
	}

	initiator := actorID
	if removedID != 0 {
		emit("unsubscribe", s.bus.UnsubscribeUser(chatID, removedID))
		emit(realtime.EventRemovedFromChat, s.bus.EmitToUser(removedID, realtime.EventRemovedFromChat, realtime.RemovedFromChatPayload{ChatID: chatID}))
		if removedID == actorID {
			// a leaver only hears removed_from_chat
			initiator = 0
		}
	}
	emit(realtime.EventReceiveMessage, s.bus.EmitToChatAndUsers(ctx, chatID, initiator, realtime.EventReceiveMessage, msg))
	emit(realtime.EventChatUpdated, s.bus.EmitToChatAndUsers(ctx, chatID, initiator, realtime.EventChatUpdated, detail))
	return detail, nil
}

func (s *ChatService) detail(ctx context.Context, chat models.Chat) (models.ChatDetail, error) {
	participants, err := s.chats.ListParticipants(ctx, chat.ID)
	if err != nil {
		return models.ChatDetail{}, mapRepoErr("list participants", err)
	}
	return models.ChatDetail{Chat: chat, Participants: participants}, nil
}

func uniqueIDs(ids []int) []int {
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
