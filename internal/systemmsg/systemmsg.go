// Package systemmsg builds the SYSTEM message rows that record chat state changes.
package systemmsg

import "chat-core/internal/models"

const (
	GroupCreated     = "group_created"
	MemberAdded      = "member_added"
	MemberRemoved    = "member_removed"
	MemberLeft       = "member_left"
	PromotedToAdmin  = "promoted_to_admin"
	DemotedFromAdmin = "demoted_from_admin"
	TitleChanged     = "title_changed"
	AvatarChanged    = "avatar_changed"
	ChatDeleted      = "chat_deleted"
)

// New returns an unsaved SYSTEM message for chatID. actor and target may be nil;
// extra keys are merged into meta and never override the reserved ones.
func New(chatID int, action string, actor, target *models.User, extra map[string]any) models.Message {
	meta := models.Meta{}
	for k, v := range extra {
		meta[k] = v
	}
	meta["action"] = action

	msg := models.Message{
		ChatID: chatID,
		Type:   models.MessageTypeSystem,
		Text:   "",
		Meta:   meta,
	}
	if actor != nil {
		id := actor.ID
		msg.FromID = &id
		meta["userId"] = actor.ID
		meta["userName"] = actor.Username
	}
	if target != nil {
		meta["targetId"] = target.ID
		meta["targetName"] = target.Username
	}
	return msg
}
