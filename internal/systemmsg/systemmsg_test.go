package systemmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-core/internal/models"
)

func TestNewBuildsSystemRow(t *testing.T) {
	actor := &models.User{ID: 1, Username: "alice"}
	target := &models.User{ID: 2, Username: "bob"}

	msg := New(7, MemberAdded, actor, target, nil)

	assert.Equal(t, 7, msg.ChatID)
	assert.Equal(t, models.MessageTypeSystem, msg.Type)
	assert.Equal(t, "", msg.Text)
	require.NotNil(t, msg.FromID)
	assert.Equal(t, 1, *msg.FromID)
	assert.Equal(t, MemberAdded, msg.Meta.Action())
	assert.Equal(t, 1, msg.Meta["userId"])
	assert.Equal(t, "alice", msg.Meta["userName"])
	assert.Equal(t, 2, msg.Meta["targetId"])
	assert.Equal(t, "bob", msg.Meta["targetName"])
}

func TestNewMergesExtraWithoutOverridingReservedKeys(t *testing.T) {
	actor := &models.User{ID: 3, Username: "carol"}

	msg := New(1, TitleChanged, actor, nil, map[string]any{
		"oldTitle": "a",
		"newTitle": "b",
		"action":   "spoofed",
	})

	assert.Equal(t, TitleChanged, msg.Meta.Action())
	assert.Equal(t, "a", msg.Meta["oldTitle"])
	assert.Equal(t, "b", msg.Meta["newTitle"])
	assert.NotContains(t, msg.Meta, "targetId")
}

func TestNewWithoutActor(t *testing.T) {
	msg := New(1, ChatDeleted, nil, nil, nil)

	assert.Nil(t, msg.FromID)
	assert.NotContains(t, msg.Meta, "userId")
	assert.Equal(t, ChatDeleted, msg.Meta.Action())
}
