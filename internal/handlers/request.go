package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-core/internal/observability"
	"chat-core/internal/telemetry"
)

const requestIDKey = "requestID"

// RequestID gives every request an id, keeping a caller supplied X-Request-Id, and echoes it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Request-Id", requestID(c))
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	id := observability.ClientFromRequest(c.Request).RequestID
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	return id
}

// auditRecord attributes action to the authenticated user, if any.
func auditRecord(c *gin.Context, action string, chatID, targetID int) telemetry.AuditRecord {
	rec := telemetry.AuditRecord{Action: action, ChatID: chatID, TargetID: targetID, RequestID: requestID(c)}
	if userID := c.GetInt("userID"); userID != 0 {
		rec.ActorID = &userID
	}
	return rec
}
