package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/telemetry"
)

// Debug is what the debug endpoints can reach. Nil fields answer 503.
type Debug struct {
	Audit  *telemetry.AuditEmitter
	Online interface{ OnlineUserIDs() []int }
}

// RegisterDebugRoutes mounts /debug when enabled.
func RegisterDebugRoutes(router gin.IRouter, d Debug, enabled bool) {
	if !enabled {
		return
	}
	debug := router.Group("/debug")

	debug.GET("/audit-test", func(c *gin.Context) {
		if d.Audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		d.Audit.Emit(c.Request.Context(), auditRecord(c, telemetry.AuditDebugPing, 0, 0))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "requestId": requestID(c)})
	})

	debug.GET("/sessions", func(c *gin.Context) {
		if d.Online == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session registry not configured"})
			return
		}
		ids := d.Online.OnlineUserIDs()
		c.JSON(http.StatusOK, gin.H{"onlineUsers": ids, "count": len(ids)})
	})
}
