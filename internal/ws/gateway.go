package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chat-core/internal/middleware"
	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/presence"
	"chat-core/internal/realtime"
)

const maxFrameBytes = 64 << 10

// ChatOps is the chat surface reachable from a socket.
type ChatOps interface {
	CreateDirect(ctx context.Context, actorID, peerID int) (models.ChatDetail, bool, error)
	EnsureMember(ctx context.Context, chatID, userID int) error
}

// MessageOps is the message surface reachable from a socket.
type MessageOps interface {
	Create(ctx context.Context, in models.NewMessage) (models.Message, error)
	Edit(ctx context.Context, in models.MessageEdit) (models.Message, error)
	Delete(ctx context.Context, messageID int64, chatID, actorID int) (realtime.MessageDeletedPayload, error)
	MarkRead(ctx context.Context, chatID, readerID int) (int64, error)
}

// Gateway authenticates socket connections, keeps their channel subscriptions and routes
// inbound events to the services.
type Gateway struct {
	hub       *realtime.Hub
	bus       *realtime.Dispatcher
	tokens    middleware.TokenValidator
	chats     ChatOps
	messages  MessageOps
	presence  presence.Store
	keepalive realtime.Keepalive
	now       func() time.Time
}

func NewGateway(hub *realtime.Hub, bus *realtime.Dispatcher, tokens middleware.TokenValidator, chats ChatOps, messages MessageOps, presenceStore presence.Store) *Gateway {
	if presenceStore == nil {
		presenceStore = presence.Noop{}
	}
	return &Gateway{
		hub:       hub,
		bus:       bus,
		tokens:    tokens,
		chats:     chats,
		messages:  messages,
		presence:  presenceStore,
		keepalive: realtime.DefaultKeepalive(),
		now:       time.Now,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates with a bearer header or a token query parameter, upgrades the
// connection and serves it until the client goes away.
func (g *Gateway) Handle(c *gin.Context) {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := g.tokens.Validate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, span := otel.Tracer("chat-core/ws").Start(c.Request.Context(), "ws.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.Int("user.id", userID)),
	)
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: user_id=%d err=%v", userID, err)
		return
	}
	info := realtime.ConnInfo{
		UserID:  userID,
		Client:  observability.ClientFromRequest(c.Request),
		TraceID: span.SpanContext().TraceID().String(),
	}
	g.serve(ctx, conn, realtime.NewSession(userID, conn, info))
}

func (g *Gateway) serve(ctx context.Context, conn *websocket.Conn, session *realtime.Session) {
	first, err := g.hub.Register(session)
	if err != nil {
		log.Printf("websocket register failed: conn_id=%s err=%v", session.ID, err)
		_ = conn.Close()
		return
	}
	session.Keepalive = g.keepalive
	go session.WritePump()

	observability.SessionOpened()
	g.publishLifecycle(ctx, session.Info, observability.SessionConnect, "")
	if first {
		g.touch(ctx, session.UserID)
		if err := g.bus.Broadcast(realtime.EventUserOnline, realtime.PresencePayload{UserID: session.UserID}); err != nil {
			log.Printf("broadcast failed: op=%s err=%v", realtime.EventUserOnline, err)
		}
	}

	reason := g.readLoop(ctx, conn, session)

	last := g.hub.Unregister(session)
	observability.SessionClosed()
	g.publishLifecycle(ctx, session.Info, observability.SessionDisconnect, reason)
	if last {
		g.touch(ctx, session.UserID)
		if err := g.bus.Broadcast(realtime.EventUserOffline, realtime.PresencePayload{UserID: session.UserID}); err != nil {
			log.Printf("broadcast failed: op=%s err=%v", realtime.EventUserOffline, err)
		}
	}
}

// readLoop handles frames until the connection fails and returns the close reason. A peer
// that stops answering pings hits the read deadline.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, session *realtime.Session) string {
	conn.SetReadLimit(maxFrameBytes)
	if wait := g.keepalive.PongWait; wait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.publishLifecycle(ctx, session.Info, observability.SessionError, err.Error())
			}
			return err.Error()
		}
		g.HandleEvent(ctx, session, data)
	}
}

func (g *Gateway) touch(ctx context.Context, userID int) {
	if err := g.presence.Touch(ctx, userID, g.now()); err != nil {
		log.Printf("presence touch failed: user_id=%d err=%v", userID, err)
	}
}

func (g *Gateway) publishLifecycle(ctx context.Context, info realtime.ConnInfo, event, reason string) {
	ev := observability.SessionEvent{
		Name:    event,
		ConnID:  info.ConnID,
		UserID:  info.UserID,
		Client:  info.Client,
		TraceID: info.TraceID,
		Reason:  reason,
	}
	if event != observability.SessionConnect {
		ev.Duration = g.now().Sub(info.ConnectedAt)
	}
	if err := observability.PublishSession(ctx, ev); err != nil {
		log.Printf("session event publish failed: event=%s conn_id=%s err=%v", event, info.ConnID, err)
	}
}
