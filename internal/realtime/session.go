package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-core/internal/observability"
)

const sendBuffer = 64

// Conn is the subset of *websocket.Conn a session writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Keepalive holds the socket heartbeat timings. PingPeriod must stay below PongWait so a
// live peer always answers before its read deadline passes.
type Keepalive struct {
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

func DefaultKeepalive() Keepalive {
	return Keepalive{
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
	}
}

// ConnInfo describes where a session came from; it is attached to lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Client      observability.Client
	TraceID     string
	ConnectedAt time.Time
}

// Session is one authenticated socket. Frames are queued on a bounded outbox and written
// by WritePump; a full outbox or a closed session drops the frame.
type Session struct {
	ID        string
	UserID    int
	Info      ConnInfo
	Keepalive Keepalive

	conn      Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// chats is guarded by the owning Hub's mutex.
	chats map[int]struct{}
}

// NewSession wraps conn for userID. An empty info.ConnID is replaced by a fresh id.
func NewSession(userID int, conn Conn, info ConnInfo) *Session {
	if info.ConnID == "" {
		info.ConnID = uuid.NewString()
	}
	if info.ConnectedAt.IsZero() {
		info.ConnectedAt = time.Now()
	}
	info.UserID = userID
	return &Session{
		ID:        info.ConnID,
		UserID:    userID,
		Info:      info,
		Keepalive: DefaultKeepalive(),
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		chats:     make(map[int]struct{}),
	}
}

// Deliver queues frame without blocking and reports whether it was accepted.
func (s *Session) Deliver(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Send encodes and queues a single event for this session only.
func (s *Session) Send(event string, data any) bool {
	frame, err := Encode(event, data)
	if err != nil {
		log.Printf("ws encode failed: event=%s err=%v", event, err)
		return false
	}
	return s.Deliver(frame)
}

// Close stops the write pump. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// WritePump drains the outbox into the connection and pings the peer every
// Keepalive.PingPeriod. It returns once the session closes or a write fails, then closes the
// connection.
func (s *Session) WritePump() {
	var tick <-chan time.Time
	if s.Keepalive.PingPeriod > 0 {
		ticker := time.NewTicker(s.Keepalive.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer s.conn.Close()
	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(s.writeDeadline())
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("websocket write error: conn_id=%s user_id=%d err=%v", s.ID, s.UserID, err)
				s.Close()
				return
			}
		case <-tick:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, s.writeDeadline()); err != nil {
				log.Printf("websocket ping failed: conn_id=%s user_id=%d err=%v", s.ID, s.UserID, err)
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) writeDeadline() time.Time {
	if s.Keepalive.WriteWait <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.Keepalive.WriteWait)
}
