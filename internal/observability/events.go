package observability

import (
	"context"
	"time"
)

// WSRoutingKey carries socket session lifecycle events.
const WSRoutingKey = "ws_events.sessions"

// Session lifecycle event names.
const (
	SessionConnect    = "ws_connect"
	SessionDisconnect = "ws_disconnect"
	SessionError      = "ws_error"
)

type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

// SessionEvent is one connect, disconnect or failure of a socket session.
type SessionEvent struct {
	Name     string
	ConnID   string
	UserID   int
	Client   Client
	TraceID  string
	Duration time.Duration
	Reason   string
}

func (e SessionEvent) Envelope() EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: e.Name,
		Payload: map[string]any{
			"ws": map[string]any{
				"conn_id":     e.ConnID,
				"user_id":     e.UserID,
				"duration_ms": e.Duration.Milliseconds(),
				"reason":      e.Reason,
			},
			"identity": map[string]any{
				"user_id":   e.UserID,
				"device_id": e.Client.DeviceID,
				"ip":        e.Client.IP,
			},
		},
	}
}

// Headers returns the correlation headers of an event; empty ids are left out.
func Headers(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// Publisher is the event sink; rabbitmq.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide event sink. A nil publisher disables events.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishSession counts the event and hands it to the sink. Publish failures are counted
// and returned; callers treat them as non-fatal.
func PublishSession(ctx context.Context, ev SessionEvent) error {
	wsEventsTotal.WithLabelValues(ev.Name).Inc()
	if defaultPublisher == nil {
		return nil
	}
	if err := defaultPublisher.Publish(ctx, WSRoutingKey, ev.Envelope(), Headers(ev.Client.RequestID, ev.TraceID)); err != nil {
		amqpPublishErrorsTotal.Inc()
		return err
	}
	return nil
}
