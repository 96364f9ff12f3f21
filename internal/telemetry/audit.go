package telemetry

import (
	"context"
	"log"
	"time"
)

// Audited actions.
const (
	AuditChatDeleted        = "chat.deleted"
	AuditChatUpdated        = "chat.updated"
	AuditParticipantAdded   = "participant.added"
	AuditParticipantRemoved = "participant.removed"
	AuditAdminPromoted      = "admin.promoted"
	AuditAdminDemoted       = "admin.demoted"
	AuditDebugPing          = "debug.ping"
)

// Publisher is the audit sink; *rabbitmq.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditRecord is one administrative action taken on a chat.
type AuditRecord struct {
	Action    string
	ChatID    int
	TargetID  int
	ActorID   *int
	RequestID string
}

type AuditEnvelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Service       string    `json:"service"`
	Environment   string    `json:"environment"`
	RequestID     string    `json:"request_id,omitempty"`
	Action        string    `json:"action"`
	ActorID       *int      `json:"actor_id,omitempty"`
	ChatID        int       `json:"chat_id,omitempty"`
	TargetID      int       `json:"target_id,omitempty"`
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit publishes rec. Failures are logged; auditing never fails the request.
func (e *AuditEmitter) Emit(ctx context.Context, rec AuditRecord) {
	if e == nil || e.publisher == nil {
		return
	}
	envelope := AuditEnvelope{
		SchemaVersion: 2,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC(),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     rec.RequestID,
		Action:        rec.Action,
		ActorID:       rec.ActorID,
		ChatID:        rec.ChatID,
		TargetID:      rec.TargetID,
	}

	headers := map[string]string{}
	if rec.RequestID != "" {
		headers["x-request-id"] = rec.RequestID
	}
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		log.Printf("audit publish failed: action=%s chat_id=%d request_id=%s err=%v", rec.Action, rec.ChatID, rec.RequestID, err)
	}
}
