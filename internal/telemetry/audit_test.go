package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
)

type published struct {
	key     string
	event   any
	headers map[string]string
}

type capturePublisher struct {
	got []published
	err error
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.got = append(p.got, published{routingKey, event, headers})
	return p.err
}

func TestAuditEmitterEnvelope(t *testing.T) {
	pub := &capturePublisher{}
	emitter := NewAuditEmitter(pub, "audit.chat", "chat-core", "test")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	emitter.now = func() time.Time { return at }
	actor := 7

	emitter.Emit(context.Background(), AuditRecord{Action: AuditParticipantRemoved, ChatID: 3, TargetID: 9, ActorID: &actor, RequestID: "req-1"})

	require.Len(t, pub.got, 1)
	assert.Equal(t, "audit.chat", pub.got[0].key)
	assert.Equal(t, map[string]string{"x-request-id": "req-1"}, pub.got[0].headers)
	env := pub.got[0].event.(AuditEnvelope)
	assert.Equal(t, "audit_log", env.EventType)
	assert.Equal(t, "chat-core", env.Service)
	assert.Equal(t, "test", env.Environment)
	assert.Equal(t, AuditParticipantRemoved, env.Action)
	assert.Equal(t, 3, env.ChatID)
	assert.Equal(t, 9, env.TargetID)
	require.NotNil(t, env.ActorID)
	assert.Equal(t, 7, *env.ActorID)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.True(t, env.OccurredAt.Equal(at))
}

func TestAuditEmitterTolerates(t *testing.T) {
	var nilEmitter *AuditEmitter
	nilEmitter.Emit(context.Background(), AuditRecord{Action: AuditDebugPing})

	pub := &capturePublisher{err: errors.New("broker down")}
	NewAuditEmitter(pub, "audit.chat", "chat-core", "test").Emit(context.Background(), AuditRecord{Action: AuditDebugPing})
	require.Len(t, pub.got, 1)
	assert.Nil(t, pub.got[0].event.(AuditEnvelope).ActorID)
	assert.Empty(t, pub.got[0].headers)
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "chat-core", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingWithEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// the grpc exporter dials lazily, so no collector has to be listening
	shutdown, err := SetupTracing(context.Background(), "127.0.0.1:4317", "chat-core", "test")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()
	ro, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	res := ro.Resource()
	assert.Equal(t, semconv.SchemaURL, res.SchemaURL())
	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "chat-core", name.AsString())
	env, ok := res.Set().Value(semconv.DeploymentEnvironmentKey)
	require.True(t, ok)
	assert.Equal(t, "test", env.AsString())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	// flushing to an absent collector may fail; shutdown only has to return
	_ = shutdown(ctx)
}
