package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	routingKey string
	event      any
	headers    map[string]string
	err        error
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.routingKey, p.event, p.headers = routingKey, event, headers
	return p.err
}

func counterValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestClientFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		wantIP  string
	}{
		{name: "forwarded first hop", headers: map[string]string{"X-Forwarded-For": " 10.0.0.1, 10.0.0.2"}, remote: "1.1.1.1:80", wantIP: "10.0.0.1"},
		{name: "real ip", headers: map[string]string{"X-Real-Ip": "10.0.0.9"}, remote: "1.1.1.1:80", wantIP: "10.0.0.9"},
		{name: "peer address", remote: "192.168.1.5:51234", wantIP: "192.168.1.5"},
		{name: "peer without port", remote: "pipe", wantIP: "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.wantIP, ClientFromRequest(req).IP)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("X-Device-Id", "ios-1")
	req.Header.Set("X-Request-Id", "req-1")
	client := ClientFromRequest(req)
	assert.Equal(t, "ios-1", client.DeviceID)
	assert.Equal(t, "req-1", client.RequestID)
}

func TestHeadersSkipEmptyIDs(t *testing.T) {
	assert.Empty(t, Headers("", ""))
	assert.Equal(t, map[string]string{"x-request-id": "r1", "trace_id": "t1"}, Headers("r1", "t1"))
}

func TestPublishSession(t *testing.T) {
	pub := &capturePublisher{}
	SetPublisher(pub)
	t.Cleanup(func() { SetPublisher(nil) })

	ev := SessionEvent{
		Name:     SessionDisconnect,
		ConnID:   "c1",
		UserID:   7,
		Client:   Client{DeviceID: "web", IP: "10.0.0.1", RequestID: "r1"},
		TraceID:  "t1",
		Duration: 1500 * time.Millisecond,
		Reason:   "going away",
	}
	require.NoError(t, PublishSession(context.Background(), ev))

	assert.Equal(t, WSRoutingKey, pub.routingKey)
	assert.Equal(t, map[string]string{"x-request-id": "r1", "trace_id": "t1"}, pub.headers)
	envelope, ok := pub.event.(EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, "ws_events", envelope.EventType)
	assert.Equal(t, SessionDisconnect, envelope.EventName)
	payload := envelope.Payload.(map[string]any)
	assert.Equal(t, int64(1500), payload["ws"].(map[string]any)["duration_ms"])
	assert.Equal(t, "10.0.0.1", payload["identity"].(map[string]any)["ip"])

	pub.err = errors.New("broker down")
	before := counterValue(t, amqpPublishErrorsTotal)
	assert.Error(t, PublishSession(context.Background(), ev))
	assert.Equal(t, before+1, counterValue(t, amqpPublishErrorsTotal))
}

func TestPublishSessionWithoutPublisher(t *testing.T) {
	SetPublisher(nil)
	assert.NoError(t, PublishSession(context.Background(), SessionEvent{Name: SessionConnect}))
}

func TestHTTPMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMetricsMiddleware())
	router.GET("/chats/:chat_id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/chats/1", "/chats/2"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, float64(2), counterValue(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/chats/:chat_id", "200")))
}

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/grpc.health.v1.Health/Check")
	assert.Equal(t, "grpc.health.v1.Health", service)
	assert.Equal(t, "Check", method)

	service, method = splitFullMethod("broken")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "unknown", method)
}
