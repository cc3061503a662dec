package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

// publishedCount reads paygate_events_published_total for topic and result.
func publishedCount(t *testing.T, topic, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "paygate_events_published_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["topic"] == topic && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// ============================================================================
// Event envelope
// ============================================================================

func TestNewEvent_Fields(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data := map[string]string{"gateway": "stripe"}

	e, err := NewEvent("intent_created", "pi_1", "payment_intent", "paygate", data, now)
	require.NoError(t, err)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, "intent_created", e.EventType)
	assert.Equal(t, "pi_1", e.AggregateID)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, now, e.Timestamp)

	var got map[string]string
	require.NoError(t, e.UnmarshalData(&got))
	assert.Equal(t, data, got)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("x", "a", "t", "s", make(chan int), time.Now())
	assert.Error(t, err)
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	e, err := NewEvent("failover", "pi_2", "payment_intent", "paygate", nil, time.Now())
	require.NoError(t, err)
	e.WithCorrelationID("corr-1").WithMetadata("gateway", "tilled")

	raw, err := e.Marshal()
	require.NoError(t, err)
	back, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "corr-1", back.CorrelationID)
	assert.Equal(t, "tilled", back.Metadata["gateway"])

	_, err = UnmarshalEvent([]byte("{broken"))
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "payments.gateway.failover", Topic("gateway", "failover"))
}

// ============================================================================
// Header carrier
// ============================================================================

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "1", c.Get("a"))
	assert.Empty(t, c.Get("missing"))

	c.Set("a", "2")
	c.Set("b", "3")
	assert.Equal(t, "2", c.Get("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
	assert.Len(t, headers, 2)
}

// ============================================================================
// Producer
// ============================================================================

func TestProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, []string{"localhost:9092"}, testLogger())

	e, err := NewEvent("intent_created", "pi_1", "payment_intent", "paygate", nil, time.Now())
	require.NoError(t, err)
	e.WithCorrelationID("corr-9")

	topic := Topic("gateway", "intent_created")
	before := publishedCount(t, topic, resultOK)
	require.NoError(t, p.Publish(context.Background(), topic, e))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "pi_1", string(msg.Key))
	assert.Equal(t, "intent_created", header(msg, "event_type"))
	assert.Equal(t, "corr-9", header(msg, "correlation_id"))
	assert.Equal(t, before+1, publishedCount(t, topic, resultOK))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishInjectsTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	w := &recordingWriter{}
	p := newProducer(w, nil, testLogger())
	e, _ := NewEvent("failover", "pi_1", "payment_intent", "paygate", nil, time.Now())
	require.NoError(t, p.Publish(ctx, "t", e))

	assert.Contains(t, header(w.msgs[0], "traceparent"), span.SpanContext().TraceID().String())
}

func TestProducer_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := newProducer(w, nil, testLogger())
	e, _ := NewEvent("x", "a", "t", "s", nil, time.Now())

	before := publishedCount(t, "err-topic", resultError)
	err := p.Publish(context.Background(), "err-topic", e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to err-topic")
	assert.Equal(t, before+1, publishedCount(t, "err-topic", resultError))
}

func TestNewProducer_NoConnection(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}
