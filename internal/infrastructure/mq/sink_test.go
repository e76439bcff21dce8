package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"battlemap_server/internal/config"
)

func TestLogEventSinkWritesDebugEntry(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogEventSink(zap.New(core))

	err := sink.Publish(context.Background(), SessionEvent{
		SessionId: "s1",
		Type:      "turn-changed",
		UserId:    "u1",
		Payload:   json.RawMessage(`{"currentTurn":1,"round":1}`),
		At:        time.Now(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	entries := logs.FilterMessage("session event").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["type"]; got != "turn-changed" {
		t.Fatalf("type field = %v", got)
	}
}

func TestNewEventSinkSelectsByMode(t *testing.T) {
	if _, ok := NewEventSink("channel", nil).(*LogEventSink); !ok {
		t.Fatal("channel mode should use the log sink")
	}
	cfg := config.Default().KafkaConfig
	cfg.HostPort = "127.0.0.1:1"
	sink := NewEventSink("kafka", func() EventSink { return NewKafkaEventSink(cfg) })
	ks, ok := sink.(*KafkaEventSink)
	if !ok {
		t.Fatal("kafka mode should use the kafka sink")
	}
	if ks.Producer.Topic != cfg.EventTopic || !ks.Producer.Async {
		t.Fatalf("unexpected writer config: topic=%s async=%v", ks.Producer.Topic, ks.Producer.Async)
	}
	_ = sink.Close()
}
