package metrics

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestRecordersReachProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	if err := Register(mp); err != nil {
		t.Fatalf("register: %v", err)
	}

	RecordEvent("chat-message")
	RecordEvent("next-turn")
	RecordDenied("map-update")
	RecordDrop()
	ConnectionOpened()
	ConnectionOpened()
	ConnectionClosed()
	RecordExpired(3)
	RecordExpired(0)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	checks := map[string]int64{
		"realtime.events":            2,
		"realtime.permission_denied": 1,
		"realtime.dropped_messages":  1,
		"realtime.connections":       1,
		"session.expired_removed":    3,
	}
	for name, want := range checks {
		if got := sumOf(t, rm, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}
