// Package metrics 网关指标（OpenTelemetry）
// 未启用导出时仍然注册一个本地 MeterProvider，记录函数全部可安全调用
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"

	"battlemap_server/internal/config"
)

type gatewayMetrics struct {
	events      metric.Int64Counter
	denials     metric.Int64Counter
	drops       metric.Int64Counter
	connections metric.Int64UpDownCounter
	sweeps      metric.Int64Counter
}

var (
	metricsMu sync.RWMutex
	current   *gatewayMetrics
)

// Init 初始化 MeterProvider；调用方负责在退出时 Shutdown
func Init(ctx context.Context, cfg *config.Config) (*sdkmetric.MeterProvider, error) {
	var mp *sdkmetric.MeterProvider
	if !cfg.MetricsConfig.Enabled {
		mp = sdkmetric.NewMeterProvider()
		zap.L().Info("otel 指标导出未启用")
	} else {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.MetricsConfig.Endpoint)}
		if cfg.MetricsConfig.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		res, err := resource.New(ctx,
			resource.WithAttributes(
				attribute.String("service.name", cfg.AppName),
				attribute.String("deployment.environment", cfg.Mode),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("create metric resource: %w", err)
		}
		interval := time.Duration(cfg.MetricsConfig.IntervalSeconds) * time.Second
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		)
		zap.L().Info("otel 指标导出已启用", zap.String("endpoint", cfg.MetricsConfig.Endpoint))
	}
	otel.SetMeterProvider(mp)
	if err := Register(mp); err != nil {
		return nil, err
	}
	return mp, nil
}

// Register 在给定 provider 上创建网关用到的 instrument，测试里配合 ManualReader 使用
func Register(mp metric.MeterProvider) error {
	meter := mp.Meter("battlemap_server/realtime")
	events, err := meter.Int64Counter("realtime.events", metric.WithDescription("accepted inbound events"))
	if err != nil {
		return err
	}
	denials, err := meter.Int64Counter("realtime.permission_denied")
	if err != nil {
		return err
	}
	drops, err := meter.Int64Counter("realtime.dropped_messages", metric.WithDescription("outbound frames dropped on full send buffer"))
	if err != nil {
		return err
	}
	conns, err := meter.Int64UpDownCounter("realtime.connections")
	if err != nil {
		return err
	}
	sweeps, err := meter.Int64Counter("session.expired_removed")
	if err != nil {
		return err
	}

	metricsMu.Lock()
	current = &gatewayMetrics{
		events:      events,
		denials:     denials,
		drops:       drops,
		connections: conns,
		sweeps:      sweeps,
	}
	metricsMu.Unlock()
	return nil
}

func load() *gatewayMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return current
}

// RecordEvent 记录一条已处理的入站事件
func RecordEvent(event string) {
	if m := load(); m != nil {
		m.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", event)))
	}
}

// RecordDenied 记录一次权限拒绝
func RecordDenied(action string) {
	if m := load(); m != nil {
		m.denials.Add(context.Background(), 1, metric.WithAttributes(attribute.String("action", action)))
	}
}

// RecordDrop 慢客户端丢帧
func RecordDrop() {
	if m := load(); m != nil {
		m.drops.Add(context.Background(), 1)
	}
}

// ConnectionOpened / ConnectionClosed 在线连接数
func ConnectionOpened() {
	if m := load(); m != nil {
		m.connections.Add(context.Background(), 1)
	}
}

func ConnectionClosed() {
	if m := load(); m != nil {
		m.connections.Add(context.Background(), -1)
	}
}

// RecordExpired 清理任务删除的会话数
func RecordExpired(n int) {
	if m := load(); m != nil && n > 0 {
		m.sweeps.Add(context.Background(), int64(n))
	}
}
