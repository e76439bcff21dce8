package mq

import (
	"context"

	"go.uber.org/zap"
)

// LogEventSink channel 模式下的流水，只记 debug 日志
type LogEventSink struct {
	logger *zap.Logger
}

// NewLogEventSink logger 为 nil 时使用全局 logger
func NewLogEventSink(logger *zap.Logger) *LogEventSink {
	return &LogEventSink{logger: logger}
}

func (l *LogEventSink) Publish(_ context.Context, event SessionEvent) error {
	lg := l.logger
	if lg == nil {
		lg = zap.L()
	}
	lg.Debug("session event",
		zap.String("session_id", event.SessionId),
		zap.String("type", event.Type),
		zap.String("user_id", event.UserId),
		zap.ByteString("payload", event.Payload),
	)
	return nil
}

func (l *LogEventSink) Close() error { return nil }

// NewEventSink 根据 messageMode 选择实现
func NewEventSink(mode string, kafkaSink func() EventSink) EventSink {
	if mode == "kafka" && kafkaSink != nil {
		return kafkaSink()
	}
	return NewLogEventSink(nil)
}

var _ EventSink = (*LogEventSink)(nil)
