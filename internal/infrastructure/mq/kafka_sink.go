package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"battlemap_server/internal/config"
)

// KafkaEventSink 把会话事件写入 kafka，key 为 sessionId，同一会话落在同一分区保证顺序
type KafkaEventSink struct {
	Producer *kafka.Writer
}

// NewKafkaEventSink 按配置创建异步生产者
func NewKafkaEventSink(cfg config.KafkaConfig) *KafkaEventSink {
	return &KafkaEventSink{
		Producer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.HostPort),
			Topic:                  cfg.EventTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           cfg.Timeout * time.Second,
			RequiredAcks:           kafka.RequireNone,
			AllowAutoTopicCreation: false,
			// 异步写入，WriteMessages 立即返回，失败在 Completion 里记录
			Async: true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					zap.L().Warn("会话事件写入 kafka 失败", zap.Int("count", len(messages)), zap.Error(err))
				}
			},
		},
	}
}

// Publish 写入一条事件
func (k *KafkaEventSink) Publish(ctx context.Context, event SessionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.Producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionId),
		Value: value,
		Time:  event.At,
	})
}

// Close 刷出缓冲并关闭
func (k *KafkaEventSink) Close() error {
	return k.Producer.Close()
}

var _ EventSink = (*KafkaEventSink)(nil)
