// Package mq 会话事件流水
// 网关把每个已生效的事件追加到 EventSink，kafka 模式写入 topic，channel 模式只写日志
package mq

import (
	"context"
	"encoding/json"
	"time"
)

// SessionEvent 一条会话事件
type SessionEvent struct {
	SessionId string          `json:"sessionId"`
	Type      string          `json:"type"`
	UserId    string          `json:"userId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// EventSink 事件流水接口
// 实现必须不阻塞调用方太久，网关事件循环直接调用 Publish
type EventSink interface {
	Publish(ctx context.Context, event SessionEvent) error
	Close() error
}
