// Package snowflake 聊天消息 id
package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init 设置节点号，只有第一次调用生效；超出 0-1023 时用 1
func Init(machineID int64) {
	nodeOnce.Do(func() {
		if machineID < 0 || machineID > 1023 {
			zap.L().Warn("雪花节点号超出范围，使用 1", zap.Int64("machine_id", machineID))
			machineID = 1
		}
		n, err := snowflake.NewNode(machineID)
		if err != nil {
			zap.L().Fatal("初始化雪花节点失败", zap.Error(err))
		}
		node = n
	})
}

// GenerateIDString 字符串形式，避免前端大整数精度丢失
// 未调用 Init 时按节点 1 初始化
func GenerateIDString() string {
	Init(1)
	return node.Generate().String()
}
