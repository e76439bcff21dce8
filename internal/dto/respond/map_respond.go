package respond

import (
	"encoding/json"
	"time"
)

// MapRespond 地图信息
// 使用位置:
//   - internal/service/battlemap/service.go: CreateMap, GetMap
type MapRespond struct {
	Id        string          `json:"id"`
	Name      string          `json:"name"`
	OwnerId   string          `json:"ownerId"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	GridSize  int             `json:"gridSize"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// StatsRespond 网关运行状态
type StatsRespond struct {
	Sessions    int `json:"sessions"`
	Connections int `json:"connections"`
	Presence    int `json:"presence"`
}
