package request

// UpdateMapRequest 覆盖地图数据（last-write-wins）
// 使用位置:
//   - internal/handler/map_handler.go: UpdateMap
//   - internal/service/battlemap/service.go: UpdateMapData
type UpdateMapRequest struct {
	MapId  string `json:"mapId" binding:"required"`
	UserId string `json:"userId" binding:"required"`
	Data   string `json:"data" binding:"required,json"`
}
