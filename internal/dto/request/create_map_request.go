package request

// CreateMapRequest 创建地图请求
// 使用位置:
//   - internal/handler/map_handler.go: CreateMap
//   - internal/service/battlemap/service.go: CreateMap
type CreateMapRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	OwnerId  string `json:"ownerId" binding:"required,max=64"`
	Width    int    `json:"width" binding:"omitempty,min=1,max=200"`
	Height   int    `json:"height" binding:"omitempty,min=1,max=200"`
	GridSize int    `json:"gridSize" binding:"omitempty,min=8,max=256"`
	Data     string `json:"data" binding:"omitempty,json"`
}
