package handler

import (
	"battlemap_server/internal/dto/request"
	"battlemap_server/internal/service"

	"github.com/gin-gonic/gin"
)

// MapHandler 地图请求处理器
type MapHandler struct {
	mapSvc service.MapService
}

// NewMapHandler 创建地图处理器实例
func NewMapHandler(mapSvc service.MapService) *MapHandler {
	return &MapHandler{mapSvc: mapSvc}
}

// CreateMap POST /map/create
func (h *MapHandler) CreateMap(c *gin.Context) {
	var req request.CreateMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.mapSvc.CreateMap(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// GetMap GET /map/:id
func (h *MapHandler) GetMap(c *gin.Context) {
	data, err := h.mapSvc.GetMap(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// UpdateMap POST /map/update
func (h *MapHandler) UpdateMap(c *gin.Context) {
	var req request.UpdateMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.mapSvc.UpdateMapData(c.Request.Context(), req); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}
