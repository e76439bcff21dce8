// Package battlemap 地图的创建、读取与整体覆盖保存
package battlemap

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"battlemap_server/internal/dao/mysql"
	"battlemap_server/internal/dto/request"
	"battlemap_server/internal/dto/respond"
	"battlemap_server/internal/model"
	"battlemap_server/pkg/errorx"
)

const (
	defaultSize     = 20
	defaultGridSize = 32
	emptyMapData    = `{"terrain":[],"entities":[]}`
)

var ErrMapNotFound = errorx.New(errorx.CodeNotFound, "Map not found")

type mapService struct {
	repos *mysql.Repositories
}

// NewMapService 构造函数
func NewMapService(repos *mysql.Repositories) *mapService {
	return &mapService{repos: repos}
}

// CreateMap 创建地图，未传尺寸时使用 20x20、32px
func (s *mapService) CreateMap(ctx context.Context, req request.CreateMapRequest) (*respond.MapRespond, error) {
	m := &model.BattleMap{
		Uuid:     uuid.NewString(),
		Name:     req.Name,
		OwnerId:  req.OwnerId,
		Width:    orDefault(req.Width, defaultSize),
		Height:   orDefault(req.Height, defaultSize),
		GridSize: orDefault(req.GridSize, defaultGridSize),
		Data:     req.Data,
	}
	if m.Data == "" {
		m.Data = emptyMapData
	}
	if err := s.repos.WithContext(ctx).BattleMap.Create(m); err != nil {
		zap.L().Error("创建地图失败", zap.String("owner_id", req.OwnerId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	zap.L().Info("地图已创建", zap.String("map_id", m.Uuid), zap.String("owner_id", m.OwnerId))
	return toMapRespond(m), nil
}

// GetMap 读取地图
func (s *mapService) GetMap(ctx context.Context, mapId string) (*respond.MapRespond, error) {
	m, err := s.repos.WithContext(ctx).BattleMap.FindByUuid(mapId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, ErrMapNotFound
		}
		zap.L().Error("查询地图失败", zap.String("map_id", mapId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return toMapRespond(m), nil
}

// UpdateMapData 整体覆盖地图数据，只有地图创建者可以保存
func (s *mapService) UpdateMapData(ctx context.Context, req request.UpdateMapRequest) error {
	repos := s.repos.WithContext(ctx)
	m, err := repos.BattleMap.FindByUuid(req.MapId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return ErrMapNotFound
		}
		zap.L().Error("查询地图失败", zap.String("map_id", req.MapId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	if m.OwnerId != req.UserId {
		return errorx.ErrPermissionDenied
	}
	if err := repos.BattleMap.UpdateData(req.MapId, req.Data); err != nil {
		zap.L().Error("保存地图失败", zap.String("map_id", req.MapId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	return nil
}

func toMapRespond(m *model.BattleMap) *respond.MapRespond {
	out := &respond.MapRespond{
		Id:        m.Uuid,
		Name:      m.Name,
		OwnerId:   m.OwnerId,
		Width:     m.Width,
		Height:    m.Height,
		GridSize:  m.GridSize,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if json.Valid([]byte(m.Data)) {
		out.Data = json.RawMessage(m.Data)
	}
	return out
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
