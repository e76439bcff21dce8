package realtime

import (
	"context"
	"time"

	"battlemap_server/internal/service/permission"
	"battlemap_server/internal/service/registry"
)

// Access 做权限判断需要的参与者信息
type Access struct {
	Role                permission.Role
	AssignedCharacterId string
	IsOwner             bool
}

// ParticipantUpdate 参与者部分更新，nil 字段不修改
type ParticipantUpdate struct {
	DisplayName         *string
	Role                *permission.Role
	AssignedCharacterId *string
	IsConnected         *bool
	LastSeen            *time.Time
}

// Store 网关依赖的持久层
// 网关不直接接触 ORM，测试里可以用内存实现替换
type Store interface {
	// LoadSession 读取会话及其参与者；不存在时返回 errorx.ErrSessionNotFound
	LoadSession(ctx context.Context, sessionId string) (*registry.Persisted, error)
	// GetParticipantAccess 读取参与者角色；没有参与者记录时返回 nil, nil
	GetParticipantAccess(ctx context.Context, sessionId, userId string) (*Access, error)
	CreateParticipant(ctx context.Context, sessionId string, p registry.Participant) error
	UpdateParticipant(ctx context.Context, sessionId, userId string, upd ParticipantUpdate) error
	RemoveParticipant(ctx context.Context, sessionId, userId string) error
	TouchSessionActivity(ctx context.Context, sessionId string, at time.Time) error
	UpdateTurn(ctx context.Context, sessionId string, turn registry.TurnState) error
}
