package session

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"battlemap_server/internal/dao/mysql"
	myredis "battlemap_server/internal/dao/redis"
	"battlemap_server/internal/model"
	"battlemap_server/internal/service/permission"
	"battlemap_server/internal/service/realtime"
	"battlemap_server/internal/service/registry"
	"battlemap_server/pkg/errorx"
)

// Store 网关的持久层实现
// 角色查询走 Redis cache-aside，写参与者后删除缓存；access 为 nil 时直接查库
type Store struct {
	repos  *mysql.Repositories
	access *myredis.AccessCache
}

// NewStore 构造函数
func NewStore(repos *mysql.Repositories, access *myredis.AccessCache) *Store {
	return &Store{repos: repos, access: access}
}

var _ realtime.Store = (*Store)(nil)

// LoadSession 读取会话行和参与者
func (s *Store) LoadSession(ctx context.Context, sessionId string) (*registry.Persisted, error) {
	repos := s.repos.WithContext(ctx)
	row, err := repos.Session.FindByUuid(sessionId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrSessionNotFound
		}
		return nil, err
	}
	parts, err := repos.Participant.FindBySession(sessionId)
	if err != nil {
		return nil, err
	}
	return toPersisted(row, parts), nil
}

// GetParticipantAccess 先查缓存，未命中回源数据库后异步回填
// 没有参与者记录时返回 nil, nil，不缓存空结果
func (s *Store) GetParticipantAccess(ctx context.Context, sessionId, userId string) (*realtime.Access, error) {
	if s.access != nil {
		cached, ok, err := s.access.Get(ctx, sessionId, userId)
		if err != nil {
			zap.L().Warn("读取参与者权限缓存失败，回源数据库",
				zap.String("session_id", sessionId),
				zap.String("user_id", userId),
				zap.Error(err),
			)
		} else if ok {
			return &realtime.Access{
				Role:                permission.ParseRole(cached.Role),
				AssignedCharacterId: cached.AssignedCharacterId,
				IsOwner:             cached.IsOwner,
			}, nil
		}
	}

	repos := s.repos.WithContext(ctx)
	part, err := repos.Participant.Find(sessionId, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	row, err := repos.Session.FindByUuid(sessionId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrSessionNotFound
		}
		return nil, err
	}

	access := &realtime.Access{
		Role:                permission.ParseRole(part.Role),
		AssignedCharacterId: part.AssignedCharacterId.String,
		IsOwner:             row.OwnerId == userId,
	}
	if s.access != nil {
		s.access.PutAsync(sessionId, userId, &myredis.ParticipantAccess{
			Role:                string(access.Role),
			AssignedCharacterId: access.AssignedCharacterId,
			IsOwner:             access.IsOwner,
		})
	}
	return access, nil
}

// CreateParticipant 新建参与者记录
func (s *Store) CreateParticipant(ctx context.Context, sessionId string, p registry.Participant) error {
	row := &model.SessionParticipant{
		SessionId:           sessionId,
		UserId:              p.UserId,
		DisplayName:         p.DisplayName,
		Role:                string(p.Role),
		AssignedCharacterId: nullString(p.AssignedCharacterId),
		IsConnected:         p.IsConnected,
		LastSeen:            p.LastSeen,
		JoinedAt:            p.JoinedAt,
	}
	if err := s.repos.WithContext(ctx).Participant.Create(row); err != nil {
		return err
	}
	s.invalidate(ctx, sessionId, p.UserId)
	return nil
}

// UpdateParticipant 部分更新；角色或分配角色变化时删除缓存
func (s *Store) UpdateParticipant(ctx context.Context, sessionId, userId string, upd realtime.ParticipantUpdate) error {
	updates := make(map[string]interface{})
	if upd.DisplayName != nil {
		updates["display_name"] = *upd.DisplayName
	}
	if upd.Role != nil {
		updates["role"] = string(*upd.Role)
	}
	if upd.AssignedCharacterId != nil {
		updates["assigned_character_id"] = nullString(*upd.AssignedCharacterId)
	}
	if upd.IsConnected != nil {
		updates["is_connected"] = *upd.IsConnected
	}
	if upd.LastSeen != nil {
		updates["last_seen"] = *upd.LastSeen
	}
	if err := s.repos.WithContext(ctx).Participant.UpdateFields(sessionId, userId, updates); err != nil {
		return err
	}
	if upd.Role != nil || upd.AssignedCharacterId != nil {
		s.invalidate(ctx, sessionId, userId)
	}
	return nil
}

// RemoveParticipant 删除参与者（踢人）
func (s *Store) RemoveParticipant(ctx context.Context, sessionId, userId string) error {
	if err := s.repos.WithContext(ctx).Participant.Delete(sessionId, userId); err != nil {
		return err
	}
	s.invalidate(ctx, sessionId, userId)
	return nil
}

// TouchSessionActivity 写回最近活动时间
func (s *Store) TouchSessionActivity(ctx context.Context, sessionId string, at time.Time) error {
	return s.repos.WithContext(ctx).Session.TouchActivity(sessionId, at)
}

// UpdateTurn 写回回合
func (s *Store) UpdateTurn(ctx context.Context, sessionId string, turn registry.TurnState) error {
	return s.repos.WithContext(ctx).Session.UpdateTurn(sessionId, turn.CurrentTurn, turn.Round)
}

func (s *Store) invalidate(ctx context.Context, sessionId, userId string) {
	if s.access == nil {
		return
	}
	if err := s.access.Invalidate(ctx, sessionId, userId); err != nil {
		zap.L().Warn("删除参与者权限缓存失败",
			zap.String("session_id", sessionId),
			zap.String("user_id", userId),
			zap.Error(err),
		)
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
