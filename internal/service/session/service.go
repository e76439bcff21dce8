// Package session 会话的 HTTP 业务：创建、邀请码加入、读取、修改、删除和过期清理
// 同时提供网关使用的持久层实现 Store
package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"battlemap_server/internal/config"
	"battlemap_server/internal/dao/mysql"
	myredis "battlemap_server/internal/dao/redis"
	"battlemap_server/internal/dto/request"
	"battlemap_server/internal/dto/respond"
	"battlemap_server/internal/model"
	"battlemap_server/internal/service/joincode"
	"battlemap_server/internal/service/permission"
	"battlemap_server/internal/service/registry"
	"battlemap_server/pkg/errorx"
	"battlemap_server/pkg/util/jwt"
)

// LiveSessions 进程内网关需要配合的操作，由 realtime.Hub 实现
type LiveSessions interface {
	// EvictSessions 断开并移除会话
	EvictSessions(ctx context.Context, sessionIds []string) error
	// RefreshSession 用最新的持久化数据覆盖已加载的会话
	RefreshSession(ctx context.Context, p registry.Persisted) error
}

// sessionService 会话业务逻辑实现
// 通过构造函数注入 Repository、权限缓存和网关
type sessionService struct {
	repos  *mysql.Repositories
	access *myredis.AccessCache
	live   LiveSessions
	cfg    config.SessionConfig
	now    func() time.Time
}

// NewSessionService 构造函数，access 和 live 都可以为 nil
func NewSessionService(repos *mysql.Repositories, access *myredis.AccessCache, live LiveSessions, cfg config.SessionConfig) *sessionService {
	return &sessionService{
		repos:  repos,
		access: access,
		live:   live,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (s *sessionService) inactivity() time.Duration {
	return time.Duration(s.cfg.InactivityHours) * time.Hour
}

// CreateSession 创建会话，创建者成为 DM
func (s *sessionService) CreateSession(ctx context.Context, req request.CreateSessionRequest) (*respond.CreateSessionRespond, error) {
	repos := s.repos.WithContext(ctx)

	// 1. 地图必须存在
	battleMap, err := repos.BattleMap.FindByUuid(req.MapId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.New(errorx.CodeNotFound, "Map not found")
		}
		zap.L().Error("查询地图失败", zap.String("map_id", req.MapId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	// 2. 生成唯一邀请码
	code, err := joincode.GenerateUnique(ctx, func(_ context.Context, c string) (bool, error) {
		return repos.Session.ExistsByJoinCode(c)
	})
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeJoinCodeExhausted {
			zap.L().Error("邀请码生成重试耗尽", zap.String("map_id", req.MapId))
			return nil, err
		}
		zap.L().Error("生成邀请码失败", zap.String("map_id", req.MapId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	now := s.now()
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("Session for %s", battleMap.Name)
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.OwnerId
	}
	row := &model.Session{
		Uuid:         uuid.NewString(),
		Name:         name,
		JoinCode:     code,
		MapId:        battleMap.Uuid,
		OwnerId:      req.OwnerId,
		IsActive:     true,
		CurrentTurn:  0,
		Round:        1,
		ExpiresAt:    sql.NullTime{Time: now.Add(time.Duration(s.cfg.MaxDurationHours) * time.Hour), Valid: true},
		LastActivity: now,
	}
	owner := model.SessionParticipant{
		SessionId:   row.Uuid,
		UserId:      req.OwnerId,
		DisplayName: displayName,
		Role:        string(permission.RoleDM),
		LastSeen:    now,
		JoinedAt:    now,
	}

	// 3. 会话和创建者在同一事务中写入
	err = s.repos.WithContext(ctx).Transaction(func(tx *mysql.Repositories) error {
		if err := tx.Session.Create(row); err != nil {
			return err
		}
		return tx.Participant.Create(&owner)
	})
	if err != nil {
		zap.L().Error("创建会话失败", zap.String("map_id", req.MapId), zap.String("owner_id", req.OwnerId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	token, err := jwt.GenerateSessionToken(req.OwnerId, row.Uuid)
	if err != nil {
		zap.L().Error("签发会话 token 失败", zap.String("session_id", row.Uuid), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	zap.L().Info("会话已创建",
		zap.String("session_id", row.Uuid),
		zap.String("join_code", code),
		zap.String("owner_id", req.OwnerId),
	)
	return &respond.CreateSessionRespond{
		Session: toSessionRespond(row, battleMap.Name, []model.SessionParticipant{owner}),
		Token:   token,
	}, nil
}

// resolveJoinCode 格式校验、查找、过期判断
func (s *sessionService) resolveJoinCode(repos *mysql.Repositories, code string) (*model.Session, error) {
	code = joincode.Normalize(code)
	if !joincode.IsValidFormat(code) {
		return nil, errorx.ErrInvalidJoinCode
	}
	row, err := repos.Session.FindByJoinCode(code)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrSessionNotFound
		}
		zap.L().Error("按邀请码查询会话失败", zap.String("join_code", code), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if row.IsExpiredAt(s.now(), s.inactivity()) {
		return nil, errorx.ErrSessionExpired
	}
	return row, nil
}

// ValidateJoinCode 只校验不加入，返回公开信息
func (s *sessionService) ValidateJoinCode(ctx context.Context, code string) (*respond.JoinCodePreviewRespond, error) {
	repos := s.repos.WithContext(ctx)
	row, err := s.resolveJoinCode(repos, code)
	if err != nil {
		return nil, err
	}
	count, err := repos.Participant.CountBySession(row.Uuid)
	if err != nil {
		zap.L().Error("统计参与者失败", zap.String("session_id", row.Uuid), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return &respond.JoinCodePreviewRespond{
		Valid: true,
		Session: respond.SessionPreview{
			Id:               row.Uuid,
			Name:             row.Name,
			MapName:          s.mapName(repos, row.MapId),
			ParticipantCount: int(count),
			IsActive:         row.IsActive,
			ExpiresAt:        expiresAt(row),
		},
	}, nil
}

// JoinByCode 邀请码加入会话
// 已是参与者则视为重连；新用户以 PLAYER 加入，受人数上限约束
// 在线状态由 websocket 连接维护，这里不修改 is_connected
func (s *sessionService) JoinByCode(ctx context.Context, req request.JoinSessionRequest) (*respond.JoinSessionRespond, error) {
	repos := s.repos.WithContext(ctx)
	row, err := s.resolveJoinCode(repos, req.JoinCode)
	if err != nil {
		return nil, err
	}
	if !row.IsActive {
		return nil, errorx.ErrSessionInactive
	}

	now := s.now()
	rejoined := false
	err = repos.Transaction(func(tx *mysql.Repositories) error {
		existing, err := tx.Participant.Find(row.Uuid, req.UserId)
		if err == nil {
			rejoined = true
			updates := map[string]interface{}{"last_seen": now}
			if req.DisplayName != "" && req.DisplayName != existing.DisplayName {
				updates["display_name"] = req.DisplayName
			}
			return tx.Participant.UpdateFields(row.Uuid, req.UserId, updates)
		}
		if !errorx.IsNotFound(err) {
			return err
		}

		count, err := tx.Participant.CountBySession(row.Uuid)
		if err != nil {
			return err
		}
		if int(count) >= s.cfg.MaxParticipants {
			return errorx.ErrSessionFull
		}
		displayName := req.DisplayName
		if displayName == "" {
			displayName = "Anonymous"
		}
		return tx.Participant.Create(&model.SessionParticipant{
			SessionId:   row.Uuid,
			UserId:      req.UserId,
			DisplayName: displayName,
			Role:        string(permission.RolePlayer),
			LastSeen:    now,
			JoinedAt:    now,
		})
	})
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeSessionFull {
			return nil, err
		}
		zap.L().Error("加入会话失败", zap.String("session_id", row.Uuid), zap.String("user_id", req.UserId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if err := repos.Session.TouchActivity(row.Uuid, now); err != nil {
		zap.L().Warn("刷新会话活动时间失败", zap.String("session_id", row.Uuid), zap.Error(err))
	}
	row.LastActivity = now

	parts, err := repos.Participant.FindBySession(row.Uuid)
	if err != nil {
		zap.L().Error("查询参与者列表失败", zap.String("session_id", row.Uuid), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	var me respond.ParticipantRespond
	for _, p := range parts {
		if p.UserId == req.UserId {
			me = toParticipantRespond(p)
		}
	}

	token, err := jwt.GenerateSessionToken(req.UserId, row.Uuid)
	if err != nil {
		zap.L().Error("签发会话 token 失败", zap.String("session_id", row.Uuid), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	msg := "Joined session successfully"
	if rejoined {
		msg = "Reconnected to session"
	}
	zap.L().Info("用户通过邀请码加入会话",
		zap.String("session_id", row.Uuid),
		zap.String("user_id", req.UserId),
		zap.Bool("rejoined", rejoined),
	)
	return &respond.JoinSessionRespond{
		Session:     toSessionRespond(row, s.mapName(repos, row.MapId), parts),
		Participant: me,
		Token:       token,
		Message:     msg,
	}, nil
}

// GetSession 会话详情
func (s *sessionService) GetSession(ctx context.Context, sessionId string) (*respond.SessionRespond, error) {
	repos := s.repos.WithContext(ctx)
	row, parts, err := s.load(repos, sessionId)
	if err != nil {
		return nil, err
	}
	out := toSessionRespond(row, s.mapName(repos, row.MapId), parts)
	return &out, nil
}

// UpdateSession 修改会话名称、激活状态和回合，需要 canControlSession
func (s *sessionService) UpdateSession(ctx context.Context, req request.UpdateSessionRequest) (*respond.SessionRespond, error) {
	repos := s.repos.WithContext(ctx)
	row, err := s.findSession(repos, req.SessionId)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(repos, row, req.UserId, permission.CanControlSession); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.CurrentTurn != nil {
		updates["current_turn"] = *req.CurrentTurn
	}
	if req.Round != nil {
		updates["round"] = *req.Round
	}
	if len(updates) > 0 {
		updates["last_activity"] = s.now()
		if err := repos.Session.UpdateFields(req.SessionId, updates); err != nil {
			zap.L().Error("更新会话失败", zap.String("session_id", req.SessionId), zap.Error(err))
			return nil, errorx.ErrServerBusy
		}
	}

	row, parts, err := s.load(repos, req.SessionId)
	if err != nil {
		return nil, err
	}
	if s.live != nil && len(updates) > 0 {
		if err := s.live.RefreshSession(ctx, *toPersisted(row, parts)); err != nil {
			zap.L().Warn("同步网关会话状态失败", zap.String("session_id", req.SessionId), zap.Error(err))
		}
	}
	zap.L().Info("会话已更新", zap.String("session_id", req.SessionId), zap.String("user_id", req.UserId), zap.Int("fields", len(updates)))
	out := toSessionRespond(row, s.mapName(repos, row.MapId), parts)
	return &out, nil
}

// DeleteSession 删除会话，只有创建者可以操作
func (s *sessionService) DeleteSession(ctx context.Context, req request.DeleteSessionRequest) error {
	repos := s.repos.WithContext(ctx)
	row, err := s.findSession(repos, req.SessionId)
	if err != nil {
		return err
	}
	if row.OwnerId != req.UserId {
		zap.L().Warn("非创建者尝试删除会话", zap.String("session_id", req.SessionId), zap.String("user_id", req.UserId))
		return errorx.ErrPermissionDenied
	}
	if err := s.purge(ctx, []string{req.SessionId}); err != nil {
		zap.L().Error("删除会话失败", zap.String("session_id", req.SessionId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	zap.L().Info("会话已删除", zap.String("session_id", req.SessionId))
	return nil
}

// purge 删除数据库记录、权限缓存，并断开网关里的连接
func (s *sessionService) purge(ctx context.Context, ids []string) error {
	err := s.repos.WithContext(ctx).Transaction(func(tx *mysql.Repositories) error {
		if err := tx.Participant.DeleteBySessions(ids); err != nil {
			return err
		}
		return tx.Session.DeleteByUuids(ids)
	})
	if err != nil {
		return err
	}
	if s.access != nil {
		for _, id := range ids {
			if err := s.access.InvalidateSession(ctx, id); err != nil {
				zap.L().Warn("删除会话权限缓存失败", zap.String("session_id", id), zap.Error(err))
			}
		}
	}
	if s.live != nil {
		if err := s.live.EvictSessions(ctx, ids); err != nil {
			zap.L().Warn("网关移除会话失败", zap.Strings("session_ids", ids), zap.Error(err))
		}
	}
	return nil
}

func (s *sessionService) findSession(repos *mysql.Repositories, sessionId string) (*model.Session, error) {
	row, err := repos.Session.FindByUuid(sessionId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrSessionNotFound
		}
		zap.L().Error("查询会话失败", zap.String("session_id", sessionId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return row, nil
}

func (s *sessionService) load(repos *mysql.Repositories, sessionId string) (*model.Session, []model.SessionParticipant, error) {
	row, err := s.findSession(repos, sessionId)
	if err != nil {
		return nil, nil, err
	}
	parts, err := repos.Participant.FindBySession(sessionId)
	if err != nil {
		zap.L().Error("查询参与者列表失败", zap.String("session_id", sessionId), zap.Error(err))
		return nil, nil, errorx.ErrServerBusy
	}
	return row, parts, nil
}

// authorize 按参与者角色和创建者身份判断权限
func (s *sessionService) authorize(repos *mysql.Repositories, row *model.Session, userId string, perm permission.Permission) error {
	role := permission.RoleNone
	part, err := repos.Participant.Find(row.Uuid, userId)
	switch {
	case err == nil:
		role = permission.ParseRole(part.Role)
	case !errorx.IsNotFound(err):
		zap.L().Error("查询参与者失败", zap.String("session_id", row.Uuid), zap.String("user_id", userId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	if !permission.Effective(role, row.OwnerId == userId, perm) {
		return errorx.ErrPermissionDenied
	}
	return nil
}

// mapName 地图已删除时返回空串
func (s *sessionService) mapName(repos *mysql.Repositories, mapId string) string {
	m, err := repos.BattleMap.FindByUuid(mapId)
	if err != nil {
		if !errorx.IsNotFound(err) {
			zap.L().Warn("查询地图名称失败", zap.String("map_id", mapId), zap.Error(err))
		}
		return ""
	}
	return m.Name
}
