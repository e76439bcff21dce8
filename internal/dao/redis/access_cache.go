package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"battlemap_server/pkg/errorx"
)

// ParticipantAccess 网关做权限判断需要的参与者信息
type ParticipantAccess struct {
	Role                string `json:"role"`
	AssignedCharacterId string `json:"assigned_character_id,omitempty"`
	IsOwner             bool   `json:"is_owner"`
}

// AccessCache 参与者权限缓存（cache-aside）
// 读：缓存命中直接返回；未命中由调用方回源后 Put
// 写：角色变更、分配角色、踢人后 Invalidate
type AccessCache struct {
	cache AsyncCacheService
	ttl   time.Duration
}

// NewAccessCache 创建参与者权限缓存
func NewAccessCache(cache AsyncCacheService, ttl time.Duration) *AccessCache {
	return &AccessCache{cache: cache, ttl: ttl}
}

func accessKey(sessionId, userId string) string {
	return fmt.Sprintf("battlemap:access:%s:%s", sessionId, userId)
}

// Get 返回缓存的权限信息，未命中时 ok 为 false
func (a *AccessCache) Get(ctx context.Context, sessionId, userId string) (*ParticipantAccess, bool, error) {
	raw, err := a.cache.Get(ctx, accessKey(sessionId, userId))
	if err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}
	var access ParticipantAccess
	if err := json.Unmarshal([]byte(raw), &access); err != nil {
		// 脏数据当作未命中
		zap.L().Warn("参与者权限缓存反序列化失败", zap.String("session_id", sessionId), zap.String("user_id", userId), zap.Error(err))
		return nil, false, nil
	}
	return &access, true, nil
}

// Put 写入缓存
func (a *AccessCache) Put(ctx context.Context, sessionId, userId string, access *ParticipantAccess) error {
	raw, err := json.Marshal(access)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeCacheError, "序列化参与者权限")
	}
	return a.cache.Set(ctx, accessKey(sessionId, userId), string(raw), a.ttl)
}

// PutAsync 异步写缓存，回源后调用，不阻塞请求路径
func (a *AccessCache) PutAsync(sessionId, userId string, access *ParticipantAccess) {
	a.cache.SubmitTask(func(ctx context.Context) {
		if err := a.Put(ctx, sessionId, userId, access); err != nil {
			zap.L().Warn("写入参与者权限缓存失败", zap.String("session_id", sessionId), zap.String("user_id", userId), zap.Error(err))
		}
	})
}

// Invalidate 删除单个参与者的缓存
func (a *AccessCache) Invalidate(ctx context.Context, sessionId, userId string) error {
	return a.cache.Delete(ctx, accessKey(sessionId, userId))
}

// InvalidateSession 删除整个会话的缓存
func (a *AccessCache) InvalidateSession(ctx context.Context, sessionId string) error {
	return a.cache.DeleteByPattern(ctx, fmt.Sprintf("battlemap:access:%s:*", sessionId))
}
