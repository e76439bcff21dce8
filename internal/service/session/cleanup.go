package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"battlemap_server/internal/infrastructure/metrics"
	"battlemap_server/pkg/errorx"
)

// CleanupExpired 删除已过期或长时间无活动的会话，返回删除数量
func (s *sessionService) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()
	var inactiveBefore time.Time
	if d := s.inactivity(); d > 0 {
		inactiveBefore = now.Add(-d)
	}

	rows, err := s.repos.WithContext(ctx).Session.FindExpired(now, inactiveBefore)
	if err != nil {
		zap.L().Error("查询过期会话失败", zap.Error(err))
		return 0, errorx.ErrServerBusy
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Uuid)
	}
	if err := s.purge(ctx, ids); err != nil {
		zap.L().Error("删除过期会话失败", zap.Int("count", len(ids)), zap.Error(err))
		return 0, errorx.ErrServerBusy
	}
	metrics.RecordExpired(len(ids))
	zap.L().Info("已清理过期会话", zap.Int("count", len(ids)))
	return len(ids), nil
}

// RunCleanup 启动后先清理一次，之后按 interval 周期执行，ctx 结束时返回
func (s *sessionService) RunCleanup(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Duration(s.cfg.CleanupIntervalMinutes) * time.Minute
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.CleanupExpired(ctx); err != nil {
			zap.L().Warn("本轮过期会话清理失败", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
