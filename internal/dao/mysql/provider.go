// Package mysql 提供 Repository 层聚合与构造
package mysql

import (
	"context"

	"gorm.io/gorm"

	"battlemap_server/internal/dao/mysql/battlemap"
	"battlemap_server/internal/dao/mysql/participant"
	"battlemap_server/internal/dao/mysql/session"
)

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db          *gorm.DB
	Session     SessionRepository     // 会话 Repository
	Participant ParticipantRepository // 参与者 Repository
	BattleMap   BattleMapRepository   // 地图 Repository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Session:     session.NewSessionRepository(db),
		Participant: participant.NewParticipantRepository(db),
		BattleMap:   battlemap.NewBattleMapRepository(db),
	}
}

// WithContext 返回绑定了 ctx 的 Repositories，查询受 ctx 超时控制
func (r *Repositories) WithContext(ctx context.Context) *Repositories {
	return NewRepositories(r.db.WithContext(ctx))
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
