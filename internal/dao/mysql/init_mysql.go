// Package mysql 提供数据访问层的初始化
// 负责建立 MySQL 连接、自动迁移表结构、初始化 Repository 层
package mysql

import (
	"fmt"

	"battlemap_server/internal/config"
	"battlemap_server/internal/model"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Init 初始化数据库连接并返回 Repository 层实例
func Init() *Repositories {
	conf := config.GetConfig()

	// 格式：user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.MysqlConfig.User,
		conf.MysqlConfig.Password,
		conf.MysqlConfig.Host,
		conf.MysqlConfig.Port,
		conf.MysqlConfig.DatabaseName,
	)

	db, err := gorm.Open(mysqldriver.Open(dsn), &gorm.Config{})
	if err != nil {
		zap.L().Fatal("连接数据库失败", zap.Error(err))
	}

	if err = Migrate(db); err != nil {
		zap.L().Fatal("数据库迁移失败", zap.Error(err))
	}

	return NewRepositories(db)
}

// Migrate 自动迁移表结构，测试里对 sqlite 也调用它
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Session{},            // 会话表
		&model.SessionParticipant{}, // 参与者表
		&model.BattleMap{},          // 地图表
	)
}
