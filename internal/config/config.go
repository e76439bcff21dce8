// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName string `toml:"appName"` // 应用名称，用于日志标识等
	Host    string `toml:"host"`    // 服务器监听地址，如 "0.0.0.0"
	Port    int    `toml:"port"`    // 服务器监听端口，如 8000
	Mode    string `toml:"mode"`    // 运行模式：dev / release
	TLS     bool   `toml:"tls"`     // 是否开启 HTTP -> HTTPS 重定向
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host      string `toml:"host"`      // Redis 服务器地址
	Port      int    `toml:"port"`      // Redis 端口，默认 6379
	Password  string `toml:"password"`  // Redis 密码，无密码留空
	Db        int    `toml:"db"`        // Redis 数据库编号，默认 0
	Workers   int    `toml:"workers"`   // 异步缓存任务 worker 数
	TaskQueue int    `toml:"taskQueue"` // 异步缓存任务缓冲区大小
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 消息队列配置
// 会话事件流水（join/kick/turn 等）写入 EventTopic，channel 模式下只写日志
type KafkaConfig struct {
	MessageMode string        `toml:"messageMode"` // 消息模式："channel" 或 "kafka"
	HostPort    string        `toml:"hostPort"`    // Kafka 服务器地址，如 "localhost:9092"
	EventTopic  string        `toml:"eventTopic"`  // 会话事件主题
	Timeout     time.Duration `toml:"timeout"`     // 超时时间（秒）
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Session Token 有效期（分钟）
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023，分布式部署时每台机器需唯一
}

// SessionConfig 会话规则
type SessionConfig struct {
	MaxDurationHours       int `toml:"maxDurationHours"`       // 会话最长存活时间（小时）
	MaxParticipants        int `toml:"maxParticipants"`        // 单个会话人数上限
	CleanupIntervalMinutes int `toml:"cleanupIntervalMinutes"` // 过期会话清理间隔（分钟）
	InactivityHours        int `toml:"inactivityHours"`        // 无活动多久视为过期（小时），0 表示不启用
}

// RealtimeConfig websocket 网关配置
type RealtimeConfig struct {
	RoleLookupTimeoutMs int   `toml:"roleLookupTimeoutMs"` // 单次角色查询超时（毫秒）
	WriteWaitSeconds    int   `toml:"writeWaitSeconds"`    // 单帧写超时
	PongWaitSeconds     int   `toml:"pongWaitSeconds"`     // 等待 pong 的最长时间
	MaxMessageBytes     int64 `toml:"maxMessageBytes"`     // 单帧最大字节数
	PersistWorkers      int   `toml:"persistWorkers"`      // 持久化队列 worker 数，1 保证顺序
	PersistBuffer       int   `toml:"persistBuffer"`       // 持久化队列缓冲区
	RequireToken        bool  `toml:"requireToken"`        // websocket 握手是否强制校验 token
}

// MetricsConfig OpenTelemetry 指标导出配置
type MetricsConfig struct {
	Enabled         bool   `toml:"enabled"`
	Endpoint        string `toml:"endpoint"` // OTLP gRPC 地址，如 "localhost:4317"
	Insecure        bool   `toml:"insecure"`
	IntervalSeconds int    `toml:"intervalSeconds"`
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`      // 主配置
	MysqlConfig     `toml:"mysqlConfig"`     // MySQL 配置
	RedisConfig     `toml:"redisConfig"`     // Redis 配置
	LogConfig       `toml:"logConfig"`       // 日志配置
	KafkaConfig     `toml:"kafkaConfig"`     // Kafka 配置
	JWTConfig       `toml:"jwtConfig"`       // JWT 配置
	SnowflakeConfig `toml:"snowflakeConfig"` // 雪花算法配置
	SessionConfig   `toml:"sessionConfig"`   // 会话规则
	RealtimeConfig  `toml:"realtimeConfig"`  // 实时网关
	MetricsConfig   `toml:"metricsConfig"`   // 指标导出
}

// config 全局配置单例，延迟加载
var config *Config

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
// 返回值：加载成功返回 nil，否则返回错误
func LoadConfig() error {
	// 候选配置文件路径（优先加载本地配置）
	paths := []string{
		"configs/config_local.toml",       // 本地开发配置（优先）
		"configs/config.toml",             // 默认配置
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",       // 从子目录运行时的路径
	}

	// 依次尝试加载配置文件
	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			return nil // 加载成功
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件，缺失项补默认值
func GetConfig() *Config {
	if config == nil {
		config = Default()
		_ = LoadConfig() // 忽略加载错误，使用默认值
		config.applyDefaults()
	}
	return config
}

// Default 返回一份只含默认值的配置，测试里直接使用
func Default() *Config {
	c := new(Config)
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "battlemap_server"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.RedisConfig.Workers <= 0 {
		c.RedisConfig.Workers = 4
	}
	if c.RedisConfig.TaskQueue <= 0 {
		c.RedisConfig.TaskQueue = 1000
	}
	if c.MessageMode == "" {
		c.MessageMode = "channel"
	}
	if c.KafkaConfig.EventTopic == "" {
		c.KafkaConfig.EventTopic = "battlemap-session-events"
	}
	if c.KafkaConfig.Timeout <= 0 {
		c.KafkaConfig.Timeout = 1
	}
	if c.AccessTokenExpiry <= 0 {
		c.AccessTokenExpiry = 24 * 60
	}
	if c.MaxDurationHours <= 0 {
		c.MaxDurationHours = 24
	}
	if c.MaxParticipants <= 0 {
		c.MaxParticipants = 8
	}
	if c.CleanupIntervalMinutes <= 0 {
		c.CleanupIntervalMinutes = 60
	}
	if c.InactivityHours < 0 {
		c.InactivityHours = 0
	}
	if c.RoleLookupTimeoutMs <= 0 {
		c.RoleLookupTimeoutMs = 2000
	}
	if c.WriteWaitSeconds <= 0 {
		c.WriteWaitSeconds = 10
	}
	if c.PongWaitSeconds <= 0 {
		c.PongWaitSeconds = 60
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 * 1024
	}
	if c.PersistWorkers <= 0 {
		c.PersistWorkers = 1
	}
	if c.PersistBuffer <= 0 {
		c.PersistBuffer = 1024
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 15
	}
}
