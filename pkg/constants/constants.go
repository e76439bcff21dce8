package constants

const (
	CHANNEL_SIZE            = 256 // 每个连接的发送缓冲
	HUB_INBOX_SIZE          = 1024
	ROLE_CACHE_TTL_MINUTES  = 5 // 角色缓存过期时间（分钟）
	JOIN_CODE_LENGTH        = 6
	JOIN_CODE_MAX_ATTEMPTS  = 10
	HISTORY_MAX_SIZE        = 100
	CHAT_MESSAGE_MAX_LENGTH = 500
	CLIENT_MAX_RECONNECT    = 5
	CLIENT_RECONNECT_DELAY  = 1000 // 毫秒
)
