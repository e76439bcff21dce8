package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// TlsHandler HTTP -> HTTPS 重定向，mainConfig.tls 为 true 时启用
func TlsHandler(host string, port int) gin.HandlerFunc {
	return secureHandler(secure.Options{
		SSLRedirect: true,
		SSLHost:     host + ":" + strconv.Itoa(port),
	})
}

// SecureHeaders 基础安全响应头
// websocket 握手同样经过这里，不能设置会影响 Upgrade 的选项
func SecureHeaders(isDevelopment bool) gin.HandlerFunc {
	return secureHandler(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "same-origin",
		IsDevelopment:      isDevelopment,
	})
}

func secureHandler(opts secure.Options) gin.HandlerFunc {
	// 在返回函数之前初始化，避免每次请求都重复创建对象
	secureMiddleware := secure.New(opts)

	return func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			// 不要在中间件里用 Fatal，记录后终止当前请求
			zap.L().Error("secure middleware rejected request", zap.Error(err))
			c.Abort()
			return
		}
		// 重定向时 secure 已经写好了响应
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
			return
		}
		c.Next()
	}
}
