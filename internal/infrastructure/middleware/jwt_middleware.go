package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"battlemap_server/pkg/errorx"
	"battlemap_server/pkg/util/jwt"
)

// 上下文中的键
const (
	CtxUserID    = "user_id"
	CtxSessionID = "session_id"
)

// SessionToken 会话令牌校验
// 浏览器的 websocket 无法自定义 Header，所以也接受 ?token= 查询参数
// required 为 false 时缺少 token 直接放行，但带了无效 token 仍然拒绝
func SessionToken(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			if authHeader := c.GetHeader("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || parts[0] != "Bearer" {
					abortUnauthorized(c, "Token 格式错误，请使用 Bearer Token")
					return
				}
				token = parts[1]
			}
		}

		if token == "" {
			if required {
				abortUnauthorized(c, "缺少会话令牌")
				return
			}
			c.Next()
			return
		}

		claims, err := jwt.ParseToken(token)
		if err != nil {
			abortUnauthorized(c, "会话令牌已过期或无效，请重新加入")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxSessionID, claims.SessionID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errorx.CodeUnauthorized,
		"msg":  msg,
	})
}
