package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration // Session Token 有效期
}

// 全局配置，由 Init 函数初始化
var jwtConfig *JWTConfig

const sessionSubject = "session_token"

// ErrNotInitialized Init 之前调用签发/解析
var ErrNotInitialized = errors.New("jwt not initialized")

// Init 初始化 JWT 配置
func Init(secret string, accessExpiryMinutes int) {
	if accessExpiryMinutes <= 0 {
		accessExpiryMinutes = 24 * 60
	}
	jwtConfig = &JWTConfig{
		Secret:            secret,
		AccessTokenExpiry: time.Duration(accessExpiryMinutes) * time.Minute,
	}
}

// Claims 自定义 JWT 声明
// 一个 token 只对一个会话有效，websocket 握手时校验 user_id 与 session_id
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// GenerateSessionToken 加入会话成功后签发，用于建立 websocket 连接
func GenerateSessionToken(userID, sessionID string) (string, error) {
	if jwtConfig == nil {
		return "", ErrNotInitialized
	}
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "battlemap",
			Subject:   sessionSubject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtConfig.Secret))
}

// ParseToken 解析并验证 Token
func ParseToken(tokenString string) (*Claims, error) {
	if jwtConfig == nil {
		return nil, ErrNotInitialized
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtConfig.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Subject == sessionSubject {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
