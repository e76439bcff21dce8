// Package joincode 生成 6 位会话邀请码
package joincode

import (
	"context"
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"

	"battlemap_server/pkg/constants"
	"battlemap_server/pkg/errorx"
)

// Alphabet 去掉了 0 O I 1 L 这类容易看错的字符
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

var formatRe = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// ExistsFunc 判断邀请码是否已被占用
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generate 随机生成一个邀请码，不检查唯一性
func Generate() (string, error) {
	result := make([]byte, constants.JOIN_CODE_LENGTH)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errorx.Wrap(err, errorx.CodeServerBusy, "读取随机数失败")
		}
		result[i] = Alphabet[n.Int64()]
	}
	return string(result), nil
}

// GenerateUnique 最多尝试 JOIN_CODE_MAX_ATTEMPTS 次，全部冲突返回 ErrJoinCodeExhausted
// exists 出错时立即返回该错误
func GenerateUnique(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < constants.JOIN_CODE_MAX_ATTEMPTS; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := Generate()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errorx.ErrJoinCodeExhausted
}

// Normalize 去空白并转大写
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidFormat 校验用户输入的邀请码格式
func IsValidFormat(code string) bool {
	return formatRe.MatchString(Normalize(code))
}
