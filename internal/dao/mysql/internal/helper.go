// Package internal repository 子包共用的错误转换
package internal

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"battlemap_server/pkg/errorx"
)

// WrapDBError 记录不存在转成 CodeNotFound，其余一律 CodeDBError
func WrapDBError(err error, msg string) error {
	if err == nil {
		return nil
	}
	code := errorx.CodeDBError
	if errors.Is(err, gorm.ErrRecordNotFound) {
		code = errorx.CodeNotFound
	}
	return errorx.Wrap(err, code, msg)
}

func WrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return WrapDBError(err, fmt.Sprintf(format, args...))
}
