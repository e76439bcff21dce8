package handler

import (
	"errors"
	"net/http"

	"battlemap_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ResponseData 统一响应结构体
// 参数校验失败时 Msg 是字段名到提示的映射
type ResponseData struct {
	Code int `json:"code"`
	Msg  any `json:"msg"`
	Data any `json:"data"`
}

func reply(c *gin.Context, status, code int, msg, data any) {
	c.JSON(status, ResponseData{Code: code, Msg: msg, Data: data})
}

// HandleSuccess 返回成功响应
func HandleSuccess(c *gin.Context, data any) {
	reply(c, http.StatusOK, errorx.CodeSuccess, "success", data)
}

// HandleError 业务错误按错误码映射 HTTP 状态：
// 邀请码格式错 400，无权限 403，会话不存在 404，人满 409，过期 410。
// 非 CodeError 记日志后统一返回 500 服务繁忙
func HandleError(c *gin.Context, err error) {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		reply(c, errorx.HTTPStatus(codeErr), codeErr.Code, codeErr.Msg, nil)
		return
	}

	zap.L().Error("未预期的错误",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	reply(c, http.StatusInternalServerError, errorx.ErrServerBusy.Code, errorx.ErrServerBusy.Msg, nil)
}

// HandleParamError 参数绑定失败，validator 错误翻译成逐字段提示
func HandleParamError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && Trans != nil {
		reply(c, http.StatusBadRequest, errorx.CodeInvalidParam, trimStructPrefix(validationErrs.Translate(Trans)), nil)
		return
	}

	// JSON 格式错误等
	zap.L().Warn("参数绑定失败", zap.String("path", c.Request.URL.Path), zap.Error(err))
	reply(c, http.StatusBadRequest, errorx.CodeInvalidParam, errorx.ErrInvalidParam.Msg, nil)
}
