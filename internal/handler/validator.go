package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Trans 参数错误的翻译器，InitTrans 之前为 nil，此时只返回笼统提示
var Trans ut.Translator

// InitTrans 给 gin 的校验器挂上翻译，locale 取 "zh" 或 "en"
// 提示里的字段名用 json tag（joinCode 而不是 JoinCode）
func InitTrans(locale string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	v.RegisterTagNameFunc(jsonFieldName)

	uni := ut.New(en.New(), zh.New(), en.New())
	trans, ok := uni.GetTranslator(locale)
	if !ok {
		return fmt.Errorf("no translator for locale %q", locale)
	}

	var err error
	if locale == "zh" {
		err = zh_translations.RegisterDefaultTranslations(v, trans)
	} else {
		err = en_translations.RegisterDefaultTranslations(v, trans)
	}
	if err != nil {
		return err
	}
	Trans = trans
	return nil
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// trimStructPrefix "JoinSessionRequest.joinCode" -> "joinCode"
func trimStructPrefix(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for field, msg := range fields {
		_, name, found := strings.Cut(field, ".")
		if !found {
			name = field
		}
		out[name] = msg
	}
	return out
}
