package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"kama_verify_server/pkg/errorx"
)

// ResponseData 统一响应结构体
type ResponseData struct {
	Code int `json:"code"`           // 业务响应状态码
	Msg  any `json:"msg"`            // 提示信息
	Data any `json:"data,omitempty"` // 数据
}

// HandleSuccess 返回成功响应
func HandleSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, ResponseData{
		Code: errorx.CodeSuccess,
		Msg:  "success",
		Data: data,
	})
}

// userMessages 验证码错误码对应的提示
// 厂商返回、SMTP 地址、计数细节等诊断信息只进日志，不返回给调用方
var userMessages = map[int]string{
	errorx.CodeInvalidRecipient:    "该号码或邮箱暂不支持接收验证码",
	errorx.CodeGlobalQuotaExceeded: "今日验证码发送量已达上限，请稍后再试",
	errorx.CodeUserQuotaExceeded:   "今日获取验证码次数已达上限",
	errorx.CodeResendTooSoon:       "验证码已发送，请稍后重试或输入已发送的验证码",
	errorx.CodeProviderError:       "验证码发送失败，请稍后重试",
	errorx.CodeConfigError:         "验证码服务暂不可用",
	errorx.CodeCacheError:          errorx.ErrServerBusy.Msg,
}

// HandleError 通用错误处理方法
// errorx.CodeError 原样返回错误码，提示语取 userMessages；其他错误记录日志并返回服务繁忙
// HTTP 状态码始终为 200，调用方按 code 区分
func HandleError(c *gin.Context, err error) {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		msg, ok := userMessages[codeErr.Code]
		if !ok {
			msg = codeErr.Msg
		}
		switch codeErr.Code {
		case errorx.CodeConfigError, errorx.CodeCacheError:
			zap.L().Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.Int("code", codeErr.Code),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusOK, ResponseData{Code: codeErr.Code, Msg: msg})
		return
	}

	zap.L().Error("system error",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	c.JSON(http.StatusOK, ResponseData{
		Code: errorx.ErrServerBusy.Code,
		Msg:  errorx.ErrServerBusy.Msg,
	})
}

// HandleParamError 处理参数绑定错误，validator 错误会被翻译
func HandleParamError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && Trans != nil {
		c.JSON(http.StatusOK, ResponseData{
			Code: errorx.ErrInvalidParam.Code,
			Msg:  RemoveTopStruct(validationErrs.Translate(Trans)),
		})
		return
	}

	// 非 validator 错误（如 JSON 格式错误）
	zap.L().Debug("param bind error", zap.Error(err))
	c.JSON(http.StatusOK, ResponseData{
		Code: errorx.ErrInvalidParam.Code,
		Msg:  errorx.ErrInvalidParam.Msg,
	})
}
