package errorx

import (
	"errors"
	"fmt"
)

// CodeError 带业务错误码的自定义错误
// 实现了 error 接口，支持 %w 包装底层错误，且能被 errors.Is/errors.As 识别
type CodeError struct {
	Code  int    // 业务错误码
	Msg   string // 错误消息
	cause error  // 被包装的底层错误
}

// Error 实现 Go 标准 error 接口
// 当存在底层错误时，返回格式为 "消息: 底层错误"；否则仅返回消息
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap 实现 errors.Unwrap 接口，支持 errors.Is/errors.As 向下追溯
func (e *CodeError) Unwrap() error {
	return e.cause
}

// Is 错误码与消息都相同才视为同一个错误
// 由哨兵派生的错误（Wrap(cause, ErrX.Code, ErrX.Msg)）仍与该哨兵匹配
// 只关心错误类别时使用 GetCode
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Msg == t.Msg
}

// New 创建一个新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// Newf 创建一个带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap 包装底层错误，添加业务错误码和消息
// 用法: errorx.Wrap(err, CodeProviderError, "短信网关调用失败")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   msg,
		cause: err,
	}
}

// Wrapf 包装底层错误，支持格式化消息
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// GetCode 从错误中提取业务错误码，如果不是 CodeError 则返回默认码
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy // 默认返回服务繁忙
}

// 业务状态码常量定义
const (
	CodeSuccess             = 1000 // 成功
	CodeInvalidParam        = 1001 // 请求参数错误
	CodeServerBusy          = 1005 // 服务繁忙
	CodeUnauthorized        = 1006 // 未授权/认证失败
	CodeCacheError          = 1011 // 缓存错误
	CodeConfigError         = 1020 // 渠道未配置或配置无效
	CodeInvalidRecipient    = 1021 // 收件人格式不被当前渠道支持
	CodeGlobalQuotaExceeded = 1022 // 全局每日额度已用尽
	CodeUserQuotaExceeded   = 1023 // 单个收件人每日额度已用尽
	CodeProviderError       = 1024 // 发送通道(SMTP/短信厂商)返回失败
	CodeResendTooSoon       = 1025 // 距上次发送未超过最小间隔
)

// 预定义常用错误实例
// 这些实例既可直接返回，也可用于 errors.Is 比较
var (
	ErrInvalidParam = New(CodeInvalidParam, "请求参数错误")
	ErrServerBusy   = New(CodeServerBusy, "服务繁忙")

	ErrChannelNotConfigured = New(CodeConfigError, "no sms channel is configured")
	ErrUnknownChannel       = New(CodeConfigError, "unknown sms channel")
	ErrTransporterInvalid   = New(CodeConfigError, "transporter configuration is invalid")
	ErrInvalidRecipient     = New(CodeInvalidRecipient, "recipient format is not supported for this region/vendor")
	ErrGlobalQuotaExceeded  = New(CodeGlobalQuotaExceeded, "global daily verification code limit reached")
	ErrUserQuotaExceeded    = New(CodeUserQuotaExceeded, "daily verification code limit reached for this recipient")
	ErrProviderFailed       = New(CodeProviderError, "send failed")
	ErrResendTooSoon        = New(CodeResendTooSoon, "verification code was sent recently")
)
