// Package sms 提供短信验证码发送通道
// 每个厂商实现 Provider 接口，由 Resolve 按配置的渠道名称创建
package sms

import (
	"context"
	"regexp"
	"strings"
)

// 支持的短信渠道名称（配置值忽略大小写）
const (
	ChannelAliyun = "aliyun"
	ChannelSpug   = "spug"
	ChannelTwilio = "twilio"
	ChannelMock   = "mock"
)

var (
	// 中国大陆手机号，允许 +86 / 86 前缀
	mainlandPattern = regexp.MustCompile(`^(?:\+?86)?1[3-9]\d{9}$`)
	// E.164 国际号码
	e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

// Result 一次发送的结果
// Fields 存放厂商特有字段（状态、分段数、价格、错误码等），原样透传到日志
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Sid     string         `json:"sid,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Provider 短信发送通道
type Provider interface {
	// Name 渠道名称
	Name() string
	// ValidateRecipient 纯格式校验，不做任何 I/O
	ValidateRecipient(phone string) bool
	// Send 发送验证码，厂商拒绝时返回描述具体原因的错误
	Send(ctx context.Context, phone, code string, expiresInMinutes int) (*Result, error)
}

func isMainland(phone string) bool {
	return mainlandPattern.MatchString(phone)
}

func isE164(phone string) bool {
	return e164Pattern.MatchString(phone)
}

// stripChinaPrefix 去掉 +86 / 86 国家码前缀，国内网关只接受 11 位号码
func stripChinaPrefix(phone string) string {
	if strings.HasPrefix(phone, "+86") {
		return phone[3:]
	}
	if len(phone) == 13 && strings.HasPrefix(phone, "86") {
		return phone[2:]
	}
	return phone
}
