package sms

import (
	"fmt"
	"strings"

	"kama_verify_server/internal/config"
	"kama_verify_server/pkg/errorx"
)

// Resolve 按渠道名称创建短信通道
// 未配置渠道或名称未知时返回配置错误，在任何网络请求之前失败
func Resolve(channel string, cfg config.SmsConfig) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(channel))
	switch name {
	case "":
		return nil, errorx.ErrChannelNotConfigured
	case ChannelAliyun:
		return NewAliyunProvider(cfg.Aliyun)
	case ChannelSpug:
		return NewSpugProvider(cfg.Spug, cfg.SenderName)
	case ChannelTwilio:
		return NewTwilioProvider(cfg.Twilio, cfg.SenderName)
	case ChannelMock:
		return NewMockProvider(), nil
	default:
		return nil, errorx.Wrap(fmt.Errorf("%q", channel), errorx.ErrUnknownChannel.Code, errorx.ErrUnknownChannel.Msg)
	}
}
