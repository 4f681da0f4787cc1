package verification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kama_verify_server/internal/config"
	"kama_verify_server/internal/service/quota"
	"kama_verify_server/pkg/errorx"
	"kama_verify_server/pkg/util/random"
)

// codeKeyPrefix 验证码缓存 key 前缀，校验方按 auth_code_<收件人> 读取
const codeKeyPrefix = "auth_code_"

// resendKeyPrefix 重发间隔标记 key 前缀
const resendKeyPrefix = "auth_resend_"

// CodeCache 验证码存储，Get 在 key 不存在时返回空字符串和 nil
type CodeCache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// Issuer 生成验证码、发送并写入缓存
// cache 为 nil 时只发送不保存，也不检查重发间隔，仅用于本地调试
type Issuer struct {
	svc            *Service
	cache          CodeCache
	appName        string
	codeLength     int
	expires        time.Duration
	resendInterval time.Duration
}

// NewIssuer 创建验证码签发器
func NewIssuer(svc *Service, cache CodeCache, appName string, smsCfg config.SmsConfig) *Issuer {
	codeLength := smsCfg.CodeLength
	if codeLength <= 0 {
		codeLength = 6
	}
	expires := time.Duration(smsCfg.Expires) * time.Minute
	if expires <= 0 {
		expires = 5 * time.Minute
	}
	return &Issuer{
		svc:            svc,
		cache:          cache,
		appName:        appName,
		codeLength:     codeLength,
		expires:        expires,
		resendInterval: time.Duration(smsCfg.ResendInterval) * time.Second,
	}
}

// CodeKey 收件人对应的验证码缓存 key
func CodeKey(channel, recipient string) string {
	return codeKeyPrefix + quota.Normalize(channel, recipient)
}

func resendKey(channel, recipient string) string {
	return resendKeyPrefix + channel + "_" + quota.Normalize(channel, recipient)
}

// IssuePhone 向手机号发送验证码
func (i *Issuer) IssuePhone(ctx context.Context, phone string) (*PhoneReceipt, error) {
	if err := i.checkResend(ctx, quota.ChannelPhone, phone); err != nil {
		return nil, err
	}
	code := random.Code(i.codeLength)
	res, err := i.svc.SendPhoneOtp(ctx, phone, code, i.expires)
	if err != nil {
		return nil, err
	}
	if err := i.save(ctx, quota.ChannelPhone, phone, code); err != nil {
		return nil, err
	}
	return &PhoneReceipt{Sid: res.Sid, ExpiresIn: int(i.expires / time.Second)}, nil
}

// IssueEmail 向邮箱发送验证码
func (i *Issuer) IssueEmail(ctx context.Context, addr string) (*EmailReceipt, error) {
	if err := i.checkResend(ctx, quota.ChannelEmail, addr); err != nil {
		return nil, err
	}
	code := random.Code(i.codeLength)
	minutes := int(i.expires / time.Minute)
	res, err := i.svc.SendEmail(ctx, EmailRequest{
		To:      addr,
		Subject: fmt.Sprintf("[%s] 验证码", i.appName),
		Text:    fmt.Sprintf("您的验证码是 %s，%d 分钟内有效。如非本人操作请忽略本邮件。", code, minutes),
		HTML: fmt.Sprintf("<p>您的验证码是 <b>%s</b>，%d 分钟内有效。</p><p>如非本人操作请忽略本邮件。</p>",
			code, minutes),
	})
	if err != nil {
		return nil, err
	}
	if err := i.save(ctx, quota.ChannelEmail, addr, code); err != nil {
		return nil, err
	}
	return &EmailReceipt{MessageID: res.MessageID, ExpiresIn: int(i.expires / time.Second)}, nil
}

// checkResend 上次发送后未超过最小间隔时拒绝，不消耗额度
// 检查与写入不是原子操作，并发请求可能同时通过，总量仍受额度限制
func (i *Issuer) checkResend(ctx context.Context, channel, recipient string) error {
	if i.cache == nil || i.resendInterval <= 0 {
		return nil
	}
	v, err := i.cache.Get(ctx, resendKey(channel, recipient))
	if err != nil {
		return errorx.Wrap(err, errorx.CodeCacheError, "check resend interval")
	}
	if v != "" {
		return errorx.ErrResendTooSoon
	}
	return nil
}

func (i *Issuer) save(ctx context.Context, channel, recipient, code string) error {
	if i.cache == nil {
		return nil
	}
	if err := i.cache.Set(ctx, CodeKey(channel, recipient), code, i.expires); err != nil {
		// 验证码已发出但无法校验，调用方需要重新获取
		return errorx.Wrap(err, errorx.CodeCacheError, "save verification code")
	}
	if i.resendInterval > 0 {
		if err := i.cache.Set(ctx, resendKey(channel, recipient), "1", i.resendInterval); err != nil {
			// 验证码已可用，标记丢失只影响重发间隔
			zap.L().Warn("save resend marker failed", zap.String("channel", channel), zap.Error(err))
		}
	}
	return nil
}

// PhoneReceipt 短信签发结果，不包含验证码
type PhoneReceipt struct {
	Sid       string `json:"sid"`
	ExpiresIn int    `json:"expiresIn"` // 秒
}

// EmailReceipt 邮件签发结果，不包含验证码
type EmailReceipt struct {
	MessageID string `json:"messageId"`
	ExpiresIn int    `json:"expiresIn"` // 秒
}
