// Package verification 负责验证码的发送编排
// 依次执行：收件人校验 -> 全局额度 -> 单收件人额度 -> 通道发送 -> 结构化日志
// 本包只负责发送与准入，不负责验证码的生成与校验
package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"kama_verify_server/internal/config"
	"kama_verify_server/internal/infrastructure/email"
	"kama_verify_server/internal/infrastructure/sms"
	"kama_verify_server/internal/service/quota"
	"kama_verify_server/pkg/errorx"
	"kama_verify_server/pkg/util/mask"
)

// 日志事件名，运维侧按这些消息检索
const (
	eventSent        = "verification code sent"
	eventRateLimited = "verification code rate limited"
	eventFailed      = "verification code send failed"
)

// Resolver 根据渠道名返回短信通道
type Resolver func(channel string) (sms.Provider, error)

// Deps 编排层可替换的依赖
// Inject 时只覆盖非 nil 字段
type Deps struct {
	Store        quota.Store
	Logger       *zap.Logger
	Resolve      Resolver
	NewTransport email.Factory
}

// EmailRequest 邮件发送请求，From 为空时使用配置中的发件人
type EmailRequest struct {
	To      string
	Subject string
	Text    string
	HTML    string
	From    string
}

// Service 验证码发送编排
type Service struct {
	emailCfg   config.EmailConfig
	smsChannel string
	emailQuota quota.Limits
	phoneQuota quota.Limits

	mu        sync.RWMutex
	defaults  Deps
	deps      Deps
	transport email.Transport
}

// NewService 创建编排服务
// deps 中未提供的依赖使用生产实现：内存计数、全局 zap Logger、sms.Resolve、SMTP 通道
func NewService(cfg *config.Config, deps Deps) *Service {
	smsCfg := cfg.SmsConfig
	if deps.Store == nil {
		deps.Store = quota.NewMemoryStore(nil)
	}
	if deps.Resolve == nil {
		deps.Resolve = func(channel string) (sms.Provider, error) {
			return sms.Resolve(channel, smsCfg)
		}
	}
	if deps.NewTransport == nil {
		deps.NewTransport = email.NewSMTPTransport
	}

	s := &Service{
		emailCfg:   cfg.EmailConfig,
		smsChannel: strings.TrimSpace(smsCfg.Channel),
		emailQuota: limitsOf(cfg.QuotaConfig.Email),
		phoneQuota: limitsOf(cfg.QuotaConfig.Phone),
		defaults:   deps,
	}
	s.Reset()
	return s
}

func limitsOf(q config.ChannelQuota) quota.Limits {
	return quota.Limits{
		Global:    q.GlobalDailyLimit,
		Recipient: q.SingleRecipientDailyLimit,
		Window:    time.Duration(q.WindowSeconds) * time.Second,
	}
}

// Inject 替换部分依赖，未提供的字段保持当前值
// 仅供测试使用，调用方负责在用例结束时调用 Reset
func (s *Service) Inject(deps Deps) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deps.Store != nil {
		s.deps.Store = deps.Store
	}
	if deps.Logger != nil {
		s.deps.Logger = deps.Logger
	}
	if deps.Resolve != nil {
		s.deps.Resolve = deps.Resolve
	}
	if deps.NewTransport != nil {
		s.deps.NewTransport = deps.NewTransport
		s.transport = deps.NewTransport(s.emailCfg)
	}
}

// Reset 恢复创建时的全部依赖
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps = s.defaults
	s.transport = s.deps.NewTransport(s.emailCfg)
}

func (s *Service) snapshot() (Deps, email.Transport) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deps := s.deps
	if deps.Logger == nil {
		// 延迟到调用时读取，logger.Init 替换全局 Logger 后仍然生效
		deps.Logger = zap.L()
	}
	return deps, s.transport
}

// SendEmail 发送验证码邮件
// 通道校验失败时不消耗任何额度；发送失败不重试，原样返回给调用方
func (s *Service) SendEmail(ctx context.Context, req EmailRequest) (*email.SendResult, error) {
	deps, transport := s.snapshot()
	lg := deps.Logger.With(
		zap.String("channel", quota.ChannelEmail),
		zap.String("recipient", mask.Email(req.To)),
	)

	if err := transport.Verify(ctx); err != nil {
		err = errorx.Wrap(err, errorx.CodeConfigError, errorx.ErrTransporterInvalid.Msg)
		lg.Error(eventFailed, zap.String("error", err.Error()))
		return nil, err
	}
	if !transport.ValidateRecipient(req.To) {
		lg.Error(eventFailed, zap.String("error", errorx.ErrInvalidRecipient.Error()))
		return nil, errorx.ErrInvalidRecipient
	}
	if err := s.admit(ctx, lg, deps.Store, quota.ChannelEmail, req.To, s.emailQuota); err != nil {
		return nil, err
	}

	res, err := transport.Send(ctx, email.Message{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Text:    req.Text,
		HTML:    req.HTML,
	})
	if err != nil {
		lg.Error(eventFailed, zap.String("error", err.Error()))
		return nil, err
	}
	lg.Info(eventSent,
		zap.String("messageId", res.MessageID),
		zap.Strings("accepted", maskAll(res.Accepted)),
	)
	return res, nil
}

// SendPhoneOtp 发送短信验证码
// expiresIn <= 0 时使用短信额度窗口；传给通道的分钟数向下取整
func (s *Service) SendPhoneOtp(ctx context.Context, phone, code string, expiresIn time.Duration) (*sms.Result, error) {
	deps, _ := s.snapshot()
	lg := deps.Logger.With(
		zap.String("channel", quota.ChannelPhone),
		zap.String("recipient", mask.Phone(phone)),
	)

	if s.smsChannel == "" {
		lg.Error(eventFailed, zap.String("error", errorx.ErrChannelNotConfigured.Error()))
		return nil, errorx.ErrChannelNotConfigured
	}
	provider, err := deps.Resolve(s.smsChannel)
	if err != nil {
		lg.Error(eventFailed, zap.String("provider", s.smsChannel), zap.String("error", err.Error()))
		return nil, err
	}
	lg = lg.With(zap.String("provider", provider.Name()))

	if !provider.ValidateRecipient(phone) {
		lg.Error(eventFailed, zap.String("error", errorx.ErrInvalidRecipient.Error()))
		return nil, errorx.ErrInvalidRecipient
	}
	if err := s.admit(ctx, lg, deps.Store, quota.ChannelPhone, phone, s.phoneQuota); err != nil {
		return nil, err
	}

	if expiresIn <= 0 {
		expiresIn = s.phoneQuota.Window
	}
	res, err := provider.Send(ctx, phone, code, int(expiresIn/time.Minute))
	if err != nil {
		lg.Error(eventFailed, zap.String("error", err.Error()))
		return nil, err
	}

	fields := make([]zap.Field, 0, len(res.Fields)+2)
	fields = append(fields, zap.String("sid", res.Sid), zap.String("message", res.Message))
	for k, v := range res.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	lg.Info(eventSent, fields...)
	return res, nil
}

// admit 额度准入，超限记录 rate limited 事件，存储异常记录 failed 事件
func (s *Service) admit(ctx context.Context, lg *zap.Logger, store quota.Store, channel, recipient string, limits quota.Limits) error {
	err := quota.Admit(ctx, store, channel, recipient, limits)
	if err == nil {
		return nil
	}
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		lg.Warn(eventRateLimited,
			zap.String("scope", string(exceeded.Scope)),
			zap.Int64("count", exceeded.Count),
			zap.Int64("limit", exceeded.Limit),
		)
		return err
	}
	lg.Error(eventFailed, zap.String("error", err.Error()))
	return err
}

func maskAll(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = mask.Email(a)
	}
	return out
}
