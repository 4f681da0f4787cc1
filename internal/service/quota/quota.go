// Package quota 实现验证码发送的额度准入
// 每个渠道两个计数器：全局计数器与单收件人计数器，共用同一窗口
// 计数器在窗口内首次自增时创建并设置 TTL，过期后自动重新从 1 开始
package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kama_verify_server/pkg/errorx"
)

// 渠道名称，同时作为计数 key 的一部分
const (
	ChannelEmail = "email"
	ChannelPhone = "phone"
)

// Scope 计数器作用域
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeUser   Scope = "user"
)

const keyPrefix = "verify_quota"

// Store 计数存储
// Incr 在 key 不存在时置为 1 并设置 window 过期，否则原子自增并返回新值
// 并发安全由实现保证
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Refunder 可选能力：归还一次自增
// 单收件人额度拒绝时用于归还本次占用的全局额度，存储未实现时全局计数保持自增后的值
type Refunder interface {
	Refund(ctx context.Context, key string) error
}

// Limits 单个渠道的额度
// Recipient <= Global 只是配置期望，运行时不校验
type Limits struct {
	Global    int64
	Recipient int64
	Window    time.Duration
}

// GlobalKey 全局计数器 key，例如 verify_quota:phone:global
func GlobalKey(channel string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, channel, ScopeGlobal)
}

// RecipientKey 单收件人计数器 key，例如 verify_quota:email:user:alice@example.com
func RecipientKey(channel, recipient string) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, channel, ScopeUser, Normalize(channel, recipient))
}

// Normalize 归一化收件人标识，保证同一收件人总是命中同一个计数器
// 邮箱忽略大小写；手机号去掉空格、短横线和括号
func Normalize(channel, recipient string) string {
	recipient = strings.TrimSpace(recipient)
	if channel == ChannelEmail {
		return strings.ToLower(recipient)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, recipient)
}

// ExceededError 额度超限错误
// 通过 Unwrap 暴露对应的 errorx 哨兵错误，调用方可用 errors.Is 区分 global/user
type ExceededError struct {
	Channel string
	Scope   Scope
	Count   int64
	Limit   int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s %s quota exceeded (%d/%d)", e.Channel, e.Scope, e.Count, e.Limit)
}

func (e *ExceededError) Unwrap() error {
	if e.Scope == ScopeGlobal {
		return errorx.ErrGlobalQuotaExceeded
	}
	return errorx.ErrUserQuotaExceeded
}

// Admit 依次检查全局额度与单收件人额度
// 全局额度超限时直接返回，不会自增收件人计数器；超限的那次自增本身不回滚
// 单收件人超限时归还本次占用的全局额度，单个号码被刷不会耗尽全局额度
func Admit(ctx context.Context, store Store, channel, recipient string, limits Limits) error {
	globalKey := GlobalKey(channel)
	count, err := store.Incr(ctx, globalKey, limits.Window)
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "incr %s global quota", channel)
	}
	if count > limits.Global {
		return &ExceededError{Channel: channel, Scope: ScopeGlobal, Count: count, Limit: limits.Global}
	}

	count, err = store.Incr(ctx, RecipientKey(channel, recipient), limits.Window)
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "incr %s recipient quota", channel)
	}
	if count > limits.Recipient {
		if r, ok := store.(Refunder); ok {
			// 归还失败只影响全局计数精度，不改变本次拒绝结果
			_ = r.Refund(ctx, globalKey)
		}
		return &ExceededError{Channel: channel, Scope: ScopeUser, Count: count, Limit: limits.Recipient}
	}
	return nil
}
