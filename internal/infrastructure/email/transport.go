// Package email 提供验证码邮件的 SMTP 发送通道
package email

import (
	"context"
	"net/mail"
	"strings"

	"kama_verify_server/internal/config"
)

// Message 待发送的邮件，Text 与 HTML 至少提供一个
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Envelope SMTP 信封
type Envelope struct {
	From string   `json:"from"`
	To   []string `json:"to"`
}

// SendResult 发送结果，由编排层原样返回给调用方
type SendResult struct {
	MessageID string   `json:"messageId"`
	Envelope  Envelope `json:"envelope"`
	Accepted  []string `json:"accepted"`
}

// Transport 邮件发送通道
type Transport interface {
	// Verify 检查服务器可达且认证通过，不发送任何邮件
	Verify(ctx context.Context) error
	// ValidateRecipient 纯格式校验，不做任何 I/O
	ValidateRecipient(addr string) bool
	// Send 发送邮件，失败时返回服务器给出的原因
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

// Factory 根据配置创建 Transport，测试时可替换
type Factory func(cfg config.EmailConfig) Transport

// ValidAddress 只接受不带显示名的单个地址，例如 alice@example.com
func ValidAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return false
	}
	return parsed.Name == "" && parsed.Address == addr && strings.Contains(addr[strings.LastIndex(addr, "@"):], ".")
}
