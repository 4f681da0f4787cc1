package sms

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockProvider 本地开发通道，不调用第三方，验证码只打印到标准输出
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return ChannelMock }

func (p *MockProvider) ValidateRecipient(phone string) bool {
	return isMainland(phone) || isE164(phone)
}

func (p *MockProvider) Send(_ context.Context, phone, code string, expiresInMinutes int) (*Result, error) {
	fmt.Printf("【MockSMS】手机号: %s, 验证码: %s, 有效期: %d 分钟\n", phone, code, expiresInMinutes)
	return &Result{
		Success: true,
		Message: "mock sent",
		Sid:     "mock-" + uuid.NewString(),
	}, nil
}
