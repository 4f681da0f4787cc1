package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"kama_verify_server/internal/config"
	"kama_verify_server/pkg/errorx"
)

// messageCreator Twilio SDK 中实际被调用的部分，测试时替换
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioProvider 国际短信通道，接受任意 E.164 号码
type TwilioProvider struct {
	api        messageCreator
	from       string
	senderName string
}

// NewTwilioProvider 创建 Twilio 通道
func NewTwilioProvider(cfg config.TwilioSmsConfig, senderName string) (*TwilioProvider, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errorx.New(errorx.CodeConfigError, "twilio accountSID/authToken/from is not configured")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioProvider(client.Api, cfg.From, senderName), nil
}

func newTwilioProvider(api messageCreator, from, senderName string) *TwilioProvider {
	return &TwilioProvider{api: api, from: from, senderName: senderName}
}

func (p *TwilioProvider) Name() string { return ChannelTwilio }

func (p *TwilioProvider) ValidateRecipient(phone string) bool {
	return isE164(phone)
}

func (p *TwilioProvider) Send(_ context.Context, phone, code string, expiresInMinutes int) (*Result, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(p.from)
	params.SetBody(fmt.Sprintf("[%s] Your verification code is %s. It expires in %d minutes.",
		p.senderName, code, expiresInMinutes))

	msg, err := p.api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			return nil, errorx.Newf(errorx.CodeProviderError, "twilio: %s (code %d)", restErr.Message, restErr.Code)
		}
		return nil, errorx.Wrap(err, errorx.ErrProviderFailed.Code, errorx.ErrProviderFailed.Msg)
	}
	if msg.ErrorCode != nil {
		return nil, errorx.Newf(errorx.CodeProviderError, "twilio: %s (code %d)", deref(msg.ErrorMessage), *msg.ErrorCode)
	}

	fields := map[string]any{
		"status":       deref(msg.Status),
		"direction":    deref(msg.Direction),
		"numSegments":  deref(msg.NumSegments),
		"price":        deref(msg.Price),
		"priceUnit":    deref(msg.PriceUnit),
		"errorCode":    msg.ErrorCode,
		"errorMessage": deref(msg.ErrorMessage),
	}
	return &Result{
		Success: true,
		Message: "sent",
		Sid:     deref(msg.Sid),
		Fields:  fields,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
