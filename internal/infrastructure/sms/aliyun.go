package sms

import (
	"context"
	"encoding/json"
	"errors"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi20170525 "github.com/alibabacloud-go/dysmsapi-20170525/v4/client"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"

	"kama_verify_server/internal/config"
	"kama_verify_server/pkg/errorx"
)

// aliyunSuccessCode 阿里云 SendSms 响应体中表示成功的 Code
const aliyunSuccessCode = "OK"

// smsSender 阿里云 SDK 中实际被调用的部分，测试时替换
type smsSender interface {
	SendSmsWithOptions(request *dysmsapi20170525.SendSmsRequest, runtime *util.RuntimeOptions) (*dysmsapi20170525.SendSmsResponse, error)
}

// AliyunProvider 阿里云短信通道，仅支持中国大陆号码
type AliyunProvider struct {
	client       smsSender
	signName     string
	templateCode string
}

// NewAliyunProvider 初始化阿里云 SMS Client 并创建通道
func NewAliyunProvider(cfg config.AliyunSmsConfig) (*AliyunProvider, error) {
	if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
		return nil, errorx.New(errorx.CodeConfigError, "aliyun accessKeyID/accessKeySecret is not configured")
	}
	conf := &openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
	}
	conf.Endpoint = tea.String("dysmsapi.aliyuncs.com")
	client, err := dysmsapi20170525.NewClient(conf)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeConfigError, "aliyun sms client init failed")
	}
	return newAliyunProvider(client, cfg.SignName, cfg.TemplateCode), nil
}

func newAliyunProvider(client smsSender, signName, templateCode string) *AliyunProvider {
	// 未配置时使用阿里云提供的测试签名与模板
	if signName == "" {
		signName = "阿里云短信测试"
	}
	if templateCode == "" {
		templateCode = "SMS_154950909"
	}
	return &AliyunProvider{client: client, signName: signName, templateCode: templateCode}
}

func (p *AliyunProvider) Name() string { return ChannelAliyun }

func (p *AliyunProvider) ValidateRecipient(phone string) bool {
	return isMainland(phone)
}

func (p *AliyunProvider) Send(_ context.Context, phone, code string, _ int) (*Result, error) {
	// 模板变量 ${code}
	param, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProviderError, "aliyun: encode template param")
	}

	req := &dysmsapi20170525.SendSmsRequest{
		SignName:      tea.String(p.signName),
		TemplateCode:  tea.String(p.templateCode),
		PhoneNumbers:  tea.String(stripChinaPrefix(phone)),
		TemplateParam: tea.String(string(param)),
	}
	rsp, err := p.client.SendSmsWithOptions(req, &util.RuntimeOptions{})
	if err != nil {
		var sdkErr *tea.SDKError
		if errors.As(err, &sdkErr) && sdkErr.Message != nil {
			return nil, errorx.Newf(errorx.CodeProviderError, "aliyun: %s", tea.StringValue(sdkErr.Message))
		}
		return nil, errorx.Wrap(err, errorx.ErrProviderFailed.Code, errorx.ErrProviderFailed.Msg)
	}
	if rsp == nil || rsp.Body == nil {
		return nil, errorx.New(errorx.CodeProviderError, "aliyun: empty response")
	}

	// 即使 err 为 nil，也需要看 Body.Code 是否为 "OK"
	body := rsp.Body
	if tea.StringValue(body.Code) != aliyunSuccessCode {
		return nil, errorx.Newf(errorx.CodeProviderError, "aliyun: %s (code %s)",
			tea.StringValue(body.Message), tea.StringValue(body.Code))
	}

	return &Result{
		Success: true,
		Message: tea.StringValue(body.Message),
		Sid:     tea.StringValue(body.BizId),
		Fields: map[string]any{
			"vendorCode": tea.StringValue(body.Code),
			"requestId":  tea.StringValue(body.RequestId),
		},
	}, nil
}
