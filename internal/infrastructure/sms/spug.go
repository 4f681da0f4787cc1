package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kama_verify_server/internal/config"
	"kama_verify_server/pkg/errorx"
)

// spugSuccessCode 网关在响应体 code 字段中表示成功的值
const spugSuccessCode = 200

type spugRequest struct {
	Key1    string `json:"key1"`    // 应用名称
	Key2    string `json:"key2"`    // 验证码
	Key3    string `json:"key3"`    // 有效期（分钟）
	Targets string `json:"targets"` // 不带国家码的手机号
}

type spugResponse struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	RequestID string `json:"request_id"`
}

// SpugProvider 基于模板的国内推送网关，仅支持中国大陆号码
type SpugProvider struct {
	baseURL    string
	templateID string
	senderName string
	client     *http.Client
}

// NewSpugProvider 创建模板推送网关通道
func NewSpugProvider(cfg config.SpugSmsConfig, senderName string) (*SpugProvider, error) {
	if cfg.TemplateID == "" {
		return nil, errorx.New(errorx.CodeConfigError, "spug templateID is not configured")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://push.spug.cc"
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SpugProvider{
		baseURL:    baseURL,
		templateID: cfg.TemplateID,
		senderName: senderName,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (p *SpugProvider) Name() string { return ChannelSpug }

func (p *SpugProvider) ValidateRecipient(phone string) bool {
	return isMainland(phone)
}

func (p *SpugProvider) Send(ctx context.Context, phone, code string, expiresInMinutes int) (*Result, error) {
	body, err := json.Marshal(spugRequest{
		Key1:    p.senderName,
		Key2:    code,
		Key3:    strconv.Itoa(expiresInMinutes),
		Targets: stripChinaPrefix(phone),
	})
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProviderError, "spug: encode request")
	}

	url := fmt.Sprintf("%s/send/%s", p.baseURL, p.templateID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProviderError, "spug: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.ErrProviderFailed.Code, errorx.ErrProviderFailed.Msg)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProviderError, "spug: read response")
	}

	var out spugResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errorx.Newf(errorx.CodeProviderError, "spug: unexpected response (http %d): %s", resp.StatusCode, string(raw))
	}
	if out.Code != spugSuccessCode {
		msg := out.Msg
		if msg == "" {
			msg = "send failed"
		}
		return nil, errorx.Newf(errorx.CodeProviderError, "spug: %s (code %d)", msg, out.Code)
	}

	return &Result{
		Success: true,
		Message: out.Msg,
		Sid:     out.RequestID,
		Fields: map[string]any{
			"vendorCode": out.Code,
		},
	}, nil
}
