package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kama_verify_server/internal/service/quota"
	"kama_verify_server/internal/service/verification"
	"kama_verify_server/pkg/errorx"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := InitTrans("zh"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubIssuer struct {
	phoneErr error
	emailErr error
	phones   []string
}

func (s *stubIssuer) IssuePhone(_ context.Context, phone string) (*verification.PhoneReceipt, error) {
	s.phones = append(s.phones, phone)
	if s.phoneErr != nil {
		return nil, s.phoneErr
	}
	return &verification.PhoneReceipt{Sid: "sid-1", ExpiresIn: 300}, nil
}

func (s *stubIssuer) IssueEmail(_ context.Context, _ string) (*verification.EmailReceipt, error) {
	if s.emailErr != nil {
		return nil, s.emailErr
	}
	return &verification.EmailReceipt{MessageID: "<m@x>", ExpiresIn: 300}, nil
}

func serve(t *testing.T, issuer CodeIssuer, path, body string) ResponseData {
	t.Helper()
	h := NewHandlers(issuer)
	r := gin.New()
	r.POST("/verification/phone", h.Verification.SendPhoneCode)
	r.POST("/verification/email", h.Verification.SendEmailCode)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSendPhoneCodeSuccess(t *testing.T) {
	issuer := &stubIssuer{}
	resp := serve(t, issuer, "/verification/phone", `{"telephone":"+86 138-0013-8000"}`)
	assert.Equal(t, errorx.CodeSuccess, resp.Code)
	assert.Equal(t, []string{"+86 138-0013-8000"}, issuer.phones)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sid-1", data["sid"])
}

func TestSendPhoneCodeValidation(t *testing.T) {
	issuer := &stubIssuer{}

	resp := serve(t, issuer, "/verification/phone", `{}`)
	assert.Equal(t, errorx.CodeInvalidParam, resp.Code)
	msg, ok := resp.Msg.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, msg, "telephone")

	resp = serve(t, issuer, "/verification/phone", `{"telephone":"call me"}`)
	assert.Equal(t, errorx.CodeInvalidParam, resp.Code)
	msg, ok = resp.Msg.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "telephone不是有效的手机号码", msg["telephone"])

	resp = serve(t, issuer, "/verification/phone", `not json`)
	assert.Equal(t, errorx.CodeInvalidParam, resp.Code)
	assert.Empty(t, issuer.phones)
}

func TestSendPhoneCodeQuotaErrors(t *testing.T) {
	issuer := &stubIssuer{phoneErr: &quota.ExceededError{Channel: quota.ChannelPhone, Scope: quota.ScopeUser, Count: 4, Limit: 3}}
	resp := serve(t, issuer, "/verification/phone", `{"telephone":"13800138000"}`)
	assert.Equal(t, errorx.CodeUserQuotaExceeded, resp.Code)
	assert.Equal(t, "今日获取验证码次数已达上限", resp.Msg)

	issuer.phoneErr = &quota.ExceededError{Channel: quota.ChannelPhone, Scope: quota.ScopeGlobal, Count: 101, Limit: 100}
	resp = serve(t, issuer, "/verification/phone", `{"telephone":"13800138000"}`)
	assert.Equal(t, errorx.CodeGlobalQuotaExceeded, resp.Code)

	issuer.phoneErr = errorx.ErrResendTooSoon
	resp = serve(t, issuer, "/verification/phone", `{"telephone":"13800138000"}`)
	assert.Equal(t, errorx.CodeResendTooSoon, resp.Code)
	assert.Equal(t, "验证码已发送，请稍后重试或输入已发送的验证码", resp.Msg)
}

func TestSendEmailCodeErrors(t *testing.T) {
	issuer := &stubIssuer{emailErr: errorx.ErrTransporterInvalid}
	resp := serve(t, issuer, "/verification/email", `{"email":"alice@example.com"}`)
	assert.Equal(t, errorx.CodeConfigError, resp.Code)
	assert.Equal(t, "验证码服务暂不可用", resp.Msg)

	issuer.emailErr = errorx.Wrapf(errors.New("connection refused"), errorx.CodeProviderError, "establish connection to %s", "smtp.internal:465")
	resp = serve(t, issuer, "/verification/email", `{"email":"alice@example.com"}`)
	assert.Equal(t, errorx.CodeProviderError, resp.Code)
	assert.Equal(t, "验证码发送失败，请稍后重试", resp.Msg)
	assert.NotContains(t, resp.Msg, "smtp.internal")

	issuer.emailErr = errorx.Newf(errorx.CodeProviderError, "spug: %s (code %d)", "模板不存在", 400)
	resp = serve(t, issuer, "/verification/email", `{"email":"alice@example.com"}`)
	assert.Equal(t, "验证码发送失败，请稍后重试", resp.Msg)

	issuer.emailErr = errorx.Wrap(errors.New("redis down"), errorx.CodeCacheError, "save verification code")
	resp = serve(t, issuer, "/verification/email", `{"email":"alice@example.com"}`)
	assert.Equal(t, errorx.CodeCacheError, resp.Code)
	assert.Equal(t, errorx.ErrServerBusy.Msg, resp.Msg)

	issuer.emailErr = errors.New("unexpected")
	resp = serve(t, issuer, "/verification/email", `{"email":"alice@example.com"}`)
	assert.Equal(t, errorx.CodeServerBusy, resp.Code)
}
