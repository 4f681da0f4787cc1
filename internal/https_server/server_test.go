package https_server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kama_verify_server/internal/config"
	myredis "kama_verify_server/internal/dao/redis"
	"kama_verify_server/internal/handler"
	"kama_verify_server/internal/infrastructure/email"
	"kama_verify_server/internal/service/verification"
	"kama_verify_server/pkg/errorx"
	"kama_verify_server/pkg/util/jwt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := handler.InitTrans("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type okTransport struct{}

func (okTransport) Verify(context.Context) error { return nil }

func (okTransport) ValidateRecipient(addr string) bool { return email.ValidAddress(addr) }

func (okTransport) Send(_ context.Context, msg email.Message) (*email.SendResult, error) {
	return &email.SendResult{MessageID: "<m1@test>", Accepted: []string{msg.To}}, nil
}

type apiFixture struct {
	engine *gin.Engine
	mr     *miniredis.Miniredis
}

func newAPI(t *testing.T, authEnabled bool, mutate ...func(*config.Config)) *apiFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Default()
	cfg.MainConfig.Mode = "test"
	cfg.SmsConfig.Channel = "mock"
	cfg.QuotaConfig.Phone.SingleRecipientDailyLimit = 2
	cfg.SmsConfig.ResendInterval = 0
	for _, m := range mutate {
		m(cfg)
	}

	svc := verification.NewService(cfg, verification.Deps{
		Store:        myredis.NewQuotaStore(client),
		Logger:       zap.NewNop(),
		NewTransport: func(config.EmailConfig) email.Transport { return okTransport{} },
	})
	issuer := verification.NewIssuer(svc, myredis.NewRedisCache(client), cfg.MainConfig.AppName, cfg.SmsConfig)

	return &apiFixture{
		engine: Init(cfg, handler.NewHandlers(issuer), authEnabled),
		mr:     mr,
	}
}

func (f *apiFixture) post(t *testing.T, path string, body any, token string) handler.ResponseData {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp handler.ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHealthz(t *testing.T) {
	f := newAPI(t, false)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSendPhoneCodeStoresCodeAndEnforcesQuota(t *testing.T) {
	f := newAPI(t, false)

	resp := f.post(t, "/verification/phone", gin.H{"telephone": "13800138000"}, "")
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)

	code, err := f.mr.Get("auth_code_13800138000")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Positive(t, f.mr.TTL("auth_code_13800138000"))

	resp = f.post(t, "/verification/phone", gin.H{"telephone": "13800138000"}, "")
	require.Equal(t, errorx.CodeSuccess, resp.Code)

	resp = f.post(t, "/verification/phone", gin.H{"telephone": "13800138000"}, "")
	assert.Equal(t, errorx.CodeUserQuotaExceeded, resp.Code)

	global, err := f.mr.Get("verify_quota:phone:global")
	require.NoError(t, err)
	assert.Equal(t, "2", global)
}

func TestSendPhoneCodeResendInterval(t *testing.T) {
	f := newAPI(t, false, func(cfg *config.Config) { cfg.SmsConfig.ResendInterval = 60 })

	resp := f.post(t, "/verification/phone", gin.H{"telephone": "13800138000"}, "")
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)

	resp = f.post(t, "/verification/phone", gin.H{"telephone": "13800138000"}, "")
	assert.Equal(t, errorx.CodeResendTooSoon, resp.Code)
	global, err := f.mr.Get("verify_quota:phone:global")
	require.NoError(t, err)
	assert.Equal(t, "1", global)

	f.mr.FastForward(61 * time.Second)
	resp = f.post(t, "/verification/phone", gin.H{"telephone": "13800138000"}, "")
	assert.Equal(t, errorx.CodeSuccess, resp.Code)
}

func TestSendPhoneCodeInvalidNumber(t *testing.T) {
	f := newAPI(t, false)

	resp := f.post(t, "/verification/phone", gin.H{"telephone": "abc"}, "")
	assert.Equal(t, errorx.CodeInvalidParam, resp.Code)

	// 字符集合法但号段不被当前渠道接受
	resp = f.post(t, "/verification/phone", gin.H{"telephone": "4155550100"}, "")
	assert.Equal(t, errorx.CodeInvalidRecipient, resp.Code)
	assert.False(t, f.mr.Exists("verify_quota:phone:global"))
}

func TestSendEmailCode(t *testing.T) {
	f := newAPI(t, false)

	resp := f.post(t, "/verification/email", gin.H{"email": "Alice@Example.com"}, "")
	require.Equal(t, errorx.CodeSuccess, resp.Code, resp.Msg)
	assert.True(t, f.mr.Exists("auth_code_alice@example.com"))

	resp = f.post(t, "/verification/email", gin.H{"email": "nope"}, "")
	assert.Equal(t, errorx.CodeInvalidParam, resp.Code)
}

func TestVerificationRoutesRequireToken(t *testing.T) {
	jwt.Init("server-test-secret", 5)
	f := newAPI(t, true)

	req := httptest.NewRequest(http.MethodPost, "/verification/phone", bytes.NewBufferString(`{"telephone":"13800138000"}`))
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.GenerateServiceToken("user-center")
	require.NoError(t, err)
	resp := f.post(t, "/verification/phone", gin.H{"telephone": "13800138000"}, token)
	assert.Equal(t, errorx.CodeSuccess, resp.Code)
}
