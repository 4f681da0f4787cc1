package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kama_verify_server/pkg/util/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthEngine() *gin.Engine {
	r := gin.New()
	r.Use(JWTAuth())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextServiceKey))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	jwt.Init("middleware-test-secret", 5)
	r := newAuthEngine()

	token, err := jwt.GenerateServiceToken("user-center")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "user-center", w.Body.String())
			}
		})
	}
}

func TestTlsHandlerRedirects(t *testing.T) {
	r := gin.New()
	r.Use(TlsHandler("verify.example.com", 443, false))
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://verify.example.com/healthz", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://verify.example.com"))
	assert.NotContains(t, w.Body.String(), "ok")
}

func TestTlsHandlerPassesProxiedHTTPS(t *testing.T) {
	r := gin.New()
	r.Use(TlsHandler("verify.example.com", 443, false))
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://verify.example.com/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
