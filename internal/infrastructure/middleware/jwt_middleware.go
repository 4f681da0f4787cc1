package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kama_verify_server/pkg/errorx"
	"kama_verify_server/pkg/util/jwt"
)

// ContextServiceKey 调用方服务名在 gin.Context 中的 key
const ContextServiceKey = "service"

// JWTAuth 服务间调用认证中间件
// 验证 Bearer Token 并将调用方服务名存入上下文
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Authorization header must be a Bearer token")
			return
		}

		claims, err := jwt.ParseToken(parts[1])
		if err != nil {
			zap.L().Warn("reject service token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abortUnauthorized(c, "token is expired or invalid")
			return
		}

		c.Set(ContextServiceKey, claims.Service)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errorx.CodeUnauthorized,
		"msg":  msg,
	})
}
