package router

import (
	"github.com/gin-gonic/gin"

	"kama_verify_server/internal/infrastructure/middleware"
)

// registerVerificationRoutes 注册验证码签发路由
// 调用方是内部服务，不面向浏览器直接开放
func (rt *Router) registerVerificationRoutes(r *gin.Engine) {
	group := r.Group("/verification")
	if rt.authEnabled {
		group.Use(middleware.JWTAuth())
	}
	{
		group.POST("/email", rt.handlers.Verification.SendEmailCode)
		group.POST("/phone", rt.handlers.Verification.SendPhoneCode)
	}
}
