// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"github.com/gin-gonic/gin"

	"kama_verify_server/internal/handler"
)

// Router 路由管理器
type Router struct {
	handlers    *handler.Handlers
	authEnabled bool // 为 true 时业务路由需要服务间 JWT
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers, authEnabled bool) *Router {
	return &Router{handlers: handlers, authEnabled: authEnabled}
}

// RegisterRoutes 注册所有路由
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", handler.Healthz)
	rt.registerVerificationRoutes(r)
}
