// Package https_server 创建 Gin 引擎并配置中间件与路由
package https_server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"kama_verify_server/internal/config"
	"kama_verify_server/internal/handler"
	"kama_verify_server/internal/infrastructure/logger"
	"kama_verify_server/internal/infrastructure/middleware"
	"kama_verify_server/internal/router"
)

// Init 创建 Gin 引擎并返回
// 配置顺序：日志与恢复中间件 -> 可选 TLS 重定向 -> CORS -> 路由
// authEnabled 为 true 时验证码接口需要服务间 JWT
func Init(conf *config.Config, handlers *handler.Handlers, authEnabled bool) *gin.Engine {
	if conf.MainConfig.Mode != "dev" && conf.MainConfig.Mode != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 不使用 gin.Default()，以便完全控制中间件
	engine := gin.New()
	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	if conf.MainConfig.ForceTLS {
		engine.Use(middleware.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port, gin.Mode() != gin.ReleaseMode))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	rt := router.NewRouter(handlers, authEnabled)
	rt.RegisterRoutes(engine)

	return engine
}
