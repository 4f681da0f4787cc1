package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kama_verify_server/internal/config"
	myredis "kama_verify_server/internal/dao/redis"
	"kama_verify_server/internal/handler"
	"kama_verify_server/internal/https_server"
	"kama_verify_server/internal/infrastructure/logger"
	"kama_verify_server/internal/service/quota"
	"kama_verify_server/internal/service/verification"
	"kama_verify_server/pkg/util/jwt"
)

// serve 启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅退出
func serve(conf *config.Config) error {
	// 1. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("日志初始化成功")

	// 2. 初始化 JWT
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	if !jwt.Enabled() {
		zap.L().Warn("未配置 jwtConfig.secret，验证码接口不做调用方认证")
	}

	// 3. 初始化额度计数与验证码缓存
	var (
		store quota.Store
		cache verification.CodeCache
	)
	switch conf.QuotaConfig.Store {
	case "memory":
		store = quota.NewMemoryStore(nil)
		zap.L().Warn("使用进程内额度计数，多实例之间不共享额度，验证码不会写入缓存")
	default:
		client, err := myredis.NewClient(conf.RedisConfig)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		store = myredis.NewQuotaStore(client)
		cache = myredis.NewRedisCache(client)
		zap.L().Info("Redis 初始化成功")
	}

	// 4. 初始化验证码发送服务
	if conf.SmsConfig.Channel == "" {
		zap.L().Warn("未配置短信渠道，短信验证码接口将返回配置错误")
	}
	svc := verification.NewService(conf, verification.Deps{Store: store})
	issuer := verification.NewIssuer(svc, cache, conf.MainConfig.AppName, conf.SmsConfig)
	zap.L().Info("验证码服务初始化成功",
		zap.String("smsChannel", conf.SmsConfig.Channel),
		zap.String("quotaStore", conf.QuotaConfig.Store),
	)

	// 5. 初始化 HTTP 服务器
	if err := handler.InitTrans("zh"); err != nil {
		return fmt.Errorf("init validator translations: %w", err)
	}
	engine := https_server.Init(conf, handler.NewHandlers(issuer), jwt.Enabled())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP 服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 6. 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server running fault: %w", err)
	}

	zap.L().Info("关闭服务器...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("服务器关闭异常", zap.Error(err))
		return err
	}
	zap.L().Info("服务器已关闭")
	return nil
}
