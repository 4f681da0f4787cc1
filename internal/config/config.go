// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找，部分字段可由 KAMA_* 环境变量覆盖
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName  string `toml:"appName"`  // 应用名称，用于日志标识等
	Host     string `toml:"host"`     // 服务器监听地址，如 "0.0.0.0"
	Port     int    `toml:"port"`     // 服务器监听端口，如 8000
	Mode     string `toml:"mode"`     // 运行模式：dev / release
	ForceTLS bool   `toml:"forceTLS"` // 是否由本服务执行 HTTP -> HTTPS 重定向
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// JWTConfig 服务间调用的 JWT 认证配置，Secret 为空时不启用认证
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟）
}

// ChannelQuota 单个渠道（邮件/短信）的额度配置
// 全局计数器与单收件人计数器共用同一个窗口
type ChannelQuota struct {
	GlobalDailyLimit          int64 `toml:"globalDailyLimit"`          // 全局每窗口最多发送次数
	SingleRecipientDailyLimit int64 `toml:"singleRecipientDailyLimit"` // 单个收件人每窗口最多发送次数
	WindowSeconds             int64 `toml:"windowSeconds"`             // 计数窗口（秒），同时作为计数 key 的 TTL
}

// QuotaConfig 发送额度配置
type QuotaConfig struct {
	Store string       `toml:"store"` // 计数存储："redis"（默认，多实例共享）或 "memory"
	Email ChannelQuota `toml:"email"`
	Phone ChannelQuota `toml:"phone"`
}

// EmailConfig SMTP 发信配置
type EmailConfig struct {
	Host     string `toml:"host"`     // SMTP 服务器地址
	Port     int    `toml:"port"`     // SMTP 端口，465 一般为隐式 TLS
	Secure   bool   `toml:"secure"`   // true: 连接即 TLS；false: 明文连接，服务端支持时升级 STARTTLS
	User     string `toml:"user"`     // 认证用户名，留空则不认证
	Password string `toml:"password"` // 认证密码
	From     string `toml:"from"`     // 默认发件人，调用方未指定 from 时使用
	Helo     string `toml:"helo"`     // EHLO 使用的主机名
	Timeout  int    `toml:"timeout"`  // 网络超时（秒）
}

// AliyunSmsConfig 阿里云短信配置
type AliyunSmsConfig struct {
	AccessKeyID     string `toml:"accessKeyID"`     // 阿里云 AccessKey ID
	AccessKeySecret string `toml:"accessKeySecret"` // 阿里云 AccessKey Secret
	SignName        string `toml:"signName"`        // 短信签名名称
	TemplateCode    string `toml:"templateCode"`    // 短信模板 Code
}

// SpugSmsConfig 模板推送网关配置（仅支持中国大陆号码）
type SpugSmsConfig struct {
	BaseURL    string `toml:"baseURL"`    // 网关地址，默认 https://push.spug.cc
	TemplateID string `toml:"templateID"` // 模板 ID
	Timeout    int    `toml:"timeout"`    // HTTP 超时（秒）
}

// TwilioSmsConfig Twilio 国际短信配置
type TwilioSmsConfig struct {
	AccountSID string `toml:"accountSID"`
	AuthToken  string `toml:"authToken"`
	From       string `toml:"from"` // 发送方号码（E.164）或 Messaging Service SID
}

// SmsConfig 短信通道配置
type SmsConfig struct {
	Channel        string          `toml:"channel"`        // 选用的短信渠道：aliyun / spug / twilio / mock，留空表示未开通短信
	SenderName     string          `toml:"senderName"`     // 短信中展示的应用名称
	CodeLength     int             `toml:"codeLength"`     // 验证码位数
	Expires        int             `toml:"expires"`        // 验证码有效期（分钟）
	ResendInterval int             `toml:"resendInterval"` // 同一收件人两次获取验证码的最小间隔（秒），0 表示不限制
	Aliyun         AliyunSmsConfig `toml:"aliyun"`
	Spug           SpugSmsConfig   `toml:"spug"`
	Twilio         TwilioSmsConfig `toml:"twilio"`
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig  `toml:"mainConfig"`  // 主配置
	RedisConfig `toml:"redisConfig"` // Redis 配置
	LogConfig   `toml:"logConfig"`   // 日志配置
	JWTConfig   `toml:"jwtConfig"`   // JWT 配置
	QuotaConfig `toml:"quotaConfig"` // 发送额度配置
	EmailConfig `toml:"emailConfig"` // SMTP 配置
	SmsConfig   `toml:"smsConfig"`   // 短信配置
}

// config 全局配置单例，延迟加载
var config *Config

// Default 返回带默认值的配置，文件与环境变量在此基础上覆盖
func Default() *Config {
	return &Config{
		MainConfig: MainConfig{
			AppName: "kama_verify_server",
			Host:    "0.0.0.0",
			Port:    8000,
			Mode:    "release",
		},
		RedisConfig: RedisConfig{Host: "127.0.0.1", Port: 6379},
		LogConfig:   LogConfig{LogPath: "./logs", Level: "info"},
		QuotaConfig: QuotaConfig{
			Store: "redis",
			Email: ChannelQuota{GlobalDailyLimit: 1000, SingleRecipientDailyLimit: 10, WindowSeconds: 86400},
			Phone: ChannelQuota{GlobalDailyLimit: 100, SingleRecipientDailyLimit: 3, WindowSeconds: 86400},
		},
		EmailConfig: EmailConfig{Port: 465, Secure: true, Helo: "localhost", Timeout: 10},
		SmsConfig: SmsConfig{
			SenderName:     "KamaChat",
			CodeLength:     6,
			Expires:        5,
			ResendInterval: 60,
			Spug:           SpugSmsConfig{BaseURL: "https://push.spug.cc", Timeout: 10},
		},
	}
}

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig(cfg *Config) error {
	// 候选配置文件路径（优先加载本地配置）
	paths := []string{
		"configs/config_local.toml",
		"configs/config.toml",
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",
	}

	for _, path := range paths {
		if _, err := toml.DecodeFile(path, cfg); err == nil {
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// ApplyEnv 使用 KAMA_* 环境变量覆盖配置
// 数值解析失败时保留原值
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("KAMA_SMS_CHANNEL")); v != "" {
		cfg.SmsConfig.Channel = v
	}
	if v := strings.TrimSpace(os.Getenv("KAMA_QUOTA_STORE")); v != "" {
		cfg.QuotaConfig.Store = v
	}
	cfg.QuotaConfig.Email.GlobalDailyLimit = getEnvInt64("KAMA_EMAIL_GLOBAL_DAILY_LIMIT", cfg.QuotaConfig.Email.GlobalDailyLimit)
	cfg.QuotaConfig.Email.SingleRecipientDailyLimit = getEnvInt64("KAMA_EMAIL_USER_DAILY_LIMIT", cfg.QuotaConfig.Email.SingleRecipientDailyLimit)
	cfg.QuotaConfig.Email.WindowSeconds = getEnvInt64("KAMA_EMAIL_WINDOW_SECONDS", cfg.QuotaConfig.Email.WindowSeconds)
	cfg.QuotaConfig.Phone.GlobalDailyLimit = getEnvInt64("KAMA_PHONE_GLOBAL_DAILY_LIMIT", cfg.QuotaConfig.Phone.GlobalDailyLimit)
	cfg.QuotaConfig.Phone.SingleRecipientDailyLimit = getEnvInt64("KAMA_PHONE_USER_DAILY_LIMIT", cfg.QuotaConfig.Phone.SingleRecipientDailyLimit)
	cfg.QuotaConfig.Phone.WindowSeconds = getEnvInt64("KAMA_PHONE_WINDOW_SECONDS", cfg.QuotaConfig.Phone.WindowSeconds)
}

func getEnvInt64(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件并应用环境变量
func GetConfig() *Config {
	if config == nil {
		config = Default()
		_ = LoadConfig(config) // 找不到配置文件时使用默认值
		ApplyEnv(config)
	}
	return config
}
