// Package jwt 签发与解析服务间调用使用的 Token
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer         = "kama_verify"
	subjectService = "service_token"
)

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret      string
	TokenExpiry time.Duration // Token 有效期，0 表示不过期
}

// 全局配置，由 Init 函数初始化
var jwtConfig *JWTConfig

// ErrNotInitialized 未调用 Init 或 Secret 为空
var ErrNotInitialized = errors.New("jwt secret is not configured")

// Init 初始化 JWT 配置
func Init(secret string, expiryMinutes int) {
	jwtConfig = &JWTConfig{
		Secret:      secret,
		TokenExpiry: time.Duration(expiryMinutes) * time.Minute,
	}
}

// Enabled Secret 已配置时返回 true
func Enabled() bool {
	return jwtConfig != nil && jwtConfig.Secret != ""
}

// Claims 自定义 JWT 声明
type Claims struct {
	Service string `json:"service"` // 调用方服务名
	jwt.RegisteredClaims
}

// GenerateServiceToken 为调用方服务签发 Token
func GenerateServiceToken(service string) (string, error) {
	if !Enabled() {
		return "", ErrNotInitialized
	}
	now := time.Now()
	claims := Claims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   issuer,
			Subject:  subjectService,
		},
	}
	if jwtConfig.TokenExpiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(jwtConfig.TokenExpiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtConfig.Secret))
}

// ParseToken 解析并验证服务 Token
func ParseToken(tokenString string) (*Claims, error) {
	if !Enabled() {
		return nil, ErrNotInitialized
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtConfig.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subjectService),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
