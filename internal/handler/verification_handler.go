// Package handler 提供 HTTP 请求处理器
// 本文件处理验证码签发相关的 API 请求
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"kama_verify_server/internal/dto/request"
	"kama_verify_server/internal/service/verification"
)

// CodeIssuer 验证码签发接口，由 verification.Issuer 实现
type CodeIssuer interface {
	IssuePhone(ctx context.Context, phone string) (*verification.PhoneReceipt, error)
	IssueEmail(ctx context.Context, addr string) (*verification.EmailReceipt, error)
}

// VerificationHandler 验证码签发处理器
type VerificationHandler struct {
	issuer CodeIssuer
}

// NewVerificationHandler 创建验证码签发处理器
func NewVerificationHandler(issuer CodeIssuer) *VerificationHandler {
	return &VerificationHandler{issuer: issuer}
}

// SendEmailCode 发送邮箱验证码
// POST /verification/email
// 请求体: request.SendEmailCodeRequest
// 响应: verification.EmailReceipt
func (h *VerificationHandler) SendEmailCode(c *gin.Context) {
	var req request.SendEmailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	receipt, err := h.issuer.IssueEmail(c.Request.Context(), req.Email)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, receipt)
}

// SendPhoneCode 发送短信验证码
// POST /verification/phone
// 请求体: request.SendPhoneCodeRequest
// 响应: verification.PhoneReceipt
func (h *VerificationHandler) SendPhoneCode(c *gin.Context) {
	var req request.SendPhoneCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	receipt, err := h.issuer.IssuePhone(c.Request.Context(), req.Telephone)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, receipt)
}

// Healthz 存活检查
// GET /healthz
func Healthz(c *gin.Context) {
	HandleSuccess(c, gin.H{"status": "ok"})
}
