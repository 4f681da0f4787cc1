package handler

// Handlers 聚合所有 Handler 实例，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Verification *VerificationHandler
}

// NewHandlers 创建并注入所有 Handler 实例
func NewHandlers(issuer CodeIssuer) *Handlers {
	return &Handlers{
		Verification: NewVerificationHandler(issuer),
	}
}
