package request

// SendEmailCodeRequest 发送邮箱验证码请求
// 使用位置:
//   - internal/handler/verification_handler.go: SendEmailCode
type SendEmailCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SendPhoneCodeRequest 发送短信验证码请求
// 号码格式由当前短信渠道校验，这里只做字符集检查
// 使用位置:
//   - internal/handler/verification_handler.go: SendPhoneCode
type SendPhoneCodeRequest struct {
	Telephone string `json:"telephone" binding:"required,mobile"`
}
