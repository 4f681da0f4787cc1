// Package mask 对写入日志的收件人做脱敏
package mask

import "strings"

// Phone 保留前 3 位与后 4 位，例如 +86138****8000
func Phone(phone string) string {
	r := []rune(strings.TrimSpace(phone))
	if len(r) <= 7 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:len(r)-8]) + "****" + string(r[len(r)-4:])
}

// Email 仅保留本地部分首字符与域名，例如 a***@example.com
func Email(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local := []rune(email[:at])
	return string(local[0]) + "***" + email[at:]
}
