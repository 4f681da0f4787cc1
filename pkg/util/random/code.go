package random

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Code 生成 length 位安全随机数字验证码，允许前导 0
// 例如 length=6 时取值范围 000000-999999
func Code(length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return strings.Repeat("0", length) // fallback
	}
	s := n.String()
	return strings.Repeat("0", length-len(s)) + s
}
