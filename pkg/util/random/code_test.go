package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	for _, length := range []int{1, 4, 6, 8} {
		code := Code(length)
		assert.Len(t, code, length)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', code)
		}
	}
	assert.Empty(t, Code(0))
}
