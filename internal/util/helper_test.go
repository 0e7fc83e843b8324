package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneSlice(t *testing.T) {
	src := []byte{0x7E, 0x7D, 0x01}

	clone := CloneSlice(src, 0)
	assert.Equal(t, src, clone)

	clone[0] = 0x00
	assert.Equal(t, byte(0x7E), src[0], "clone must not alias src")

	padded := CloneSlice(src, 5)
	assert.Equal(t, []byte{0x7E, 0x7D, 0x01, 0x00, 0x00}, padded)

	truncated := CloneSlice(src, 2)
	assert.Equal(t, []byte{0x7E, 0x7D}, truncated)

	empty := CloneSlice([]byte{}, 0)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
