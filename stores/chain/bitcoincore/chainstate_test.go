package bitcoincore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtendKey(t *testing.T) {
	tests := []struct {
		name     string
		key      []byte
		length   int
		expected []byte
	}{
		{
			name:     "repeats",
			key:      []byte{0xAA, 0xBB, 0xCC},
			length:   8,
			expected: []byte{0xAA, 0xBB, 0xCC, 0xAA, 0xBB, 0xCC, 0xAA, 0xBB},
		},
		{
			name:     "truncates",
			key:      []byte{0x11, 0x22},
			length:   2,
			expected: []byte{0x11, 0x22},
		},
		{
			name:     "no key",
			key:      nil,
			length:   3,
			expected: []byte{0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extendKey(tt.key, tt.length))
		})
	}
}

func TestDeobfuscate(t *testing.T) {
	key := []byte{0x0f, 0xf0}
	value := []byte{0x01, 0x02, 0x03}

	obfuscated := deobfuscate(key, value)
	assert.Equal(t, []byte{0x0e, 0xf2, 0x0c}, obfuscated)
	assert.Equal(t, value, deobfuscate(key, obfuscated))
}
