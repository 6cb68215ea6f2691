package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720, 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))

	data := []byte("latch-free log")
	assert.Equal(t, CRC32C(data), UpdateCRC32C(CRC32C(data[:5]), data[5:]))
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key([]byte("abc")), KeyString("abc"))
	assert.NotEqual(t, Key([]byte("abc")), Key([]byte("abd")))
	assert.Equal(t, uint64(0xef46db3751d8e999), Key(nil))
}
