package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestHeaderRoundTrip(t *testing.T) {
	h, err := NewHeader(4095, "primary")
	assert.NoError(t, err)

	pageBytes := h.SerializeBytes(4096)
	assert.Equal(t, 4096, len(pageBytes))
	assert.Equal(t, HeaderMagic, string(pageBytes[0:4]))

	parsed, err := ParseHeader(pageBytes)
	assert.NoError(t, err)
	assert.Equal(t, uint32(HeaderVersion), parsed.Version)
	assert.Equal(t, uint64(4095), parsed.LastSlot)
	assert.Equal(t, "primary", parsed.Label)
	assert.Equal(t, h.UUID, parsed.UUID)
}

func TestHeaderRejectsCorruption(t *testing.T) {
	h, err := NewHeader(100, "x")
	assert.NoError(t, err)
	pageBytes := h.SerializeBytes(4096)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), pageBytes...)
		bad[0] = 'Y'
		_, err := ParseHeader(bad)
		assert.True(t, errors.IsNotValid(err))
	})

	t.Run("bad version", func(t *testing.T) {
		bad := append([]byte(nil), pageBytes...)
		bad[4] = 99
		_, err := ParseHeader(bad)
		assert.True(t, errors.IsNotValid(err))
	})

	t.Run("flipped payload bit", func(t *testing.T) {
		bad := append([]byte(nil), pageBytes...)
		bad[9] ^= 0x01 // inside last-slot field, checksum no longer matches
		_, err := ParseHeader(bad)
		assert.True(t, errors.IsNotValid(err))
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ParseHeader(pageBytes[:16])
		assert.True(t, errors.IsNotValid(err))
	})
}

func TestHeaderLabelTooLong(t *testing.T) {
	_, err := NewHeader(1, "0123456789012345678901234567890123456789")
	assert.True(t, errors.IsNotValid(err))
}

func TestHeaderUUIDString(t *testing.T) {
	h := &Header{}
	copy(h.UUID[:], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10})
	assert.Equal(t, "01020304-0506-0708-090a-0b0c0d0e0f10", h.UUIDString())
}

func TestFormatStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.img")
	h, err := FormatStore(path, 1<<20, 4096, "fmt-test")
	assert.NoError(t, err)
	assert.Equal(t, uint64(255), h.LastSlot)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, 1<<20, len(data))

	parsed, err := ParseHeader(data[:4096])
	assert.NoError(t, err)
	assert.Equal(t, "fmt-test", parsed.Label)
	assert.Equal(t, h.UUID, parsed.UUID)
}

func TestFormatStoreTooSmall(t *testing.T) {
	_, err := FormatStore(filepath.Join(t.TempDir(), "tiny.img"), 4096, 4096, "")
	assert.True(t, errors.IsNotValid(err))
}
