package frontcache

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func compressiblePage(size int) []byte {
	return bytes.Repeat([]byte("swap"), size/4)
}

func randomPage(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(42)).Read(data)
	return data
}

func TestCodecRoundtrip(t *testing.T) {
	for _, name := range []string{"snappy", "lz4"} {
		t.Run(name, func(t *testing.T) {
			codec, err := NewCodec(name)
			assert.NoError(t, err)
			assert.Equal(t, name, codec.Name())

			raw := compressiblePage(4096)
			comp, err := codec.Compress(raw)
			assert.NoError(t, err)
			assert.Less(t, len(comp), len(raw))

			back, err := codec.Decompress(comp, len(raw))
			assert.NoError(t, err)
			assert.Equal(t, raw, back)
		})
	}
}

func TestCodecIncompressible(t *testing.T) {
	for _, name := range []string{"snappy", "lz4"} {
		t.Run(name, func(t *testing.T) {
			codec, err := NewCodec(name)
			assert.NoError(t, err)

			_, err = codec.Compress(randomPage(4096))
			assert.ErrorIs(t, err, ErrIncompressible)
		})
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	for _, name := range []string{"snappy", "lz4"} {
		t.Run(name, func(t *testing.T) {
			codec, err := NewCodec(name)
			assert.NoError(t, err)

			_, err = codec.Decompress([]byte{0xde, 0xad, 0xbe, 0xef}, 4096)
			assert.Error(t, err)
		})
	}
}

func TestNewCodecUnknown(t *testing.T) {
	_, err := NewCodec("zstd")
	assert.Error(t, err)
}
