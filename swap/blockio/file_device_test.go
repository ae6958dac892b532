package blockio

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileDeviceCreateAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.img")
	dev, err := CreateFileDevice(path, 1<<20)
	assert.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, uint64(1<<20/SectorSize), dev.Sectors())
	assert.Equal(t, path, dev.Path())

	payload := bytes.Repeat([]byte{0xcd}, 4096)
	n, err := dev.WriteAt(payload, 64*SectorSize)
	assert.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.NoError(t, dev.Sync())

	got := make([]byte, 4096)
	n, err = dev.ReadAt(got, 64*SectorSize)
	assert.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, payload, got)

	assert.Equal(t, int64(1), dev.ReadCount())
	assert.Equal(t, int64(1), dev.WriteCount())
}

func TestFileDeviceReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.img")
	dev, err := CreateFileDevice(path, 1<<16)
	assert.NoError(t, err)

	payload := bytes.Repeat([]byte{7}, 512)
	_, err = dev.WriteAt(payload, 0)
	assert.NoError(t, err)
	assert.NoError(t, dev.Close())

	dev2, err := OpenFileDevice(path)
	assert.NoError(t, err)
	defer dev2.Close()

	got := make([]byte, 512)
	_, err = dev2.ReadAt(got, 0)
	assert.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFileDeviceMissing(t *testing.T) {
	_, err := OpenFileDevice(filepath.Join(t.TempDir(), "missing.img"))
	assert.Error(t, err)
}
