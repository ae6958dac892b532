package blockio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRAMDeviceZeroFill(t *testing.T) {
	dev := NewRAMDevice(4096, 1024)
	buf := make([]byte, 4096)
	buf[0] = 0xff

	n, err := dev.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, make([]byte, 4096), buf)
	assert.Equal(t, 0, dev.PagesStored())
}

func TestRAMDeviceRoundTrip(t *testing.T) {
	dev := NewRAMDevice(4096, 1024)
	payload := bytes.Repeat([]byte{0xab}, 4096)

	n, err := dev.WriteAt(payload, 8*4096)
	assert.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, 1, dev.PagesStored())

	got := make([]byte, 4096)
	_, err = dev.ReadAt(got, 8*4096)
	assert.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRAMDeviceCompoundSpan(t *testing.T) {
	// one transfer spanning four allocation units
	dev := NewRAMDevice(4096, 1024)
	payload := make([]byte, 4*4096)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	_, err := dev.WriteAt(payload, 4096)
	assert.NoError(t, err)
	assert.Equal(t, 4, dev.PagesStored())

	got := make([]byte, len(payload))
	_, err = dev.ReadAt(got, 4096)
	assert.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRAMDevicePageRW(t *testing.T) {
	dev := NewRAMDevice(4096, 1024)
	payload := bytes.Repeat([]byte{0x5a}, 4096)

	sector := uint64(3 * 8) // slot 3 with 8 sectors per page
	assert.NoError(t, dev.WritePage(sector, payload))

	got := make([]byte, 4096)
	assert.NoError(t, dev.ReadPage(sector, got))
	assert.Equal(t, payload, got)
}

func TestRAMDeviceSlotFreeNotify(t *testing.T) {
	dev := NewRAMDevice(4096, 1024)
	payload := bytes.Repeat([]byte{1}, 4096)
	_, err := dev.WriteAt(payload, 5*4096)
	assert.NoError(t, err)
	assert.Equal(t, 1, dev.PagesStored())

	dev.SlotFreeNotify(5)
	assert.Equal(t, 0, dev.PagesStored())
	assert.Equal(t, int64(1), dev.Discards())

	// freed slot reads back zeroed
	got := make([]byte, 4096)
	_, err = dev.ReadAt(got, 5*4096)
	assert.NoError(t, err)
	assert.Equal(t, make([]byte, 4096), got)

	// freeing an empty slot is a no-op
	dev.SlotFreeNotify(5)
	assert.Equal(t, int64(1), dev.Discards())
}

func TestRAMDeviceRangeChecks(t *testing.T) {
	dev := NewRAMDevice(4096, 8) // 4KB total
	buf := make([]byte, 4096)

	_, err := dev.ReadAt(buf, 1) // unaligned
	assert.Error(t, err)

	_, err = dev.WriteAt(buf, 4096) // beyond end
	assert.Error(t, err)
}
