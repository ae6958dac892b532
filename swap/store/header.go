package store

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/util"
)

// Slot 0 of every store holds the header page and never carries swap
// data. Layout, all integers little-endian:
//
//	[0:4)    magic "XSWP"
//	[4:8)    format version
//	[8:16)   last addressable slot
//	[16:32)  uuid
//	[32:64)  label, NUL padded
//	[64:72)  xxhash64 of bytes [0:64)
const (
	HeaderMagic   = "XSWP"
	HeaderVersion = 1

	headerBodySize = 64
	headerFullSize = 72
	labelSize      = 32
)

// Header identifies a formatted backing store.
type Header struct {
	Version  uint32
	LastSlot uint64
	UUID     [16]byte
	Label    string
}

// NewHeader builds a header for a store whose highest addressable slot is
// lastSlot. The uuid comes from the system entropy source.
func NewHeader(lastSlot uint64, label string) (*Header, error) {
	if len(label) > labelSize {
		return nil, errors.NotValidf("label %q longer than %d bytes", label, labelSize)
	}
	h := &Header{
		Version:  HeaderVersion,
		LastSlot: lastSlot,
		Label:    label,
	}
	if _, err := rand.Read(h.UUID[:]); err != nil {
		return nil, errors.Trace(err)
	}
	return h, nil
}

// SerializeBytes renders the header into a full page of pageSize bytes.
func (h *Header) SerializeBytes(pageSize int) []byte {
	buff := make([]byte, 0, headerFullSize)
	buff = util.WriteBytes(buff, []byte(HeaderMagic))
	buff = util.WriteUB4(buff, h.Version)
	buff = util.WriteUB8(buff, h.LastSlot)
	buff = util.WriteBytes(buff, h.UUID[:])

	label := make([]byte, labelSize)
	copy(label, h.Label)
	buff = util.WriteBytes(buff, label)

	buff = util.WriteUB8(buff, util.HashCode(buff[:headerBodySize]))

	pageBytes := make([]byte, pageSize)
	copy(pageBytes, buff)
	return pageBytes
}

// ParseHeader validates and decodes a header page.
func ParseHeader(buff []byte) (*Header, error) {
	if len(buff) < headerFullSize {
		return nil, errors.NotValidf("header page of %d bytes", len(buff))
	}

	cursor := 0
	cursor, magic := util.ReadBytes(buff, cursor, 4)
	if string(magic) != HeaderMagic {
		return nil, errors.NotValidf("store magic %q", string(magic))
	}

	h := &Header{}
	cursor, h.Version = util.ReadUB4(buff, cursor)
	if h.Version != HeaderVersion {
		return nil, errors.NotValidf("store format version %d", h.Version)
	}

	cursor, h.LastSlot = util.ReadUB8(buff, cursor)

	var uuid []byte
	cursor, uuid = util.ReadBytes(buff, cursor, 16)
	copy(h.UUID[:], uuid)

	cursor, label := util.ReadBytes(buff, cursor, labelSize)
	end := 0
	for end < len(label) && label[end] != 0 {
		end++
	}
	h.Label = string(label[:end])

	_, sum := util.ReadUB8(buff, cursor)
	if sum != util.HashCode(buff[:headerBodySize]) {
		return nil, errors.NotValidf("store header checksum")
	}

	return h, nil
}

// UUIDString formats the uuid in the usual 8-4-4-4-12 form.
func (h *Header) UUIDString() string {
	u := h.UUID
	return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

// FormatStore creates (or truncates) a swap file of size bytes and writes
// a fresh header into slot 0. The rest of the file stays zero-filled.
func FormatStore(path string, size int64, pageSize int, label string) (*Header, error) {
	if size < int64(pageSize)*2 {
		return nil, errors.NotValidf("store size %d below two pages", size)
	}
	if err := util.CreateFileBySize(path, size); err != nil {
		return nil, errors.Annotatef(err, "create store %s", path)
	}

	slots := uint64(size) / uint64(pageSize)
	header, err := NewHeader(slots-1, label)
	if err != nil {
		return nil, errors.Trace(err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	if _, err := f.WriteAt(header.SerializeBytes(pageSize), 0); err != nil {
		return nil, errors.Annotatef(err, "write store header %s", path)
	}
	if err := f.Sync(); err != nil {
		return nil, errors.Trace(err)
	}
	return header, nil
}
