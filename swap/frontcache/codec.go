package frontcache

import (
	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// ErrIncompressible reports that compressing a page would not shrink it.
// Such pages are not worth caching and belong on the backing store.
var ErrIncompressible = errors.New("incompressible page")

// Codec turns page content into a compact representation and back.
type Codec interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, size int) ([]byte, error)
}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "snappy":
		return snappyCodec{}, nil
	case "lz4":
		return lz4Codec{}, nil
	}
	return nil, errors.Errorf("unknown cache codec %q", name)
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	dst := snappy.Encode(nil, src)
	if len(dst) >= len(src) {
		return nil, ErrIncompressible
	}
	return dst, nil
}

func (snappyCodec) Decompress(src []byte, size int) ([]byte, error) {
	dst, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, errors.Wrap(err, "snappy decode")
	}
	if len(dst) != size {
		return nil, errors.Errorf("snappy decode: got %d bytes, want %d", len(dst), size)
	}
	return dst, nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	var c lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	if n == 0 || n >= len(src) {
		return nil, ErrIncompressible
	}
	return dst[:n], nil
}

func (lz4Codec) Decompress(src []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decode")
	}
	if n != size {
		return nil, errors.Errorf("lz4 decode: got %d bytes, want %d", n, size)
	}
	return dst, nil
}
