//go:build linux

package store

import (
	"math"
	"math/bits"
	"os"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// fibmapIoctl is FIBMAP from <linux/fs.h>, _IO(0x00, 1), which encodes
// to 1 under the generic ioctl layout (amd64, arm64, and the other
// ports Go supports except mips/ppc/sparc); golang.org/x/sys/unix does
// not export it.
const fibmapIoctl = 1

// FibmapMapper asks the filesystem where a file's logical blocks live
// with the FIBMAP ioctl. It needs a filesystem that implements bmap and
// usually root, which is also what formatting a real swap store takes.
type FibmapMapper struct {
	f *os.File
}

func NewFibmapMapper(f *os.File) *FibmapMapper {
	return &FibmapMapper{f: f}
}

func (m *FibmapMapper) MapBlock(logical uint64) (uint64, error) {
	if logical > math.MaxInt32 {
		return 0, errors.NotValidf("logical block %d beyond FIBMAP range", logical)
	}
	blk := int32(logical)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, m.f.Fd(), fibmapIoctl, uintptr(unsafe.Pointer(&blk)))
	if errno != 0 {
		return 0, errors.Annotatef(errno, "FIBMAP logical block %d", logical)
	}
	return uint64(blk), nil
}

// FSBlockSize returns the block size the filesystem holding f maps in.
func FSBlockSize(f *os.File) (int, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return 0, errors.Trace(err)
	}
	return int(st.Blksize), nil
}

func platformFibmap(f *os.File) (BlockMapper, uint, error) {
	blockSize, err := FSBlockSize(f)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	if blockSize <= 0 || blockSize&(blockSize-1) != 0 {
		return nil, 0, errors.NotValidf("filesystem block size %d", blockSize)
	}
	return NewFibmapMapper(f), uint(bits.TrailingZeros(uint(blockSize))), nil
}
