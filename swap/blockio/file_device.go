package blockio

import (
	"os"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/util"
)

// FileDevice adapts a regular file to the Device interface. It backs
// block-type stores the way a loop device backs swap partitions in
// development setups.
type FileDevice struct {
	path    string
	file    *os.File
	sectors uint64

	readCount  int64
	writeCount int64
}

// OpenFileDevice opens an existing device image.
func OpenFileDevice(path string) (*FileDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Annotatef(err, "open device image %s", path)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Trace(err)
	}
	if info.Size()%SectorSize != 0 {
		file.Close()
		return nil, errors.NotValidf("device image %s size %d not sector aligned", path, info.Size())
	}
	return &FileDevice{
		path:    path,
		file:    file,
		sectors: uint64(info.Size()) / SectorSize,
	}, nil
}

// CreateFileDevice creates a zero-filled device image of size bytes and
// opens it.
func CreateFileDevice(path string, size int64) (*FileDevice, error) {
	if err := util.CreateFileBySize(path, size); err != nil {
		return nil, errors.Annotatef(err, "create device image %s", path)
	}
	return OpenFileDevice(path)
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	atomic.AddInt64(&d.readCount, 1)
	return d.file.ReadAt(p, off)
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	atomic.AddInt64(&d.writeCount, 1)
	return d.file.WriteAt(p, off)
}

func (d *FileDevice) Sync() error {
	return d.file.Sync()
}

func (d *FileDevice) Sectors() uint64 {
	return d.sectors
}

func (d *FileDevice) Close() error {
	return d.file.Close()
}

func (d *FileDevice) Path() string {
	return d.path
}

// ReadCount returns the number of read calls served.
func (d *FileDevice) ReadCount() int64 {
	return atomic.LoadInt64(&d.readCount)
}

// WriteCount returns the number of write calls served.
func (d *FileDevice) WriteCount() int64 {
	return atomic.LoadInt64(&d.writeCount)
}
