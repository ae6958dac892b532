package util

import (
	"os"
	"path/filepath"
)

// PathExists 判断文件或者目录是否存在
func PathExists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	return !os.IsNotExist(err)
}

// EnsureDir creates the directory and any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// CreateFileBySize creates a file of the given size, pre-allocated with zeros.
// The parent directory is created when missing.
func CreateFileBySize(path string, size int64) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err = f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
