//go:build !linux

package store

import (
	"os"

	"github.com/juju/errors"
)

func platformFibmap(f *os.File) (BlockMapper, uint, error) {
	return nil, 0, errors.NotSupportedf("FIBMAP block mapping on this platform")
}
