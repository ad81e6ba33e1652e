//go:build unix

package zone

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// MappedSource reserves volume memory as anonymous private mappings, keeping large volumes out of the
// Go heap
type MappedSource struct{}

var _ Source = MappedSource{}

func (MappedSource) Reserve(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Newf("cannot map a volume of %d bytes", size)
	}

	memory, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap of %d bytes failed", size)
	}

	return memory, nil
}

func (MappedSource) Release(memory []byte) error {
	if len(memory) == 0 {
		return nil
	}

	err := unix.Munmap(memory)
	if err != nil {
		return errors.Wrapf(err, "munmap of %d bytes failed", len(memory))
	}
	return nil
}
