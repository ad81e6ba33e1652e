package zone

import "github.com/cockroachdb/errors"

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks github.com/vkngwrapper/arsenal/zone Source

// Source is the platform allocator that supplies the backing memory of every volume. Reserve must return
// a zeroed slice of exactly size bytes. Release receives slices previously returned by Reserve.
type Source interface {
	Reserve(size int) ([]byte, error)
	Release(memory []byte) error
}

// HeapSource reserves volume memory from the Go heap
type HeapSource struct{}

var _ Source = HeapSource{}

func (HeapSource) Reserve(size int) (memory []byte, err error) {
	if size <= 0 {
		return nil, errors.Newf("cannot reserve a volume of %d bytes", size)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			memory = nil
			err = errors.Newf("heap refused %d bytes: %v", size, recovered)
		}
	}()

	return make([]byte, size), nil
}

func (HeapSource) Release(memory []byte) error {
	return nil
}
