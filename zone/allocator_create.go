package zone

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/memutils"
	"github.com/vkngwrapper/arsenal/zone/internal/utils"
	"github.com/vkngwrapper/core/v2/common"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

var allocatorCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	allocatorCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return allocatorCreateFlagsMapping.FlagsToString(f)
}

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator will not be synchronized
	// internally. The consumer must guarantee it is used from only one goroutine at a time or is
	// synchronized by some other mechanism.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
	// AllocatorCreateStrict makes every contract violation fatal: zero-sized or mistagged requests,
	// anonymous static allocations, foreign or stale pointers, platform exhaustion and failed validation
	// panic instead of returning an error
	AllocatorCreateStrict
)

func init() {
	AllocatorCreateExternallySynchronized.Register("AllocatorCreateExternallySynchronized")
	AllocatorCreateStrict.Register("AllocatorCreateStrict")
}

const (
	// DefaultVolumeSize is the VolumeSize used when none is provided via CreateOptions. It is equal to 32Mb.
	DefaultVolumeSize int = 32 * 1024 * 1024
	// MinVolumeSize is the smallest VolumeSize that may be requested
	MinVolumeSize int = 0x1000
)

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
	// VolumeSize is the size of the volume created at startup and the minimum size of every volume
	// created afterward. It is rounded up to Granularity.
	VolumeSize int
	// Source supplies the memory behind every volume. HeapSource is used if it is left empty.
	Source Source
	// Granularity is the multiple to which every block size is rounded. It must be a power of two no
	// smaller than the size of a pointer, which is the default. Coarser granularity trades memory for
	// fewer unusable slivers when request sizes vary a lot.
	Granularity int
}

// New creates a new Allocator and reserves its first volume
//
// logger - The logger that receives the allocator's debug and error output
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Allocator, error) {
	volumeSize := options.VolumeSize
	if volumeSize == 0 {
		volumeSize = DefaultVolumeSize
	} else if volumeSize < MinVolumeSize {
		return nil, errors.Newf("zone.CreateOptions.VolumeSize must be at least %d, but was %d", MinVolumeSize, volumeSize)
	}

	granularity := options.Granularity
	if granularity == 0 {
		granularity = pointerAlignment
	}
	err := memutils.CheckPow2(granularity, "zone.CreateOptions.Granularity")
	if err != nil {
		return nil, err
	}
	if granularity < pointerAlignment {
		return nil, errors.Newf("zone.CreateOptions.Granularity must be at least %d, but was %d", pointerAlignment, granularity)
	}

	source := options.Source
	if source == nil {
		source = HeapSource{}
	}

	allocator := &Allocator{
		logger:      logger,
		createFlags: options.Flags,
		mutex: utils.OptionalMutex{
			UseMutex: options.Flags&AllocatorCreateExternallySynchronized == 0,
		},
		volumes: newVolumeList(logger, source, volumeSize, granularity),
	}

	_, err = allocator.volumes.createVolume(0)
	if err != nil {
		return nil, allocator.violation(err)
	}

	return allocator, nil
}
