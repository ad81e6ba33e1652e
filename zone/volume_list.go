package zone

import (
	"fmt"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/memutils"
	"golang.org/x/exp/slog"
	"math"
	"sync/atomic"
)

const (
	// volumeSlack is added to a request that does not fit in a default-sized volume
	volumeSlack int = 0x1000
	// volumeUtilization is the fraction of a volume's capacity past which it is no longer scanned.
	// Purgeable blocks count toward it, so a volume filled with cache is never revisited to reclaim
	// that cache: requests go to a new volume instead until FreeTagRange or Free empties it.
	volumeUtilization float64 = 0.95
)

// Volume ids are unique across every allocator in the process so a pointer from one allocator can
// never resolve in another
var lastVolumeID uint32

// volumeList is the growable, ordered set of volumes behind one allocator
type volumeList struct {
	logger      *slog.Logger
	source      Source
	volumeSize  int
	granularity int

	volumes  []*volume
	registry *swiss.Map[uint32, *volume]
}

func newVolumeList(logger *slog.Logger, source Source, volumeSize int, granularity int) *volumeList {
	return &volumeList{
		logger:      logger,
		source:      source,
		volumeSize:  memutils.AlignUp(volumeSize, granularity),
		granularity: granularity,
		registry:    swiss.NewMap[uint32, *volume](42),
	}
}

// blockSize is the size of the block that holds a payload of the given size
func (l *volumeList) blockSize(size int) int {
	return memutils.AlignUp(requiredBlockSize(size), l.granularity)
}

// maxRequestSize is the largest payload whose block and volume sizes can be computed without overflow
func (l *volumeList) maxRequestSize() int {
	return math.MaxInt - headerSize - memutils.DebugMargin - pointerAlignment - volumeSlack - 2*l.granularity
}

// createVolume reserves a volume large enough for a block of minimumSize bytes and appends it to the list
func (l *volumeList) createVolume(minimumSize int) (*volume, error) {
	size := l.volumeSize
	if minimumSize+volumeSlack > size {
		size = memutils.AlignUp(minimumSize+volumeSlack, l.granularity)
	}

	memory, err := l.source.Reserve(size)
	if err != nil {
		return nil, errors.WithSecondaryError(errors.Wrapf(ErrPlatformExhausted, "failed to reserve a volume of %d bytes", size), err)
	}

	if len(memory) != size {
		err = errors.Wrapf(ErrPlatformExhausted, "source returned %d bytes for a %d byte volume", len(memory), size)
		releaseErr := l.source.Release(memory)
		if releaseErr != nil {
			err = errors.WithSecondaryError(err, releaseErr)
		}
		return nil, err
	}

	v := newVolume(atomic.AddUint32(&lastVolumeID, 1), memory)
	l.volumes = append(l.volumes, v)
	l.registry.Put(v.id, v)

	l.logger.Debug("created volume", slog.Int("id", int(v.id)), slog.Int("size", size))
	return v, nil
}

func (l *volumeList) skipVolume(v *volume, need int) bool {
	return need > v.capacity || float64(v.allocatedBytes) > float64(v.capacity)*volumeUtilization
}

// allocate places a block of need bytes in the first volume that can take it, growing the list if
// none can
func (l *volumeList) allocate(need int, tag Tag, owner Owner) (Pointer, error) {
	for _, v := range l.volumes {
		if l.skipVolume(v, need) {
			continue
		}

		p, ok := v.allocate(need, tag, owner)
		if ok {
			return p, nil
		}
	}

	v, err := l.createVolume(need)
	if err != nil {
		return Nil, err
	}

	p, ok := v.allocate(need, tag, owner)
	if !ok {
		panic(fmt.Sprintf("new volume %d of %d bytes could not hold a block of %d bytes", v.id, v.capacity, need))
	}
	return p, nil
}

func (l *volumeList) lookup(id uint32) (*volume, bool) {
	return l.registry.Get(id)
}

// resolve maps a pointer to its volume and block index
func (l *volumeList) resolve(p Pointer) (*volume, int, error) {
	if p.IsNil() {
		return nil, noBlock, errors.Wrap(ErrInvalidPointer, "nil pointer")
	}

	v, ok := l.lookup(p.volume)
	if !ok {
		return nil, noBlock, errors.Wrapf(ErrInvalidPointer, "pointer %s does not belong to this allocator", p)
	}

	index, err := v.resolve(p)
	if err != nil {
		return nil, noBlock, err
	}
	return v, index, nil
}

func (l *volumeList) freeTagRange(low Tag, high Tag) int {
	freed := 0
	for _, v := range l.volumes {
		freed += v.freeTagRange(low, high)
	}
	return freed
}

func (l *volumeList) Validate() error {
	for _, v := range l.volumes {
		err := v.Validate()
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *volumeList) addStatistics(stats *memutils.Statistics) {
	for _, v := range l.volumes {
		volumeStats := v.statistics()
		stats.AddStatistics(&volumeStats)
	}
}

func (l *volumeList) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	for _, v := range l.volumes {
		volumeStats := v.detailedStatistics()
		stats.AddDetailedStatistics(&volumeStats)
	}
}

func (l *volumeList) printDetailedMap(json *jwriter.ObjectState) {
	volumes := json.Name("Volumes").Array()
	defer volumes.End()

	for _, v := range l.volumes {
		obj := volumes.Object()
		v.printDetailedMap(&obj)
		obj.End()
	}
}

// shutdown hands every volume back to the source. Allocations still live are logged.
func (l *volumeList) shutdown() error {
	var err error

	for _, v := range l.volumes {
		for index := v.blocks[sentinelIndex].next; index != sentinelIndex; index = v.blocks[index].next {
			b := &v.blocks[index]
			if !b.isAllocated() {
				continue
			}

			l.logger.Debug("unreleased allocation",
				slog.Int("volume", int(v.id)),
				slog.Int("offset", b.offset),
				slog.Int("size", b.size),
				slog.String("tag", b.tag.String()),
			)
		}

		releaseErr := l.source.Release(v.memory)
		if releaseErr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(releaseErr, "failed to release volume %d", v.id))
		}

		l.registry.Delete(v.id)
		l.logger.Debug("released volume", slog.Int("id", int(v.id)), slog.Int("size", v.capacity))
	}

	l.volumes = nil
	return err
}
