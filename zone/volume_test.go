package zone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func resolveIndex(t *testing.T, v *volume, p Pointer) int {
	index, err := v.resolve(p)
	require.NoError(t, err)
	return index
}

func TestVolumeInit(t *testing.T) {
	v := newVolume(7, make([]byte, 4096))
	require.NoError(t, v.Validate())

	require.Equal(t, 1, v.blockCount)
	require.Equal(t, 4096, v.blocks[1].size)
	require.Equal(t, 4096, v.blocks[sentinelIndex].offset)
	require.Equal(t, 1, v.rover)
	require.Equal(t, 1, v.staticRover)
	require.Equal(t, 0, v.allocatedBytes)
}

func TestVolumeAllocateSplits(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	slot := &Slot{}
	p, ok := v.allocate(128, TagMap, slot)
	require.True(t, ok)
	require.Equal(t, headerSize, p.Offset())
	require.Equal(t, p, slot.Pointer())

	require.Equal(t, 128, v.allocatedBytes)
	require.Equal(t, 2, v.blockCount)

	index := resolveIndex(t, v, p)
	rest := v.blocks[index].next
	require.True(t, v.blocks[rest].isFree())
	require.Equal(t, 128, v.blocks[rest].offset)
	require.Equal(t, 4096-128, v.blocks[rest].size)
	require.Equal(t, rest, v.staticRover)
	require.Equal(t, 1, v.rover)

	require.NoError(t, v.Validate())
}

func TestVolumeSmallRemainderNotSplit(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	p, ok := v.allocate(4096-MinFragment, TagCache, nil)
	require.True(t, ok)

	index := resolveIndex(t, v, p)
	require.Equal(t, 4096, v.blocks[index].size)
	require.Equal(t, 4096, v.allocatedBytes)
	require.Equal(t, 1, v.blockCount)
	require.Equal(t, sentinelIndex, v.rover)

	require.NoError(t, v.Validate())
}

func TestVolumeFreeCoalesces(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	var slots [3]Slot
	var indices [3]int
	for i := range slots {
		p, ok := v.allocate(128, TagMap, &slots[i])
		require.True(t, ok)
		indices[i] = resolveIndex(t, v, p)
	}
	require.Equal(t, 4, v.blockCount)

	// Both neighbors allocated
	survivor := v.free(indices[1])
	require.Equal(t, indices[1], survivor)
	require.Equal(t, 4, v.blockCount)
	require.False(t, slots[1].Valid())
	require.NoError(t, v.Validate())

	// Merges forward into the free middle block
	survivor = v.free(indices[0])
	require.Equal(t, indices[0], survivor)
	require.Equal(t, 3, v.blockCount)
	require.Equal(t, 256, v.blocks[survivor].size)
	require.NoError(t, v.Validate())

	// Merges both ways
	survivor = v.free(indices[2])
	require.Equal(t, indices[0], survivor)
	require.Equal(t, 1, v.blockCount)
	require.Equal(t, 4096, v.blocks[survivor].size)
	require.Equal(t, 0, v.allocatedBytes)
	require.NoError(t, v.Validate())
}

func TestVolumeRoverFollowsMerge(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	var slots [3]Slot
	var last int
	for i := range slots {
		p, ok := v.allocate(128, TagMap, &slots[i])
		require.True(t, ok)
		last = resolveIndex(t, v, p)
	}

	rest := v.blocks[last].next
	require.Equal(t, rest, v.staticRover)

	survivor := v.free(last)
	require.Equal(t, last, survivor)
	require.Equal(t, last, v.staticRover)
	require.True(t, v.blocks[rest].isReleased())
	require.NoError(t, v.Validate())
}

func TestVolumeScanPurges(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	for i := 0; i < 4; i++ {
		_, ok := v.allocate(1024, TagCache, nil)
		require.True(t, ok)
	}
	require.Equal(t, 4096, v.allocatedBytes)

	slot := &Slot{}
	p, ok := v.allocate(2048, TagMap, slot)
	require.True(t, ok)
	require.Equal(t, headerSize, p.Offset())
	require.Equal(t, p, slot.Pointer())

	require.Equal(t, 4096, v.allocatedBytes)
	require.Equal(t, 3, v.blockCount)
	require.Equal(t, 3, v.allocationCount)
	require.NoError(t, v.Validate())
}

func TestVolumeScanExhausted(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	var slots [4]Slot
	for i := range slots {
		_, ok := v.allocate(1024, TagMap, &slots[i])
		require.True(t, ok)
	}

	p, ok := v.allocate(128, TagCache, nil)
	require.False(t, ok)
	require.True(t, p.IsNil())
	require.NoError(t, v.Validate())
}

func TestVolumeRewindPrefersSmallestGap(t *testing.T) {
	v := newVolume(1, make([]byte, 8192))

	sizes := []int{256, 512, 256, 1024, 256}
	slots := make([]Slot, len(sizes))
	indices := make([]int, len(sizes))
	for i, size := range sizes {
		p, ok := v.allocate(size, TagMap, &slots[i])
		require.True(t, ok)
		indices[i] = resolveIndex(t, v, p)
	}

	v.free(indices[1])
	v.free(indices[3])
	require.NoError(t, v.Validate())

	// Both gaps are within reach: the smaller one wins
	v.staticRover = indices[4]
	p, ok := v.allocate(300, TagMap, &Slot{})
	require.True(t, ok)
	require.Equal(t, 256+headerSize, p.Offset())

	// Only the larger gap fits
	v.staticRover = indices[4]
	p, ok = v.allocate(600, TagMap, &Slot{})
	require.True(t, ok)
	require.Equal(t, 1024+headerSize, p.Offset())

	require.NoError(t, v.Validate())
}

func TestVolumeRewindStopsAtSentinel(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))
	require.Equal(t, 1, v.rewindRover(1, 128))
	require.Equal(t, 1, v.rewindRover(sentinelIndex, 128))
}

func TestVolumeFreeTagRangeRewindsStaticRover(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	var slots [4]Slot
	tags := []Tag{TagSession, TagMap, TagSession, TagMap}
	for i, tag := range tags {
		_, ok := v.allocate(256, tag, &slots[i])
		require.True(t, ok)
	}

	require.Equal(t, 2, v.freeTagRange(TagMap, TagMap))
	require.True(t, slots[0].Valid())
	require.False(t, slots[1].Valid())
	require.True(t, slots[2].Valid())
	require.False(t, slots[3].Valid())

	first := v.blocks[sentinelIndex].next
	require.Equal(t, v.blocks[first].next, v.staticRover)
	require.Equal(t, 256, v.blocks[v.staticRover].offset)
	require.Equal(t, 512, v.allocatedBytes)
	require.NoError(t, v.Validate())
}

func TestVolumeResolveRejectsBadPointers(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	slot := &Slot{}
	p, ok := v.allocate(256, TagMap, slot)
	require.True(t, ok)

	_, err := v.resolve(Pointer{volume: 1, serial: p.serial, offset: 4})
	require.ErrorIs(t, err, ErrInvalidPointer)

	_, err = v.resolve(Pointer{volume: 1, serial: p.serial, offset: p.offset + 8})
	require.ErrorIs(t, err, ErrInvalidPointer)

	_, err = v.resolve(Pointer{volume: 1, serial: p.serial + 1, offset: p.offset})
	require.ErrorIs(t, err, ErrInvalidPointer)

	_, err = v.resolve(Pointer{volume: 1, serial: p.serial, offset: 5000})
	require.ErrorIs(t, err, ErrInvalidPointer)

	v.free(resolveIndex(t, v, p))
	_, err = v.resolve(p)
	require.ErrorIs(t, err, ErrInvalidPointer)
}

func TestVolumeValidateDetectsCorruption(t *testing.T) {
	v := newVolume(1, make([]byte, 4096))

	slot := &Slot{}
	p, ok := v.allocate(256, TagMap, slot)
	require.True(t, ok)
	require.NoError(t, v.Validate())

	v.allocatedBytes++
	require.ErrorIs(t, v.Validate(), ErrCorrupted)
	v.allocatedBytes--

	index := resolveIndex(t, v, p)
	v.blocks[index].size -= 8
	require.ErrorIs(t, v.Validate(), ErrCorrupted)
	v.blocks[index].size += 8

	clearHeader(v.memory, v.blocks[index].offset)
	require.ErrorIs(t, v.Validate(), ErrCorrupted)
}
