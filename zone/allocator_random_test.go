package zone

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorRandomOperations(t *testing.T) {
	allocator := newTestAllocator(t, CreateOptions{VolumeSize: 1 << 16})
	rng := rand.New(rand.NewSource(1))

	var live []*Slot
	takeLive := func() *Slot {
		index := rng.Intn(len(live))
		slot := live[index]
		live[index] = live[len(live)-1]
		live = live[:len(live)-1]
		return slot
	}

	for step := 0; step < 4000; step++ {
		op := rng.Intn(20)

		switch {
		case op < 10:
			tag := allTags[rng.Intn(len(allTags))]
			size := 1 + rng.Intn(3000)

			if tag.IsPurgeable() && rng.Intn(2) == 0 {
				p, err := allocator.Allocate(size, tag, nil)
				require.NoError(t, err)
				require.False(t, p.IsNil())
			} else {
				slot := &Slot{}
				p, err := allocator.Allocate(size, tag, slot)
				require.NoError(t, err)
				require.Equal(t, p, slot.Pointer())
				live = append(live, slot)
			}
		case op < 15 && len(live) > 0:
			slot := takeLive()
			if slot.Valid() {
				p := slot.Pointer()
				require.NoError(t, allocator.Free(p))
				require.False(t, slot.Valid())
				require.ErrorIs(t, allocator.Free(p), ErrInvalidPointer)
			}
		case op < 17 && len(live) > 0:
			slot := live[rng.Intn(len(live))]
			if slot.Valid() {
				tag := allTags[rng.Intn(len(allTags))]
				require.NoError(t, allocator.ChangeTag(slot.Pointer(), tag))

				stored, err := allocator.Tag(slot.Pointer())
				require.NoError(t, err)
				require.Equal(t, tag, stored)
			}
		case op < 19 && len(live) > 0:
			slot := live[rng.Intn(len(live))]
			if slot.Valid() {
				p, err := allocator.Realloc(slot.Pointer(), 1+rng.Intn(3000))
				require.NoError(t, err)
				require.Equal(t, p, slot.Pointer())
			}
		case op == 19:
			low := allTags[rng.Intn(len(allTags))]
			high := allTags[rng.Intn(len(allTags))]
			if low > high {
				low, high = high, low
			}
			require.NoError(t, allocator.FreeTagRange(low, high))
		}

		require.NoError(t, allocator.Validate())

		status := allocator.StatusReport()
		require.Equal(t, allocator.Statistics().RegionBytes, status.BytesAllocated+status.BytesFree)
	}

	require.NoError(t, allocator.FreeTagRange(TagAppStatic, TagCache))
	require.Equal(t, 0, allocator.StatusReport().BytesAllocated)
	for _, slot := range live {
		require.False(t, slot.Valid())
	}
	require.NoError(t, allocator.Validate())
}
