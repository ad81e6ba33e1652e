//go:build unix

package zone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMappedSourceReserve(t *testing.T) {
	source := MappedSource{}

	memory, err := source.Reserve(1 << 16)
	require.NoError(t, err)
	require.Len(t, memory, 1<<16)

	for i := range memory {
		require.Zero(t, memory[i])
	}
	memory[0] = 1
	memory[len(memory)-1] = 1

	require.NoError(t, source.Release(memory))

	_, err = source.Reserve(0)
	require.Error(t, err)
}

func TestAllocatorOnMappedSource(t *testing.T) {
	allocator := newTestAllocator(t, CreateOptions{
		VolumeSize: 1 << 16,
		Source:     MappedSource{},
	})

	slot := &Slot{}
	p, err := allocator.Allocate(1<<17, TagMap, slot)
	require.NoError(t, err)
	require.Equal(t, 2, allocator.StatusReport().VolumeCount)

	data, err := allocator.Bytes(p)
	require.NoError(t, err)
	data[len(data)-1] = 0xaa

	require.NoError(t, allocator.Free(p))
	require.NoError(t, allocator.Validate())
	require.NoError(t, allocator.Shutdown())
}
