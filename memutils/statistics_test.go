package memutils_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/memutils"
)

func TestStatisticsAdd(t *testing.T) {
	var stats memutils.Statistics
	stats.AddStatistics(&memutils.Statistics{RegionCount: 1, AllocationCount: 2, RegionBytes: 1000, AllocationBytes: 300})
	stats.AddStatistics(&memutils.Statistics{RegionCount: 1, AllocationCount: 1, RegionBytes: 500, AllocationBytes: 100})

	require.Equal(t, memutils.Statistics{
		RegionCount:     2,
		AllocationCount: 3,
		RegionBytes:     1500,
		AllocationBytes: 400,
	}, stats)
	require.Equal(t, 1100, stats.FreeBytes())

	stats.Clear()
	require.Equal(t, memutils.Statistics{}, stats)
}

func TestDetailedStatistics(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	require.Equal(t, math.MaxInt, stats.AllocationSizeMin)
	require.Equal(t, math.MaxInt, stats.FreeRangeSizeMin)

	stats.AddAllocation(64)
	stats.AddAllocation(256)
	stats.AddFreeRange(128)

	var other memutils.DetailedStatistics
	other.Clear()
	other.AddAllocation(32)
	other.AddFreeRange(1024)
	other.RegionCount = 1
	other.RegionBytes = 2048

	stats.AddDetailedStatistics(&other)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			RegionCount:     1,
			AllocationCount: 3,
			RegionBytes:     2048,
			AllocationBytes: 352,
		},
		FreeRangeCount:    2,
		AllocationSizeMin: 32,
		AllocationSizeMax: 256,
		FreeRangeSizeMin:  128,
		FreeRangeSizeMax:  1024,
	}, stats)
}
