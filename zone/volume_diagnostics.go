package zone

import (
	"fmt"
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/memutils"
)

func corruptf(format string, args ...any) error {
	return errors.Wrapf(ErrCorrupted, format, args...)
}

// Validate walks the whole block list and checks it against the volume's counters
func (v *volume) Validate() error {
	sentinel := &v.blocks[sentinelIndex]
	if !sentinel.isSentinel() || sentinel.size != 0 || sentinel.offset != v.capacity {
		return corruptf("volume %d has a damaged sentinel", v.id)
	}

	if v.blockCount+len(v.freeSlots)+1 != len(v.blocks) {
		return corruptf("volume %d tracks %d blocks and %d spare slots in a table of %d",
			v.id, v.blockCount, len(v.freeSlots), len(v.blocks))
	}

	// Sequence heads mapped to their last member
	sequences := swiss.NewMap[int, int](42)
	openSequence := noBlock

	var allocatedBytes, allocationCount, blockCount int
	expectedOffset := 0
	prevIndex := sentinelIndex
	prevFree := false

	for index := sentinel.next; index != sentinelIndex; index = v.blocks[index].next {
		if index < 0 || index >= len(v.blocks) {
			return corruptf("volume %d links to block %d outside of its table", v.id, index)
		}

		blockCount++
		if blockCount > v.blockCount {
			return corruptf("volume %d block list is not circular", v.id)
		}

		b := &v.blocks[index]
		if b.prev != prevIndex {
			return corruptf("block %d in volume %d links back to %d instead of %d", index, v.id, b.prev, prevIndex)
		}

		if b.offset != expectedOffset {
			return corruptf("block %d in volume %d starts at %d but the previous block ends at %d",
				index, v.id, b.offset, expectedOffset)
		}

		if b.size < MinFragment {
			return corruptf("block %d in volume %d is only %d bytes", index, v.id, b.size)
		}

		if openSequence != noBlock && b.seqFirst != openSequence {
			return corruptf("sequence headed by block %d in volume %d is broken at block %d", openSequence, v.id, index)
		}

		if b.isFree() {
			if prevFree {
				return corruptf("blocks %d and %d in volume %d are adjacent and both free", prevIndex, index, v.id)
			}

			if b.owner != nil || b.inSequence() || b.seqLast != noBlock || b.serial != 0 {
				return corruptf("free block %d in volume %d still carries allocation state", index, v.id)
			}

			if readHeader(v.memory, b.offset).magic == blockMagic {
				return corruptf("free block %d in volume %d still carries a block header", index, v.id)
			}
		} else {
			err := v.validateAllocation(index)
			if err != nil {
				return err
			}

			allocatedBytes += b.size
			allocationCount++
		}

		if b.inSequence() {
			if b.seqFirst == index {
				if b.seqLast < 0 || b.seqLast >= len(v.blocks) {
					return corruptf("sequence headed by block %d in volume %d ends at unknown block %d", index, v.id, b.seqLast)
				}
				sequences.Put(index, b.seqLast)
				openSequence = index
			} else if openSequence != b.seqFirst || b.seqLast != noBlock {
				return corruptf("block %d in volume %d claims membership of sequence %d out of order", index, v.id, b.seqFirst)
			}

			last, ok := sequences.Get(b.seqFirst)
			if !ok {
				return corruptf("block %d in volume %d refers to unknown sequence %d", index, v.id, b.seqFirst)
			}

			if last == index {
				openSequence = noBlock
			}
		}

		expectedOffset = b.end()
		prevIndex = index
		prevFree = b.isFree()
	}

	if openSequence != noBlock {
		return corruptf("sequence headed by block %d in volume %d never reaches its last member", openSequence, v.id)
	}

	if sentinel.prev != prevIndex {
		return corruptf("sentinel of volume %d links back to %d instead of %d", v.id, sentinel.prev, prevIndex)
	}

	if expectedOffset != v.capacity {
		return corruptf("blocks of volume %d cover %d bytes of %d", v.id, expectedOffset, v.capacity)
	}

	if blockCount != v.blockCount {
		return corruptf("volume %d lists %d blocks but counts %d", v.id, blockCount, v.blockCount)
	}

	if allocatedBytes != v.allocatedBytes {
		return corruptf("volume %d has %d allocated bytes but counts %d", v.id, allocatedBytes, v.allocatedBytes)
	}

	if allocationCount != v.allocationCount {
		return corruptf("volume %d has %d allocations but counts %d", v.id, allocationCount, v.allocationCount)
	}

	if !v.isLiveBlock(v.rover) || !v.isLiveBlock(v.staticRover) {
		return corruptf("rovers of volume %d point at released blocks %d and %d", v.id, v.rover, v.staticRover)
	}

	return nil
}

func (v *volume) validateAllocation(index int) error {
	b := &v.blocks[index]
	if !b.tag.IsValid() {
		return corruptf("block %d in volume %d has invalid tag %s", index, v.id, b.tag)
	}

	if b.owner == nil && !b.tag.IsPurgeable() {
		return corruptf("block %d in volume %d has tag %s but no owner", index, v.id, b.tag)
	}

	header := readHeader(v.memory, b.offset)
	expected := blockHeader{magic: blockMagic, volume: v.id, index: uint32(index), serial: b.serial}
	if header != expected {
		return corruptf("block %d in volume %d has header %+v, expected %+v", index, v.id, header, expected)
	}

	if !memutils.ValidateMagicValue(v.memory, b.guardOffset()) {
		return corruptf("guard margin of block %d in volume %d was overwritten", index, v.id)
	}

	return nil
}

func (v *volume) isLiveBlock(index int) bool {
	return index >= 0 && index < len(v.blocks) && !v.blocks[index].isReleased()
}

func (v *volume) statistics() memutils.Statistics {
	return memutils.Statistics{
		RegionCount:     1,
		AllocationCount: v.allocationCount,
		RegionBytes:     v.capacity,
		AllocationBytes: v.allocatedBytes,
	}
}

func (v *volume) detailedStatistics() memutils.DetailedStatistics {
	var stats memutils.DetailedStatistics
	stats.Clear()
	stats.RegionCount = 1
	stats.RegionBytes = v.capacity

	for index := v.blocks[sentinelIndex].next; index != sentinelIndex; index = v.blocks[index].next {
		b := &v.blocks[index]
		if b.isFree() {
			stats.AddFreeRange(b.size)
		} else {
			stats.AddAllocation(b.size)
		}
	}
	return stats
}

func (v *volume) printDetailedMap(json *jwriter.ObjectState) {
	json.Name("Id").Int(int(v.id))
	json.Name("TotalBytes").Int(v.capacity)
	json.Name("AllocatedBytes").Int(v.allocatedBytes)
	json.Name("Allocations").Int(v.allocationCount)

	blocks := json.Name("Blocks").Array()
	defer blocks.End()

	for index := v.blocks[sentinelIndex].next; index != sentinelIndex; index = v.blocks[index].next {
		b := &v.blocks[index]

		obj := blocks.Object()
		obj.Name("Offset").Int(b.offset)
		obj.Name("Size").Int(b.size)
		obj.Name("Tag").String(b.tag.String())
		if b.inSequence() {
			obj.Name("Sequence").Int(v.blocks[b.seqFirst].offset)
		}
		if index == v.rover {
			obj.Name("Rover").Bool(true)
		}
		if index == v.staticRover {
			obj.Name("StaticRover").Bool(true)
		}
		if b.owner != nil {
			obj.Name("Owner").String(fmt.Sprintf("%T", b.owner))
		}
		obj.End()
	}
}
