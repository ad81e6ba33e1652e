package zone

import (
	"fmt"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/memutils"
)

// roverRewindSteps is the number of blocks an allocation scan looks behind its rover for a
// recently freed gap
const roverRewindSteps = 3

// volume is one arena together with the circular list of blocks that tile it. Index 0 of the block
// table is the sentinel: it sits at offset capacity, has size 0, and anchors the list.
type volume struct {
	id       uint32
	memory   []byte
	capacity int

	blocks    []block
	freeSlots []int

	rover       int
	staticRover int

	blockCount      int
	allocationCount int
	allocatedBytes  int
	nextSerial      uint32
}

var _ memutils.Validatable = &volume{}

func newVolume(id uint32, memory []byte) *volume {
	capacity := len(memory)
	v := &volume{
		id:       id,
		memory:   memory,
		capacity: capacity,
		blocks:   make([]block, 2, 64),
	}

	v.blocks[sentinelIndex] = block{
		offset:   capacity,
		tag:      tagSentinel,
		prev:     1,
		next:     1,
		seqFirst: noBlock,
		seqLast:  noBlock,
	}
	v.blocks[1] = block{
		size:     capacity,
		tag:      tagFree,
		prev:     sentinelIndex,
		next:     sentinelIndex,
		seqFirst: noBlock,
		seqLast:  noBlock,
	}
	v.blockCount = 1
	v.rover = 1
	v.staticRover = 1

	return v
}

func (v *volume) acquireSlot() int {
	if len(v.freeSlots) > 0 {
		index := v.freeSlots[len(v.freeSlots)-1]
		v.freeSlots = v.freeSlots[:len(v.freeSlots)-1]
		return index
	}

	v.blocks = append(v.blocks, block{})
	return len(v.blocks) - 1
}

func (v *volume) releaseSlot(index int) {
	v.blocks[index] = block{
		prev:     noBlock,
		next:     noBlock,
		seqFirst: noBlock,
		seqLast:  noBlock,
	}
	v.freeSlots = append(v.freeSlots, index)
}

func (v *volume) pointerTo(index int) Pointer {
	b := &v.blocks[index]
	return Pointer{volume: v.id, serial: b.serial, offset: b.payloadOffset()}
}

// firstFree returns the free block nearest the start of the arena, or the first block if none are free
func (v *volume) firstFree() int {
	first := v.blocks[sentinelIndex].next
	for index := first; index != sentinelIndex; index = v.blocks[index].next {
		if v.blocks[index].isFree() {
			return index
		}
	}
	return first
}

// rewindRover looks up to roverRewindSteps blocks behind the rover for the smallest free block that
// can hold need bytes. The sentinel is never stepped past.
func (v *volume) rewindRover(rover int, need int) int {
	best := noBlock
	cursor := rover

	for step := 0; step < roverRewindSteps; step++ {
		prev := v.blocks[cursor].prev
		if v.blocks[prev].isSentinel() {
			break
		}
		cursor = prev

		candidate := &v.blocks[cursor]
		if !candidate.isFree() || candidate.size < need {
			continue
		}

		if best == noBlock || candidate.size < v.blocks[best].size {
			best = cursor
		}
	}

	if best == noBlock {
		return rover
	}
	return best
}

// allocate scans the volume for a block of at least need bytes, purging purgeable allocations it passes
// over. It returns false if a full lap of the volume turned up nothing.
func (v *volume) allocate(need int, tag Tag, owner Owner) (Pointer, bool) {
	rover := &v.rover
	if !tag.IsPurgeable() {
		rover = &v.staticRover
	}

	cursor := v.rewindRover(*rover, need)
	if v.blocks[cursor].inSequence() {
		cursor = v.blocks[v.blocks[cursor].seqFirst].seqLast
	}

	// Every step moves past at least one block, so blockCount+1 steps covers the sentinel and every block
	for steps := v.blockCount + 1; steps > 0; steps-- {
		b := &v.blocks[cursor]

		switch {
		case b.isSentinel():
		case b.isFree():
			if b.size >= need {
				return v.claim(cursor, need, tag, owner, rover), true
			}
		case b.inSequence():
			first := b.seqFirst
			last := v.blocks[first].seqLast
			if !v.sequencePurgeable(first, last) {
				cursor = last
				break
			}

			cursor = v.freeSequence(first)
			if v.blocks[cursor].size >= need {
				return v.claim(cursor, need, tag, owner, rover), true
			}
		case b.tag.IsPurgeable():
			cursor = v.free(cursor)
			if v.blocks[cursor].size >= need {
				return v.claim(cursor, need, tag, owner, rover), true
			}
		}

		cursor = v.blocks[cursor].next
	}

	return Nil, false
}

// claim turns the free block at index into an allocation of need bytes, splitting off the remainder
func (v *volume) claim(index int, need int, tag Tag, owner Owner, rover *int) Pointer {
	if !v.blocks[index].isFree() {
		panic(fmt.Sprintf("block at offset %d is already taken", v.blocks[index].offset))
	}

	v.split(index, need)

	v.nextSerial++
	b := &v.blocks[index]
	b.tag = tag
	b.owner = owner
	b.serial = v.nextSerial

	writeHeader(v.memory, b.offset, blockHeader{
		magic:  blockMagic,
		volume: v.id,
		index:  uint32(index),
		serial: b.serial,
	})
	memutils.WriteMagicValue(v.memory, b.guardOffset())

	if tag.isSequenced() {
		v.linkSequence(index)
	}

	*rover = b.next
	v.allocatedBytes += b.size
	v.allocationCount++

	p := v.pointerTo(index)
	if owner != nil {
		owner.Assign(p)
	}
	return p
}

// split carves a free block of need bytes off the front of the free block at index, if the remainder
// would be larger than MinFragment
func (v *volume) split(index int, need int) {
	remainder := v.blocks[index].size - need
	if remainder <= MinFragment {
		return
	}

	// acquireSlot may grow the table, so no block pointers are held across it
	rest := v.acquireSlot()
	b := &v.blocks[index]
	v.blocks[rest] = block{
		offset:   b.offset + need,
		size:     remainder,
		tag:      tagFree,
		prev:     index,
		next:     b.next,
		seqFirst: noBlock,
		seqLast:  noBlock,
	}
	v.blocks[b.next].prev = rest
	b.next = rest
	b.size = need
	v.blockCount++

	clearHeader(v.memory, v.blocks[rest].offset)
}

// free releases the allocated block at index and coalesces it with free neighbors. It returns the index
// of the free block that now covers the released span.
func (v *volume) free(index int) int {
	b := &v.blocks[index]
	if !b.isAllocated() {
		panic(fmt.Sprintf("block at offset %d is not allocated", b.offset))
	}

	if b.owner != nil {
		owner := b.owner
		b.owner = nil
		owner.Invalidate()
	}

	if b.inSequence() {
		v.dissolveSequence(b.seqFirst)
	}

	if !memutils.ValidateMagicValue(v.memory, b.guardOffset()) {
		panic(fmt.Sprintf("guard margin of block at offset %d in volume %d was overwritten", b.offset, v.id))
	}

	clearHeader(v.memory, b.offset)
	v.allocatedBytes -= b.size
	v.allocationCount--
	b.tag = tagFree
	b.serial = 0

	survivor := index
	if prev := b.prev; v.blocks[prev].isFree() {
		v.absorb(prev, index)
		survivor = prev
	}

	if next := v.blocks[survivor].next; v.blocks[next].isFree() {
		v.absorb(survivor, next)
	}

	return survivor
}

// absorb merges the free block at absorbed into its free predecessor keep
func (v *volume) absorb(keep int, absorbed int) {
	gone := &v.blocks[absorbed]
	v.blocks[keep].size += gone.size
	v.blocks[keep].next = gone.next
	v.blocks[gone.next].prev = keep

	if v.rover == absorbed {
		v.rover = keep
	}
	if v.staticRover == absorbed {
		v.staticRover = keep
	}

	v.releaseSlot(absorbed)
	v.blockCount--
}

// freeTagRange frees every allocation whose tag is within [low, high] and rewinds the static rover to
// the front of the volume
func (v *volume) freeTagRange(low Tag, high Tag) int {
	freed := 0

	for cursor := v.blocks[sentinelIndex].next; cursor != sentinelIndex; cursor = v.blocks[cursor].next {
		b := &v.blocks[cursor]
		if b.isAllocated() && b.tag >= low && b.tag <= high {
			cursor = v.free(cursor)
			freed++
		}
	}

	v.staticRover = v.firstFree()
	return freed
}

// resolve maps a pointer to the index of the live block it was issued for
func (v *volume) resolve(p Pointer) (int, error) {
	headerOffset := p.offset - headerSize
	if headerOffset < 0 || p.offset > v.capacity {
		return noBlock, errors.Wrapf(ErrInvalidPointer, "pointer %s is outside of volume %d", p, v.id)
	}

	header := readHeader(v.memory, headerOffset)
	if header.magic != blockMagic || header.volume != v.id {
		return noBlock, errors.Wrapf(ErrInvalidPointer, "pointer %s does not follow a block header", p)
	}

	index := int(header.index)
	if index <= sentinelIndex || index >= len(v.blocks) {
		return noBlock, errors.Wrapf(ErrInvalidPointer, "pointer %s names unknown block %d", p, index)
	}

	b := &v.blocks[index]
	if !b.isAllocated() || b.offset != headerOffset || b.serial != p.serial || header.serial != p.serial {
		return noBlock, errors.Wrapf(ErrInvalidPointer, "pointer %s refers to a block that has been freed", p)
	}

	return index, nil
}

func (v *volume) payload(index int) []byte {
	b := &v.blocks[index]
	start := b.payloadOffset()
	end := start + b.payloadSize()
	return v.memory[start:end:end]
}
