package zone

import (
	"encoding/binary"
	"github.com/vkngwrapper/arsenal/memutils"
	"unsafe"
)

const (
	// MinFragment is the smallest block the allocator will carve. A free block is only split when the
	// remainder would be larger than this.
	MinFragment int = 64

	headerSize       int = 16
	pointerAlignment int = int(unsafe.Sizeof(uintptr(0)))

	blockMagic uint32 = 0x1d4a11

	noBlock       int = -1
	sentinelIndex int = 0
)

// block is the descriptor of one span of a volume's arena. Blocks live in the volume's block table
// and refer to each other by table index.
type block struct {
	offset int
	size   int
	tag    Tag
	owner  Owner
	serial uint32

	prev int
	next int

	seqFirst int
	seqLast  int
}

func (b *block) isFree() bool {
	return b.tag == tagFree
}

func (b *block) isSentinel() bool {
	return b.tag == tagSentinel
}

func (b *block) isAllocated() bool {
	return b.tag != tagFree && b.tag != tagSentinel
}

// isReleased reports whether the table slot no longer holds a block of the list
func (b *block) isReleased() bool {
	return b.prev == noBlock
}

func (b *block) inSequence() bool {
	return b.seqFirst != noBlock
}

func (b *block) end() int {
	return b.offset + b.size
}

func (b *block) payloadOffset() int {
	return b.offset + headerSize
}

func (b *block) payloadSize() int {
	return b.size - headerSize - memutils.DebugMargin
}

func (b *block) guardOffset() int {
	return b.end() - memutils.DebugMargin
}

// blockHeader is the record written into the arena immediately before every payload
type blockHeader struct {
	magic  uint32
	volume uint32
	index  uint32
	serial uint32
}

func writeHeader(arena []byte, offset int, header blockHeader) {
	binary.LittleEndian.PutUint32(arena[offset:], header.magic)
	binary.LittleEndian.PutUint32(arena[offset+4:], header.volume)
	binary.LittleEndian.PutUint32(arena[offset+8:], header.index)
	binary.LittleEndian.PutUint32(arena[offset+12:], header.serial)
}

func readHeader(arena []byte, offset int) blockHeader {
	return blockHeader{
		magic:  binary.LittleEndian.Uint32(arena[offset:]),
		volume: binary.LittleEndian.Uint32(arena[offset+4:]),
		index:  binary.LittleEndian.Uint32(arena[offset+8:]),
		serial: binary.LittleEndian.Uint32(arena[offset+12:]),
	}
}

func clearHeader(arena []byte, offset int) {
	header := arena[offset : offset+headerSize]
	for i := range header {
		header[i] = 0
	}
}

// requiredBlockSize is the size of the block needed to hold a payload of the given size
func requiredBlockSize(size int) int {
	need := memutils.AlignUp(size, pointerAlignment) + headerSize + memutils.DebugMargin
	if need < MinFragment {
		return MinFragment
	}
	return need
}
