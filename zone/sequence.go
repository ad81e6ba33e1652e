package zone

// linkSequence attaches the freshly stamped block at index to the sequence of the block physically
// before it, or starts a new sequence of one
func (v *volume) linkSequence(index int) {
	b := &v.blocks[index]
	prev := &v.blocks[b.prev]

	if prev.isAllocated() && prev.inSequence() {
		first := prev.seqFirst
		b.seqFirst = first
		b.seqLast = noBlock
		v.blocks[first].seqLast = index
		return
	}

	b.seqFirst = index
	b.seqLast = index
}

// sequenceMembers lists the blocks of the sequence headed by first, in list order
func (v *volume) sequenceMembers(first int) []int {
	last := v.blocks[first].seqLast
	members := []int{first}
	for cursor := first; cursor != last; {
		cursor = v.blocks[cursor].next
		members = append(members, cursor)
	}
	return members
}

// dissolveSequence clears the sequence links of every member of the sequence headed by first. The
// members stay allocated.
func (v *volume) dissolveSequence(first int) {
	for _, member := range v.sequenceMembers(first) {
		v.blocks[member].seqFirst = noBlock
		v.blocks[member].seqLast = noBlock
	}
}

// sequencePurgeable reports whether every member of the run from first to last carries a purgeable tag
func (v *volume) sequencePurgeable(first int, last int) bool {
	for cursor := first; ; cursor = v.blocks[cursor].next {
		if !v.blocks[cursor].tag.IsPurgeable() {
			return false
		}
		if cursor == last {
			return true
		}
	}
}

// freeSequence frees every member of the sequence headed by first and returns the free block that
// covers the run afterward
func (v *volume) freeSequence(first int) int {
	survivor := first
	for _, member := range v.sequenceMembers(first) {
		survivor = v.free(member)
	}
	return survivor
}
