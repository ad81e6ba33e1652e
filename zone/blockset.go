package zone

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/memutils"
	"golang.org/x/exp/slog"
)

type blockSetBatch struct {
	slot Slot
	used int
}

// BlockSet hands out fixed-size elements carved from larger batches allocated from the zone. Elements
// are never freed individually: the whole set is released by Destroy, or by a FreeTagRange call that
// covers its tag.
type BlockSet struct {
	allocator        *Allocator
	elementSize      int
	elementsPerBatch int
	tag              Tag

	batches []*blockSetBatch
}

// NewBlockSet creates an empty BlockSet. No memory is allocated until the first element is requested.
func (a *Allocator) NewBlockSet(elementSize int, elementsPerBatch int, tag Tag) (*BlockSet, error) {
	if elementSize <= 0 || elementsPerBatch <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "cannot create a block set of %d elements of %d bytes",
			elementsPerBatch, elementSize)
	}

	if !tag.IsValid() || tag.IsPurgeable() {
		return nil, errors.Wrapf(ErrInvalidTag, "block sets cannot use tag %s", tag)
	}

	return &BlockSet{
		allocator:        a,
		elementSize:      memutils.AlignUp(elementSize, pointerAlignment),
		elementsPerBatch: elementsPerBatch,
		tag:              tag,
	}, nil
}

// Allocate returns a new element of the set
func (s *BlockSet) Allocate() ([]byte, error) {
	var current *blockSetBatch
	if len(s.batches) > 0 {
		current = s.batches[len(s.batches)-1]
	}

	if current == nil || !current.slot.Valid() || current.used == s.elementsPerBatch {
		s.allocator.logger.Debug("BlockSet::Allocate new batch",
			slog.Int("elementSize", s.elementSize),
			slog.Int("elements", s.elementsPerBatch),
		)

		current = &blockSetBatch{}
		_, err := s.allocator.Allocate(s.elementSize*s.elementsPerBatch, s.tag, &current.slot)
		if err != nil {
			return nil, err
		}
		s.batches = append(s.batches, current)
	}

	batch, err := s.allocator.Bytes(current.slot.Pointer())
	if err != nil {
		return nil, err
	}

	start := current.used * s.elementSize
	end := start + s.elementSize
	current.used++

	return batch[start:end:end], nil
}

// Len returns the number of elements handed out by the set that are still backed by live batches
func (s *BlockSet) Len() int {
	count := 0
	for _, batch := range s.batches {
		if batch.slot.Valid() {
			count += batch.used
		}
	}
	return count
}

// Destroy frees every batch of the set. The set is empty, but usable, afterward.
func (s *BlockSet) Destroy() error {
	var err error
	for _, batch := range s.batches {
		if !batch.slot.Valid() {
			continue
		}

		freeErr := s.allocator.Free(batch.slot.Pointer())
		if freeErr != nil {
			err = errors.CombineErrors(err, freeErr)
		}
	}

	s.batches = nil
	return err
}
