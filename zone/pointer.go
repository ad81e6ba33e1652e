package zone

import "fmt"

// Pointer identifies the payload of one allocation. The zero value is the nil pointer.
//
// A Pointer carries the id of its volume, the offset of its payload within the volume and the serial
// number of the allocation. The serial lets the allocator reject a Pointer whose block has been freed
// and reallocated since.
type Pointer struct {
	volume uint32
	serial uint32
	offset int
}

// Nil is the pointer returned by failed allocations
var Nil Pointer

// IsNil reports whether this is the nil pointer
func (p Pointer) IsNil() bool { return p.volume == 0 }

// Volume returns the id of the volume that holds the allocation
func (p Pointer) Volume() int { return int(p.volume) }

// Offset returns the offset of the payload within its volume
func (p Pointer) Offset() int { return p.offset }

func (p Pointer) String() string {
	if p.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d:%#x#%d", p.volume, p.offset, p.serial)
}

//go:generate mockgen -destination=mocks/mock_owner.go -package=mocks github.com/vkngwrapper/arsenal/zone Owner

// Owner is the back-reference through which an allocation notifies whoever holds its pointer. The
// allocator calls Assign when the allocation is made (or moved to this owner) and Invalidate when it is
// freed or purged. The allocator never owns the Owner, and an Owner must not call back into the
// allocator.
type Owner interface {
	Assign(p Pointer)
	Invalidate()
}

// Slot is an Owner that stores the pointer it was handed
type Slot struct {
	pointer Pointer
}

var _ Owner = &Slot{}

func (s *Slot) Assign(p Pointer) { s.pointer = p }
func (s *Slot) Invalidate()      { s.pointer = Nil }

// Pointer returns the held pointer, or Nil if the allocation is gone
func (s *Slot) Pointer() Pointer { return s.pointer }

// Valid reports whether the slot still holds a live allocation
func (s *Slot) Valid() bool { return !s.pointer.IsNil() }
