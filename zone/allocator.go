package zone

import (
	"context"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/memutils"
	"github.com/vkngwrapper/arsenal/zone/internal/utils"
	"golang.org/x/exp/slog"
)

// Allocator is a tag-based zone allocator. Every allocation carries a Tag, and allocations tagged
// TagPurgeLevel or higher are reclaimed whenever the allocator needs their space. Memory is carved out
// of volumes obtained from a Source, and new volumes are added whenever no existing volume can satisfy a
// request.
//
// All methods are safe for concurrent use unless the allocator was created with
// AllocatorCreateExternallySynchronized. Owner callbacks run while the allocator is locked and must not
// call back into it.
type Allocator struct {
	logger      *slog.Logger
	createFlags CreateFlags
	mutex       utils.OptionalMutex

	volumes   *volumeList
	destroyed bool
}

// violation logs a broken contract and returns it, or panics if the allocator is strict
func (a *Allocator) violation(err error) error {
	a.logger.LogAttrs(context.Background(), slog.LevelError, "zone allocator contract violation", slog.Any("error", err))
	if a.createFlags&AllocatorCreateStrict != 0 {
		panic(err)
	}
	return err
}

func (a *Allocator) allocate(size int, tag Tag, owner Owner) (Pointer, error) {
	if size <= 0 {
		return Nil, errors.Wrapf(ErrInvalidSize, "requested %d bytes", size)
	}

	if size > a.volumes.maxRequestSize() {
		return Nil, errors.Wrapf(ErrSizeOverflow, "requested %d bytes", size)
	}

	if !tag.IsValid() {
		return Nil, errors.Wrapf(ErrInvalidTag, "requested tag %s", tag)
	}

	if owner == nil && !tag.IsPurgeable() {
		return Nil, errors.Wrapf(ErrOwnerRequired, "requested tag %s", tag)
	}

	return a.volumes.allocate(a.volumes.blockSize(size), tag, owner)
}

// Allocate reserves size bytes tagged with tag. If owner is provided, it is assigned the new pointer and
// will be invalidated when the allocation is freed or purged. owner may only be nil for tags of
// TagPurgeLevel or higher.
func (a *Allocator) Allocate(size int, tag Tag, owner Owner) (Pointer, error) {
	a.logger.Debug("Allocator::Allocate", slog.Int("size", size), slog.String("tag", tag.String()))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return Nil, ErrShutdown
	}

	p, err := a.allocate(size, tag, owner)
	if err != nil {
		return Nil, a.violation(err)
	}

	memutils.DebugValidate(a.volumes)
	return p, nil
}

// Calloc behaves like Allocate, but the payload of the new allocation is zeroed
func (a *Allocator) Calloc(size int, tag Tag, owner Owner) (Pointer, error) {
	a.logger.Debug("Allocator::Calloc", slog.Int("size", size), slog.String("tag", tag.String()))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return Nil, ErrShutdown
	}

	p, err := a.allocate(size, tag, owner)
	if err != nil {
		return Nil, a.violation(err)
	}

	v, index, err := a.volumes.resolve(p)
	if err != nil {
		panic(errors.Wrapf(err, "fresh allocation %s could not be resolved", p))
	}

	payload := v.payload(index)
	for i := range payload {
		payload[i] = 0
	}

	memutils.DebugValidate(a.volumes)
	return p, nil
}

// Realloc moves an allocation to a block of the new size, keeping its tag and owner. The common prefix
// of the old and new payloads is copied, the owner is assigned the new pointer, and the old pointer is
// no longer valid afterward.
func (a *Allocator) Realloc(p Pointer, size int) (Pointer, error) {
	a.logger.Debug("Allocator::Realloc", slog.String("pointer", p.String()), slog.Int("size", size))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return Nil, ErrShutdown
	}

	v, index, err := a.volumes.resolve(p)
	if err != nil {
		return Nil, a.violation(err)
	}

	tag := v.blocks[index].tag
	owner := v.blocks[index].owner

	// Pin the old block so the scan cannot purge it out from under the copy
	v.blocks[index].tag = TagAppStatic
	v.blocks[index].owner = nil

	moved, err := a.allocate(size, tag, owner)
	if err != nil {
		v.blocks[index].tag = tag
		v.blocks[index].owner = owner
		return Nil, a.violation(err)
	}

	movedVolume, movedIndex, err := a.volumes.resolve(moved)
	if err != nil {
		panic(errors.Wrapf(err, "fresh allocation %s could not be resolved", moved))
	}
	copy(movedVolume.payload(movedIndex), v.payload(index))

	v.blocks[index].tag = tag
	v.free(index)

	memutils.DebugValidate(a.volumes)
	return moved, nil
}

// Free releases an allocation. Its owner, if any, is invalidated. If the allocation belongs to a
// sequence, the sequence is dissolved and its other members become individually purgeable.
func (a *Allocator) Free(p Pointer) error {
	a.logger.Debug("Allocator::Free", slog.String("pointer", p.String()))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return ErrShutdown
	}

	v, index, err := a.volumes.resolve(p)
	if err != nil {
		return a.violation(err)
	}

	v.free(index)

	memutils.DebugValidate(a.volumes)
	return nil
}

// FreeTagRange frees every allocation whose tag lies within [low, high]
func (a *Allocator) FreeTagRange(low Tag, high Tag) error {
	a.logger.Debug("Allocator::FreeTagRange", slog.String("low", low.String()), slog.String("high", high.String()))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return ErrShutdown
	}

	if !low.IsValid() || !high.IsValid() || low > high {
		return a.violation(errors.Wrapf(ErrInvalidTag, "cannot free tag range [%s, %s]", low, high))
	}

	freed := a.volumes.freeTagRange(low, high)
	a.logger.Debug("freed tag range", slog.Int("allocations", freed))

	memutils.DebugValidate(a.volumes)
	return nil
}

// ChangeTag moves an allocation to a new tag. Allocations without an owner cannot change tag: they would
// either become purgeable with nobody to notify, or become static with no way to invalidate them. This is
// stricter than refusing only moves into the purge range: an anonymous allocation keeps the tag it was
// created with until it is freed or purged.
func (a *Allocator) ChangeTag(p Pointer, tag Tag) error {
	a.logger.Debug("Allocator::ChangeTag", slog.String("pointer", p.String()), slog.String("tag", tag.String()))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return ErrShutdown
	}

	if !tag.IsValid() {
		return a.violation(errors.Wrapf(ErrInvalidTag, "cannot change %s to tag %s", p, tag))
	}

	v, index, err := a.volumes.resolve(p)
	if err != nil {
		return a.violation(err)
	}

	b := &v.blocks[index]
	if b.owner == nil && tag.IsPurgeable() {
		return a.violation(errors.Wrapf(ErrOwnerRequired, "cannot make anonymous allocation %s purgeable", p))
	}
	if b.owner == nil {
		return a.violation(errors.Wrapf(ErrOwnerRequired, "cannot move anonymous allocation %s to tag %s", p, tag))
	}

	b.tag = tag

	memutils.DebugValidate(a.volumes)
	return nil
}

// ChangeOwner hands an allocation to a new owner, which is assigned the allocation's pointer. The previous
// owner is not notified. owner may only be nil for allocations tagged TagPurgeLevel or higher.
func (a *Allocator) ChangeOwner(p Pointer, owner Owner) error {
	a.logger.Debug("Allocator::ChangeOwner", slog.String("pointer", p.String()))

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return ErrShutdown
	}

	v, index, err := a.volumes.resolve(p)
	if err != nil {
		return a.violation(err)
	}

	b := &v.blocks[index]
	if owner == nil && !b.tag.IsPurgeable() {
		return a.violation(errors.Wrapf(ErrOwnerRequired, "allocation %s has tag %s", p, b.tag))
	}

	b.owner = owner
	if owner != nil {
		owner.Assign(p)
	}

	memutils.DebugValidate(a.volumes)
	return nil
}

// Tag returns the tag of a live allocation
func (a *Allocator) Tag(p Pointer) (Tag, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return tagFree, ErrShutdown
	}

	v, index, err := a.volumes.resolve(p)
	if err != nil {
		return tagFree, a.violation(err)
	}

	return v.blocks[index].tag, nil
}

// Owner returns the owner of a live allocation, which is nil for anonymous purgeable allocations
func (a *Allocator) Owner(p Pointer) (Owner, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return nil, ErrShutdown
	}

	v, index, err := a.volumes.resolve(p)
	if err != nil {
		return nil, a.violation(err)
	}

	return v.blocks[index].owner, nil
}

// Bytes returns the payload of a live allocation. The slice may be longer than the size that was
// requested, and it must not be used once the allocation has been freed or purged.
func (a *Allocator) Bytes(p Pointer) ([]byte, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return nil, ErrShutdown
	}

	v, index, err := a.volumes.resolve(p)
	if err != nil {
		return nil, a.violation(err)
	}

	return v.payload(index), nil
}

// Shutdown releases every volume back to the Source. Every pointer issued by the allocator becomes
// invalid, and every later call returns ErrShutdown.
func (a *Allocator) Shutdown() error {
	a.logger.Debug("Allocator::Shutdown")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return ErrShutdown
	}
	a.destroyed = true

	err := a.volumes.shutdown()
	if err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "failed to release volumes", slog.Any("error", err))
		return err
	}
	return nil
}
