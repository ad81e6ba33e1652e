package zone

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidSize is returned when an allocation of zero or negative size is requested
	ErrInvalidSize = errors.New("allocation size must be greater than zero")
	// ErrSizeOverflow is returned when a request is so large that the size of a block or volume able to
	// hold it cannot be represented
	ErrSizeOverflow = errors.New("allocation size overflows the volume size")
	// ErrInvalidTag is returned when a tag outside of [TagAppStatic, TagCache] is used
	ErrInvalidTag = errors.New("tag is outside of the valid tag range")
	// ErrOwnerRequired is returned when an allocation below TagPurgeLevel would have no owner
	ErrOwnerRequired = errors.New("an owner is required for allocations that are not purgeable")
	// ErrInvalidPointer is returned when a pointer does not refer to a live allocation: it is foreign,
	// already freed, purged, or from a block that has been reused since
	ErrInvalidPointer = errors.New("pointer does not refer to a live allocation")
	// ErrPlatformExhausted is returned when the platform cannot supply memory for a new volume. The
	// allocator cannot honor its contract after this error.
	ErrPlatformExhausted = errors.New("the platform could not supply memory for a new volume")
	// ErrCorrupted is returned by Validate when the allocator's bookkeeping is inconsistent
	ErrCorrupted = errors.New("zone bookkeeping is corrupted")
	// ErrShutdown is returned by every operation after Shutdown
	ErrShutdown = errors.New("the allocator has been shut down")
)
