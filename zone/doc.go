// Package zone is a tag-based zone allocator.
//
// An Allocator hands out byte ranges from large arenas called volumes. Every allocation carries a Tag
// declaring its lifetime class. Tags below TagPurgeLevel are never reclaimed behind the caller's back;
// allocations tagged TagPurgeLevel or higher are purged whenever an allocation scan passes over them, and
// whole ranges of tags can be released at once with FreeTagRange. Holders of an allocation register an
// Owner that is invalidated when the allocation goes away.
//
// Consecutive TagMapStatic allocations form sequences: runs of blocks that allocation scans skip, and
// purge, only as a whole.
//
// When no volume can satisfy a request, a new volume is reserved from the allocator's Source, so well-formed
// requests do not fail unless the platform itself runs out of memory.
package zone
