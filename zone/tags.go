package zone

import "strconv"

// Tag is the purge class of an allocation. Tags form an ordered scale: the lower the tag, the longer
// the allocation is expected to live. Allocations tagged TagPurgeLevel or higher may be reclaimed by the
// allocator whenever it needs the space.
type Tag int

const (
	// TagAppStatic allocations live for the entire run of the application
	TagAppStatic Tag = 1
	// TagGameStatic allocations live until the loaded game changes
	TagGameStatic Tag = 40
	// TagSession allocations live until the current play session ends
	TagSession Tag = 45
	// TagMap allocations live until the current map is unloaded
	TagMap Tag = 50
	// TagMapStatic allocations live until the current map is unloaded and are grouped into sequences:
	// runs of consecutive TagMapStatic allocations are skipped and purged as a single unit
	TagMapStatic Tag = 52
	// TagPurgeLevel is the lowest tag that may be purged opportunistically
	TagPurgeLevel Tag = 100
	// TagCache allocations are purgeable caches
	TagCache Tag = 101

	minTag = TagAppStatic
	maxTag = TagCache

	// tagFree marks free blocks
	tagFree Tag = 0
	// tagSentinel marks the head block of every volume
	tagSentinel Tag = -1
)

var tagMapping = map[Tag]string{
	TagAppStatic:  "TagAppStatic",
	TagGameStatic: "TagGameStatic",
	TagSession:    "TagSession",
	TagMap:        "TagMap",
	TagMapStatic:  "TagMapStatic",
	TagPurgeLevel: "TagPurgeLevel",
	TagCache:      "TagCache",
	tagFree:       "Free",
	tagSentinel:   "Sentinel",
}

func (t Tag) String() string {
	name, ok := tagMapping[t]
	if ok {
		return name
	}
	return "Tag(" + strconv.Itoa(int(t)) + ")"
}

// IsValid reports whether the tag may be attached to an allocation
func (t Tag) IsValid() bool {
	return t >= minTag && t <= maxTag
}

// IsPurgeable reports whether allocations with this tag may be reclaimed opportunistically
func (t Tag) IsPurgeable() bool {
	return t >= TagPurgeLevel
}

// isSequenced reports whether allocations with this tag are linked into sequences
func (t Tag) isSequenced() bool {
	return t == TagMapStatic
}
