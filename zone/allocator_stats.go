package zone

import (
	"context"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/memutils"
	"golang.org/x/exp/slog"
)

// Status is a summary of the allocator's volumes suitable for telemetry
type Status struct {
	VolumeCount    int
	BytesAllocated int
	BytesFree      int
}

// StatusReport summarizes the allocator's volumes
func (a *Allocator) StatusReport() Status {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.statusReport()
}

func (a *Allocator) statusReport() Status {
	var stats memutils.Statistics
	a.volumes.addStatistics(&stats)

	return Status{
		VolumeCount:    stats.RegionCount,
		BytesAllocated: stats.AllocationBytes,
		BytesFree:      stats.FreeBytes(),
	}
}

// FreeBytes returns the number of bytes across all volumes that are not held by allocations. It
// includes purgeable allocations' space only once they have been purged.
func (a *Allocator) FreeBytes() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.statusReport().BytesFree
}

// Statistics returns the volume and allocation totals of the allocator
func (a *Allocator) Statistics() memutils.Statistics {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	var stats memutils.Statistics
	a.volumes.addStatistics(&stats)
	return stats
}

// DetailedStatistics walks every volume to report the extremes of allocation and free range sizes
func (a *Allocator) DetailedStatistics() memutils.DetailedStatistics {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	var stats memutils.DetailedStatistics
	stats.Clear()
	a.volumes.addDetailedStatistics(&stats)
	return stats
}

// PrintDetailedMap writes a JSON object describing every volume and every block within it
func (a *Allocator) PrintDetailedMap(writer *jwriter.Writer) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	status := a.statusReport()

	obj := writer.Object()
	defer obj.End()

	obj.Name("VolumeCount").Int(status.VolumeCount)
	obj.Name("BytesAllocated").Int(status.BytesAllocated)
	obj.Name("BytesFree").Int(status.BytesFree)
	a.volumes.printDetailedMap(&obj)
}

// LogStatus writes the status report to the allocator's logger
func (a *Allocator) LogStatus() {
	status := a.StatusReport()

	a.logger.LogAttrs(context.Background(), slog.LevelInfo, "zone status",
		slog.Int("volumes", status.VolumeCount),
		slog.Int("allocated", status.BytesAllocated),
		slog.Int("free", status.BytesFree),
	)
}

// Validate checks the bookkeeping of every volume. A corrupted allocator cannot be used safely: the
// error should be treated as fatal.
func (a *Allocator) Validate() error {
	a.logger.Debug("Allocator::Validate")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return ErrShutdown
	}

	err := a.volumes.Validate()
	if err != nil {
		return a.violation(err)
	}
	return nil
}
