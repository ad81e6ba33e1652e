//go:build !unix

package zone

// MappedSource falls back to the Go heap on platforms without anonymous mappings
type MappedSource struct {
	HeapSource
}

var _ Source = MappedSource{}
