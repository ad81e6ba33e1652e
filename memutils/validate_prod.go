//go:build !debug_mem_utils

package memutils

const (
	// DebugMargin is the number of guard bytes placed after the payload of every allocation
	DebugMargin int = 0
)

// WriteMagicValue fills the DebugMargin bytes of data starting at offset with an easy-to-identify marker.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteMagicValue(data []byte, offset int) {
}

// ValidateMagicValue reports whether the marker written by WriteMagicValue is still intact.
// This method always returns true unless the debug_mem_utils build tag is present.
func ValidateMagicValue(data []byte, offset int) bool {
	return true
}

// DebugValidate calls Validate on the provided object and panics if it returns an error.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugValidate(validatable Validatable) {
}
