package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrUnexpectedKind     = errors.New("unexpected entity kind")
	ErrChecksumMismatch   = errors.New("checksum mismatch: stream may be corrupted")
	ErrCorrupt            = errors.New("corrupt stream")
)

// ValidationError provides detailed information about payload validation
// failures. It matches ErrCorrupt.
type ValidationError struct {
	Type    string // Type of error (e.g., "degree_limit", "entry_order")
	Field   string // Field being decoded
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Field, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap allows errors.Is(err, ErrCorrupt).
func (e *ValidationError) Unwrap() error {
	return ErrCorrupt
}
