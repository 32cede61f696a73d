package queue

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuotaExceeded rejects a new job when the quota guard reports
	// insufficient space. The caller must free space before retrying.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStoreCorrupted marks persistence-layer read/write failures. These
	// are fatal for the affected operation and always surface to the caller.
	ErrStoreCorrupted = errors.New("job store corrupted")

	// ErrJobNotFound reports a lookup for an unknown job id.
	ErrJobNotFound = errors.New("job not found")
)

// storeErr tags a persistence failure with ErrStoreCorrupted while keeping
// the underlying error inspectable through the chain.
func storeErr(operation string, err error) error {
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "store operation"
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreCorrupted, operation, err)
}
