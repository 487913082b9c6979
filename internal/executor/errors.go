package executor

import (
	"fmt"

	"github.com/vk/privgraph/internal/fieldref"
)

// RetrievalError reports a node whose read operation failed after exhausting
// its retry budget. It halts the request.
type RetrievalError struct {
	Address  fieldref.CollectionAddress
	Attempts int
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for %s after %d attempts: %v", e.Address, e.Attempts, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// MaskingError reports a node whose masking operation failed after exhausting
// its retry budget. It halts the request.
type MaskingError struct {
	Address  fieldref.CollectionAddress
	Attempts int
	Err      error
}

func (e *MaskingError) Error() string {
	return fmt.Sprintf("masking failed for %s after %d attempts: %v", e.Address, e.Attempts, e.Err)
}

func (e *MaskingError) Unwrap() error { return e.Err }
