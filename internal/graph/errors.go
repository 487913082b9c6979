package graph

import (
	"fmt"

	"github.com/vk/privgraph/internal/fieldref"
)

// ConstructionError reports a dataset declaration set that cannot form a
// valid graph. Construction is side-effect free, so callers may retry after
// fixing the declarations.
type ConstructionError struct {
	// Address is the collection the problem was detected on.
	Address fieldref.CollectionAddress
	// Missing is set when a declared reference names a collection or field
	// absent from the merged dataset set.
	Missing fieldref.FieldAddress
	Reason  string
}

func (e *ConstructionError) Error() string {
	if !e.Missing.IsZero() {
		return fmt.Sprintf("graph construction failed: %s: reference target %s does not exist", e.Address, e.Missing)
	}
	return fmt.Sprintf("graph construction failed: %s: %s", e.Address, e.Reason)
}
