package executor

import (
	"errors"

	"github.com/vk/privgraph/internal/connectors"
	"github.com/vk/privgraph/internal/connectors/querycfg"
	"github.com/vk/privgraph/internal/execlog"
	"github.com/vk/privgraph/internal/fieldref"
)

// NodeResult is the explicit per-attempt result consumed by the control
// loop. Retry and halt decisions are data, not control flow: a retryable
// failure re-runs the identical compiled operation, a fatal one halts the
// request.
type NodeResult struct {
	Rows      []querycfg.Row
	Err       error
	Retryable bool
}

// classify wraps an attempt's outcome. Connector-level failures are
// retryable; anything else (missing configuration, malformed declarations)
// is fatal immediately.
func classify(rows []querycfg.Row, err error) NodeResult {
	if err == nil {
		return NodeResult{Rows: rows}
	}
	var connErr *connectors.ConnectionError
	return NodeResult{Err: err, Retryable: errors.As(err, &connErr)}
}

// Outcome is the per-node record streamed back to the caller.
type Outcome struct {
	Address     fieldref.CollectionAddress
	Status      execlog.Status
	RowCount    int
	MaskedCount int
	FromCache   bool
	Err         error
}
