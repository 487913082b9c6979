package traversal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/privgraph/internal/fieldref"
)

// UnreachableError reports nodes that no identity seed can ever feed.
type UnreachableError struct {
	Nodes []fieldref.CollectionAddress
}

func (e *UnreachableError) Error() string {
	names := make([]string, len(e.Nodes))
	for i, a := range e.Nodes {
		names[i] = a.String()
	}
	sort.Strings(names)
	return fmt.Sprintf("traversal failed: nodes unreachable from any identity seed: %s", strings.Join(names, ", "))
}

// CycleError reports a dependency cycle, naming one node on it.
type CycleError struct {
	Node fieldref.CollectionAddress
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("traversal failed: dependency cycle detected involving node %s", e.Node)
}

// NoSeedError reports a seed snapshot that matches no identity field in the graph.
type NoSeedError struct {
	Provided []string
}

func (e *NoSeedError) Error() string {
	return fmt.Sprintf("traversal failed: no identity seed in %v anchors any node", e.Provided)
}
