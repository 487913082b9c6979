// Package querycfg compiles per-node read and update operations from the
// values gathered off upstream edges and the active policy. Compilers never
// touch a store: they only translate. When no predicate can be built from
// the available input the compiler yields no query and the node is treated
// as empty, not as an error.
package querycfg

import (
	"sort"

	"github.com/vk/privgraph/internal/graph"
)

// Row is one retrieved record, field name to tagged value.
type Row = map[string]any

// FilterValues keeps only input entries that are usable as predicates: the
// key must be a declared query field of the node and carry at least one
// value. Order-preserving duplicates are collapsed.
func FilterValues(node *graph.Node, input map[string][]any) map[string][]any {
	queryable := node.QueryFieldNames()
	out := make(map[string][]any)
	for key, values := range input {
		if _, ok := queryable[key]; !ok {
			continue
		}
		deduped := dedupe(values)
		if len(deduped) > 0 {
			out[key] = deduped
		}
	}
	return out
}

// sortedKeys gives compilers a deterministic clause order.
func sortedKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(values []any) []any {
	seen := make(map[any]bool, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		// Non-comparable values (nested maps/slices) pass through unconditionally.
		if isComparable(v) {
			if seen[v] {
				continue
			}
			seen[v] = true
		}
		out = append(out, v)
	}
	return out
}

func isComparable(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}
