package graph

import (
	"context"
	"fmt"

	"github.com/vk/privgraph/internal/ctxlog"
	"github.com/vk/privgraph/internal/fieldref"
)

// Node is one collection's field schema plus its resolved incoming and
// outgoing edges. Nodes are owned by the graph and immutable once built.
type Node struct {
	Address       fieldref.CollectionAddress
	ConnectionKey string
	Collection    Collection

	// Incoming edges feed this node's fields from upstream collections.
	// Outgoing edges feed downstream collections from this node's fields.
	// Self loops appear in both lists but never drive scheduling.
	Incoming []fieldref.Edge
	Outgoing []fieldref.Edge

	// SeedFields maps field name to identity attribute for every identity
	// field on this node that no inbound edge satisfies. These are the only
	// valid traversal entry points.
	SeedFields map[string]string
}

// FieldNames returns the declared field names in declaration order.
func (n *Node) FieldNames() []string {
	out := make([]string, len(n.Collection.Fields))
	for i, f := range n.Collection.Fields {
		out[i] = f.Name
	}
	return out
}

// QueryFieldNames returns the fields a compiled predicate may key on: seed
// fields plus every field fed by an inbound edge.
func (n *Node) QueryFieldNames() map[string]struct{} {
	out := make(map[string]struct{}, len(n.SeedFields)+len(n.Incoming))
	for name := range n.SeedFields {
		out[name] = struct{}{}
	}
	for _, e := range n.Incoming {
		if !e.SelfLoop() {
			out[e.To.Field] = struct{}{}
		}
	}
	return out
}

// DatasetGraph is the merged graph over every dataset bound to the active
// connections, keyed by collection address.
type DatasetGraph struct {
	Nodes map[fieldref.CollectionAddress]*Node

	// Identities maps identity attribute name to the seed fields it anchors.
	Identities map[string][]fieldref.FieldAddress
}

// Build merges the supplied dataset declarations into one validated graph.
// It fails if two datasets declare the same collection address or if any
// declared reference targets a collection or field that does not exist.
func Build(ctx context.Context, datasets ...Dataset) (*DatasetGraph, error) {
	logger := ctxlog.FromContext(ctx)
	g := &DatasetGraph{
		Nodes:      make(map[fieldref.CollectionAddress]*Node),
		Identities: make(map[string][]fieldref.FieldAddress),
	}

	// First pass: one node per collection across all datasets.
	for _, ds := range datasets {
		for _, coll := range ds.Collections {
			addr := fieldref.NewCollectionAddress(ds.Name, coll.Name)
			if _, exists := g.Nodes[addr]; exists {
				return nil, &ConstructionError{Address: addr, Reason: "duplicate collection address"}
			}
			g.Nodes[addr] = &Node{
				Address:       addr,
				ConnectionKey: ds.ConnectionKey,
				Collection:    coll,
				SeedFields:    make(map[string]string),
			}
		}
	}
	logger.Debug("graph nodes created", "count", len(g.Nodes))

	// Second pass: resolve declared references into directed edges.
	for _, node := range g.Nodes {
		for _, field := range node.Collection.Fields {
			local := fieldref.FieldAddress{CollectionAddress: node.Address, Field: field.Name}
			for _, ref := range field.References {
				remoteNode, ok := g.Nodes[ref.Remote.CollectionAddress]
				if !ok {
					return nil, &ConstructionError{Address: node.Address, Missing: ref.Remote}
				}
				if _, ok := remoteNode.Collection.Field(ref.Remote.Field); !ok {
					return nil, &ConstructionError{Address: node.Address, Missing: ref.Remote}
				}
				var edge fieldref.Edge
				switch ref.Direction {
				case fieldref.DirectionFrom:
					edge = fieldref.Edge{From: ref.Remote, To: local}
				case fieldref.DirectionTo:
					edge = fieldref.Edge{From: local, To: ref.Remote}
				default:
					return nil, &ConstructionError{
						Address: node.Address,
						Reason:  fmt.Sprintf("reference %s has invalid direction %q", ref.Remote, ref.Direction),
					}
				}
				fromNode := g.Nodes[edge.From.CollectionAddress]
				toNode := g.Nodes[edge.To.CollectionAddress]
				fromNode.Outgoing = append(fromNode.Outgoing, edge)
				toNode.Incoming = append(toNode.Incoming, edge)
			}
		}
	}

	// Third pass: identity fields with no satisfying inbound edge become seeds.
	for _, node := range g.Nodes {
		fed := make(map[string]bool, len(node.Incoming))
		for _, e := range node.Incoming {
			if !e.SelfLoop() {
				fed[e.To.Field] = true
			}
		}
		for _, field := range node.Collection.Fields {
			if field.Identity == "" || fed[field.Name] {
				continue
			}
			node.SeedFields[field.Name] = field.Identity
			addr := fieldref.FieldAddress{CollectionAddress: node.Address, Field: field.Name}
			g.Identities[field.Identity] = append(g.Identities[field.Identity], addr)
		}
	}
	logger.Debug("graph construction complete", "nodes", len(g.Nodes), "identities", len(g.Identities))

	return g, nil
}
