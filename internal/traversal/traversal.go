// Package traversal computes the dependency-respecting visit order over a
// dataset graph for one concrete identity seed snapshot. Planning is a pure
// function of the graph and the seed map: it performs no I/O, so a dry run
// with null seed values is safe to repeat.
package traversal

import (
	"sort"

	"github.com/vk/privgraph/internal/fieldref"
	"github.com/vk/privgraph/internal/graph"
)

// Traversal is a computed visit order. Order is deterministic for a fixed
// graph and seed snapshot; Layers groups nodes whose inbound edges are all
// satisfied by earlier layers, so nodes within one layer are independent.
type Traversal struct {
	Order  []*graph.Node
	Layers [][]*graph.Node
}

// Plan computes the visit order for the given seed snapshot. Seed values map
// identity attribute name to a concrete value; a nil value is a placeholder
// for validation-only dry runs. Every node must be reachable from some seed
// and the reachable subgraph must be acyclic, else planning fails with an
// error naming the offending nodes.
func Plan(g *graph.DatasetGraph, seeds map[string]any) (*Traversal, error) {
	// Start set: nodes holding a seed field for a provided identity attribute.
	starts := make(map[fieldref.CollectionAddress]*graph.Node)
	for attr := range seeds {
		for _, fa := range g.Identities[attr] {
			starts[fa.CollectionAddress] = g.Nodes[fa.CollectionAddress]
		}
	}
	if len(starts) == 0 {
		provided := make([]string, 0, len(seeds))
		for attr := range seeds {
			provided = append(provided, attr)
		}
		sort.Strings(provided)
		return nil, &NoSeedError{Provided: provided}
	}

	// Reachability over outgoing edges. Self loops never extend reach.
	reachable := make(map[fieldref.CollectionAddress]bool, len(g.Nodes))
	queue := make([]*graph.Node, 0, len(starts))
	for _, n := range starts {
		if !reachable[n.Address] {
			reachable[n.Address] = true
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range n.Outgoing {
			if e.SelfLoop() || reachable[e.To.CollectionAddress] {
				continue
			}
			reachable[e.To.CollectionAddress] = true
			queue = append(queue, g.Nodes[e.To.CollectionAddress])
		}
	}
	if len(reachable) < len(g.Nodes) {
		var missing []fieldref.CollectionAddress
		for addr := range g.Nodes {
			if !reachable[addr] {
				missing = append(missing, addr)
			}
		}
		sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })
		return nil, &UnreachableError{Nodes: missing}
	}

	// Kahn's algorithm, layered. An edge counts toward in-degree once per
	// distinct upstream collection; an upstream that produced zero rows is
	// still a satisfied edge, which is the executor's concern, not ours.
	indegree := make(map[fieldref.CollectionAddress]int, len(g.Nodes))
	upstreams := make(map[fieldref.CollectionAddress]map[fieldref.CollectionAddress]bool)
	for addr, n := range g.Nodes {
		ups := make(map[fieldref.CollectionAddress]bool)
		for _, e := range n.Incoming {
			if !e.SelfLoop() {
				ups[e.From.CollectionAddress] = true
			}
		}
		upstreams[addr] = ups
		indegree[addr] = len(ups)
	}

	ready := make([]*graph.Node, 0, len(starts))
	for addr, n := range g.Nodes {
		if indegree[addr] == 0 {
			ready = append(ready, n)
		}
	}

	t := &Traversal{Order: make([]*graph.Node, 0, len(g.Nodes))}
	visited := make(map[fieldref.CollectionAddress]bool, len(g.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].Address.String() < ready[j].Address.String() })
		layer := ready
		ready = nil
		t.Layers = append(t.Layers, layer)
		for _, n := range layer {
			visited[n.Address] = true
			t.Order = append(t.Order, n)
			for _, e := range n.Outgoing {
				if e.SelfLoop() {
					continue
				}
				down := e.To.CollectionAddress
				if visited[down] || !upstreams[down][n.Address] {
					continue
				}
				delete(upstreams[down], n.Address)
				indegree[down]--
				if indegree[down] == 0 {
					ready = append(ready, g.Nodes[down])
				}
			}
		}
	}

	if len(t.Order) < len(g.Nodes) {
		var stuck []fieldref.CollectionAddress
		for addr := range g.Nodes {
			if !visited[addr] {
				stuck = append(stuck, addr)
			}
		}
		sort.Slice(stuck, func(i, j int) bool { return stuck[i].String() < stuck[j].String() })
		return nil, &CycleError{Node: nodeOnCycle(stuck[0], upstreams)}
	}

	return t, nil
}

// nodeOnCycle walks upstream from a stalled node until an address repeats.
// Every stalled node has at least one unvisited upstream, so the walk always
// closes on a node that is genuinely on a cycle.
func nodeOnCycle(start fieldref.CollectionAddress, upstreams map[fieldref.CollectionAddress]map[fieldref.CollectionAddress]bool) fieldref.CollectionAddress {
	seen := make(map[fieldref.CollectionAddress]bool)
	cur := start
	for !seen[cur] {
		seen[cur] = true
		// Deterministic pick: smallest remaining upstream address.
		var next fieldref.CollectionAddress
		for up := range upstreams[cur] {
			if next.IsZero() || up.String() < next.String() {
				next = up
			}
		}
		if next.IsZero() {
			return cur
		}
		cur = next
	}
	return cur
}
