package unwind

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// chain is the builder's internal dependency graph. The sequential engine
// only ever produces a linear chain (each step depends on the previous one),
// but the definition is kept as a real directed graph so that Build derives
// the frozen step sequence from the dependency edges with a stabilized
// topological sort instead of trusting insertion bookkeeping.
type chain struct {
	graph *simple.DirectedGraph
	steps map[int64]*Step

	// most recently added node; the next appended step depends on it
	last int64
}

func newChain() *chain {
	return &chain{
		graph: simple.NewDirectedGraph(),
		steps: make(map[int64]*Step),
		last:  -1,
	}
}

// append adds a step node with an edge from the previously appended node.
func (c *chain) append(step *Step) {
	node := c.graph.NewNode()
	c.graph.AddNode(node)
	c.steps[node.ID()] = step

	if c.last >= 0 {
		c.graph.SetEdge(simple.Edge{F: c.graph.Node(c.last), T: node})
	}
	c.last = node.ID()
}

func (c *chain) len() int {
	return len(c.steps)
}

// executionOrder returns the steps in dependency order, with node-ID
// tie-breaking for deterministic results. The returned slice is freshly
// allocated on every call, so later appends never affect an earlier order.
func (c *chain) executionOrder() ([]*Step, error) {
	sorted, err := topo.SortStabilized(c.graph, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].ID() < nodes[j].ID()
		})
	})
	if err != nil {
		return nil, fmt.Errorf("topological sort failed (cycle detected?): %w", err)
	}

	steps := make([]*Step, len(sorted))
	for i, node := range sorted {
		steps[i] = c.steps[node.ID()]
	}
	return steps, nil
}
