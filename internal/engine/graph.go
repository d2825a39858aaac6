package engine

import (
	"fmt"

	"github.com/flowcraft/enginecore/internal/model"
)

// Graph is the immutable, in-memory DAG built from a WorkflowDefinition.
// Construction validates structural invariants up front (duplicate ids,
// dangling edges, cycles) so that every later operation can assume a
// well-formed graph.
type Graph struct {
	nodes        map[string]*model.Node
	dependencies map[string]map[string]struct{} // node -> set of source ids it depends on
	dependents   map[string][]string             // node -> ids that depend on it
	order        []string                        // node ids in definition order, for deterministic roots()
}

// BuildGraph constructs a Graph from a workflow definition, rejecting
// duplicate node ids, connections to missing node ids, self-loops, and
// cycles with an *InvalidGraphError.
func BuildGraph(def *model.WorkflowDefinition) (*Graph, error) {
	nodes := make(map[string]*model.Node, len(def.Nodes))
	order := make([]string, 0, len(def.Nodes))
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if _, exists := nodes[n.ID]; exists {
			return nil, &InvalidGraphError{Reason: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		nodes[n.ID] = n
		order = append(order, n.ID)
	}

	dependencies := make(map[string]map[string]struct{}, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for id := range nodes {
		dependencies[id] = make(map[string]struct{})
	}

	for _, conn := range def.Connections {
		if conn.SourceNodeID == conn.TargetNodeID {
			return nil, &InvalidGraphError{Reason: fmt.Sprintf("self-loop on node %q", conn.SourceNodeID)}
		}
		if _, ok := nodes[conn.SourceNodeID]; !ok {
			return nil, &InvalidGraphError{Reason: fmt.Sprintf("connection references missing source node %q", conn.SourceNodeID)}
		}
		if _, ok := nodes[conn.TargetNodeID]; !ok {
			return nil, &InvalidGraphError{Reason: fmt.Sprintf("connection references missing target node %q", conn.TargetNodeID)}
		}
		dependencies[conn.TargetNodeID][conn.SourceNodeID] = struct{}{}
		dependents[conn.SourceNodeID] = append(dependents[conn.SourceNodeID], conn.TargetNodeID)
	}

	g := &Graph{nodes: nodes, dependencies: dependencies, dependents: dependents, order: order}
	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) detectCycle() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range g.dependents[id] {
			switch color[dep] {
			case gray:
				return &InvalidGraphError{Reason: fmt.Sprintf("cycle detected involving node %q", dep)}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}
	for _, id := range g.order {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Roots returns the node ids with an empty dependency set, in definition
// order. These form the initial frontier.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.dependencies[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Next returns the node ids whose dependency set is a subset of executed and
// which are not themselves already in executed. A node counts as "consumed"
// for this computation whether it completed, was disabled, or was otherwise
// marked executed by the caller.
func (g *Graph) Next(executed map[string]struct{}) []string {
	var next []string
	for _, id := range g.order {
		if _, done := executed[id]; done {
			continue
		}
		ready := true
		for dep := range g.dependencies[id] {
			if _, depDone := executed[dep]; !depDone {
				ready = false
				break
			}
		}
		if ready {
			next = append(next, id)
		}
	}
	return next
}

// Get returns the node blueprint for id, or false if it is not in the graph.
func (g *Graph) Get(id string) (*model.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}
