// SPDX-License-Identifier: MIT
package graph

import "fmt"

// Connection is a directed edge between an output port and an input port.
type Connection struct {
	From PortRef
	To   PortRef
}

// Graph owns the node set and connection relation. Audio inputs accept at
// most one source (mixing is an explicit mixer node); event inputs accept
// fan-in. The connection relation is kept acyclic by construction, so a
// topological order always exists. Feedback loops are expressed through the
// bounded feedback-delay node, which breaks the cycle by reading one block
// behind.
type Graph struct {
	nodes map[NodeID]Node
	conns []Connection

	order []Node // cached topological order, nil when dirty
}

func New() *Graph {
	return &Graph{nodes: make(map[NodeID]Node)}
}

// AddNode inserts a node. The node's ID must be unique within the graph.
func (g *Graph) AddNode(n Node) error {
	if _, ok := g.nodes[n.ID()]; ok {
		return fmt.Errorf("node %d already in graph", n.ID())
	}
	g.nodes[n.ID()] = n
	g.order = nil
	return nil
}

// RemoveNode deletes a node and every connection attached to it. Detaching
// the connections is a documented side effect of removal; callers that need
// them must read Connections() first.
func (g *Graph) RemoveNode(id NodeID) error {
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("node %d not in graph", id)
	}
	delete(g.nodes, id)
	kept := g.conns[:0]
	for _, c := range g.conns {
		if c.From.Node != id && c.To.Node != id {
			kept = append(kept, c)
		}
	}
	g.conns = kept
	g.order = nil
	return nil
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// Nodes returns all nodes in unspecified order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Connections returns a copy of the connection list.
func (g *Graph) Connections() []Connection {
	out := make([]Connection, len(g.conns))
	copy(out, g.conns)
	return out
}

// Connect adds the edge from -> to after validating it. On failure the
// graph is unchanged and the error is either a *PortMismatchError or a
// *CycleError.
func (g *Graph) Connect(from, to PortRef) error {
	if err := g.CheckConnect(from, to); err != nil {
		return err
	}
	g.conns = append(g.conns, Connection{From: from, To: to})
	g.order = nil
	return nil
}

// CheckConnect validates the edge from -> to without adding it. The engine
// uses this to reject bad edits synchronously while deferring the mutation
// to a block boundary.
func (g *Graph) CheckConnect(from, to PortRef) error {
	src, err := g.port(from, Out)
	if err != nil {
		return &PortMismatchError{From: from, To: to, Reason: err.Error()}
	}
	dst, err := g.port(to, In)
	if err != nil {
		return &PortMismatchError{From: from, To: to, Reason: err.Error()}
	}
	if src.Type != dst.Type {
		return &PortMismatchError{From: from, To: to,
			Reason: fmt.Sprintf("port type %s does not match %s", src.Type, dst.Type)}
	}
	for _, c := range g.conns {
		if c.From == from && c.To == to {
			return &PortMismatchError{From: from, To: to, Reason: "already connected"}
		}
		if dst.Type == AudioPort && c.To == to {
			return &PortMismatchError{From: from, To: to,
				Reason: "audio input already has a source, insert a mixer node"}
		}
	}
	// Reachability: a new edge from -> to is a cycle iff from.Node can be
	// reached by walking forward from to.Node. Self edges are the trivial
	// case. Event edges participate because the scheduler delivers events
	// within the same block and therefore needs a full order.
	if from.Node == to.Node || g.reaches(to.Node, from.Node) {
		return &CycleError{From: from, To: to}
	}
	return nil
}

// Disconnect removes the exact edge from -> to.
func (g *Graph) Disconnect(from, to PortRef) error {
	for i, c := range g.conns {
		if c.From == from && c.To == to {
			g.conns = append(g.conns[:i], g.conns[i+1:]...)
			g.order = nil
			return nil
		}
	}
	return fmt.Errorf("no connection %d:%s -> %d:%s", from.Node, from.Port, to.Node, to.Port)
}

// Connected reports whether the exact edge from -> to exists.
func (g *Graph) Connected(from, to PortRef) bool {
	for _, c := range g.conns {
		if c.From == from && c.To == to {
			return true
		}
	}
	return false
}

// AudioSource returns the single audio source feeding the given input, if
// connected.
func (g *Graph) AudioSource(to PortRef) (PortRef, bool) {
	for _, c := range g.conns {
		if c.To == to {
			return c.From, true
		}
	}
	return PortRef{}, false
}

// EventSources returns every source feeding the given event input.
func (g *Graph) EventSources(to PortRef) []PortRef {
	var out []PortRef
	for _, c := range g.conns {
		if c.To == to {
			out = append(out, c.From)
		}
	}
	return out
}

// Order returns the cached topological order, recomputing it lazily after a
// structural edit. Every node appears exactly once and every connection's
// source precedes its target.
func (g *Graph) Order() []Node {
	if g.order != nil {
		return g.order
	}
	indeg := make(map[NodeID]int, len(g.nodes))
	for id := range g.nodes {
		indeg[id] = 0
	}
	for _, c := range g.conns {
		indeg[c.To.Node]++
	}
	// Ready set kept sorted by ID so the order, and with it the render
	// output, is deterministic across runs.
	ready := make([]NodeID, 0, len(g.nodes))
	for id, d := range indeg {
		if d == 0 {
			ready = insertSorted(ready, id)
		}
	}
	order := make([]Node, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, g.nodes[id])
		for _, c := range g.conns {
			if c.From.Node != id {
				continue
			}
			indeg[c.To.Node]--
			if indeg[c.To.Node] == 0 {
				ready = insertSorted(ready, c.To.Node)
			}
		}
	}
	// Connect rejects cycles, so the order always covers every node.
	g.order = order
	return g.order
}

// reaches reports whether walking forward from src can arrive at dst.
func (g *Graph) reaches(src, dst NodeID) bool {
	if src == dst {
		return true
	}
	seen := map[NodeID]bool{src: true}
	stack := []NodeID{src}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range g.conns {
			if c.From.Node != id || seen[c.To.Node] {
				continue
			}
			if c.To.Node == dst {
				return true
			}
			seen[c.To.Node] = true
			stack = append(stack, c.To.Node)
		}
	}
	return false
}

// port resolves a port reference, checking existence and direction.
func (g *Graph) port(ref PortRef, dir Direction) (Port, error) {
	n, ok := g.nodes[ref.Node]
	if !ok {
		return Port{}, fmt.Errorf("node %d not in graph", ref.Node)
	}
	for _, p := range n.Ports() {
		if p.Name == ref.Port && p.Dir == dir {
			return p, nil
		}
	}
	return Port{}, fmt.Errorf("node %d has no %s port %q", ref.Node, dir, ref.Port)
}

func insertSorted(ids []NodeID, id NodeID) []NodeID {
	i := len(ids)
	for i > 0 && ids[i-1] > id {
		i--
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
