// SPDX-License-Identifier: MIT
package graph

import "fmt"

// CycleError reports a rejected connection that would have made the graph
// cyclic. The graph is left unchanged.
type CycleError struct {
	From PortRef
	To   PortRef
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("connection %d:%s -> %d:%s would create a cycle",
		e.From.Node, e.From.Port, e.To.Node, e.To.Port)
}

// PortMismatchError reports a rejected connection between incompatible
// ports: wrong direction, wrong type, unknown node or port, or an audio
// input that already has a source.
type PortMismatchError struct {
	From   PortRef
	To     PortRef
	Reason string
}

func (e *PortMismatchError) Error() string {
	return fmt.Sprintf("cannot connect %d:%s -> %d:%s: %s",
		e.From.Node, e.From.Port, e.To.Node, e.To.Port, e.Reason)
}
