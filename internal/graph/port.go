// SPDX-License-Identifier: MIT
package graph

// PortType distinguishes audio-rate ports from event (control/MIDI) ports.
type PortType int

const (
	AudioPort PortType = iota
	EventPort
)

func (t PortType) String() string {
	switch t {
	case AudioPort:
		return "audio"
	case EventPort:
		return "event"
	default:
		return "unknown"
	}
}

// Direction of a port relative to its node.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// Port is a typed endpoint on a Node. Type and direction are fixed at node
// construction and never change for the lifetime of the node.
type Port struct {
	Name string
	Type PortType
	Dir  Direction
}

// PortRef addresses one port on one node within a Graph.
type PortRef struct {
	Node NodeID
	Port string
}
