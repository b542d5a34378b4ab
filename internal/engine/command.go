// SPDX-License-Identifier: MIT
package engine

import (
	"opentune/internal/automation"
	"opentune/internal/graph"
	"opentune/internal/timeline"
)

// Op identifies what a queued command does when it is applied at the next
// block boundary.
type Op int

const (
	OpAddNode Op = iota
	OpRemoveNode
	OpConnect
	OpDisconnect
	OpSetParam
	OpSetLane
	OpClearLane
	OpResetNode
	OpPlay
	OpStop
	OpToggleRecording
	OpSeek
	OpSetLoop
	OpSetTempo
)

// Command is one apply-at-next-block-boundary instruction. Commands are
// built and validated on the editing context; the real-time context only
// applies them. Anything that needs allocation (node construction, lane
// building) has already happened by the time a command enters the ring.
type Command struct {
	Op Op

	Node   graph.Node   // OpAddNode: the fully constructed node
	NodeID graph.NodeID // OpRemoveNode, OpSetParam, OpSetLane, OpClearLane, OpResetNode
	From   graph.PortRef
	To     graph.PortRef

	ParamID uint32
	Value   float64
	Lane    *automation.Lane

	Pos  timeline.SamplePosition // OpSeek, OpSetTempo
	Loop timeline.Loop
	BPM  float64
}
