// SPDX-License-Identifier: MIT
/*
Package graph implements the directed audio processing graph at the core of
the engine:
- Nodes with typed audio/event ports
- Single-source audio connections, fan-in event connections
- Cycle rejection at edit time, cached topological order

Thread Safety:
- Structural edits are not safe for concurrent use; the engine serializes
  them through its command queue and applies them at block boundaries only.
*/
package graph

import (
	"opentune/internal/automation"
)

// NodeID is the stable identity of a node within a graph. IDs are allocated
// by the plugin manager and survive save/load round trips.
type NodeID uint32

// SamplePosition is an absolute frame count since transport start. All engine
// timing is expressed in sample positions, never wall-clock time, so that
// offline rendering and live playback are bit-identical.
type SamplePosition int64

// Node is the atomic schedulable unit of processing.
//
// Process runs on the real-time path once per block in topological order.
// Implementations must not allocate, lock, or block; inputs are already
// filled and outputs must be completely written for the given frame count.
// Returning a non-nil error marks the node faulted: its outputs are replaced
// with silence and it is skipped until Reset is invoked via an engine command.
type Node interface {
	ID() NodeID
	Name() string
	Ports() []Port
	Process(pc *ProcessContext) error
	Reset()
}

// ParameterProvider is implemented by nodes that expose automatable
// parameters. Nodes without parameters simply do not implement it.
type ParameterProvider interface {
	Parameters() []*automation.Parameter
}

// ProcessContext hands a node everything it may touch during one block.
// All slices are owned by the scheduler and pre-bound between structural
// edits; nodes must never retain them past the Process call.
type ProcessContext struct {
	Frames int            // frame count of this (sub-)block
	Start  SamplePosition // timeline position of the first frame
	Rate   float64        // engine sample rate in Hz
	Tempo  float64        // beats per minute at Start

	Playing   bool // transport is rolling (playing or recording)
	Recording bool

	// AudioIn is indexed by the node's audio input ports in declaration
	// order. Unconnected inputs alias a shared zero buffer.
	AudioIn  [][]float64
	AudioOut [][]float64

	// EventsIn is indexed by the node's event input ports in declaration
	// order, merged from all connected sources and sorted by frame offset.
	EventsIn  []Events
	EventsOut []*EventBuffer

	// Params is indexed the same as ParameterProvider.Parameters(), with
	// automation already resolved for this block.
	Params []automation.Resolved
}

// Param returns the resolved value of parameter i at frame within this
// block. Block-constant parameters ignore frame.
func (pc *ProcessContext) Param(i, frame int) float64 {
	r := pc.Params[i]
	if r.Ramp == nil {
		return r.Value
	}
	return r.Ramp[frame]
}
