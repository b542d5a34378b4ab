// SPDX-License-Identifier: MIT
package engine

import (
	"math"
	"sync/atomic"

	"opentune/internal/automation"
	"opentune/internal/graph"
	"opentune/internal/timeline"
)

// Events that can land on one input port within one block.
const eventCapacity = 256

type laneKey struct {
	node  graph.NodeID
	param uint32
}

// FaultNotice describes the most recent node fault for the status feed.
type FaultNotice struct {
	Node graph.NodeID `json:"node"`
	Name string       `json:"name"`
	Err  string       `json:"error"`
}

// nodeState is the scheduler's per-node binding: buffers, resolved
// parameter slots and fault state. Rebuilt by Rebind after structural
// edits; stable between them so RenderBlock itself never allocates.
type nodeState struct {
	node graph.Node
	pc   graph.ProcessContext

	audioOuts  [][]float64
	audioOutIx map[string]int
	eventOuts  []*graph.EventBuffer
	eventOutIx map[string]int

	// eventSrcs[i] are the producers feeding event input i; merge[i] is
	// the pre-allocated merge area the block's view is built in.
	eventSrcs [][]*graph.EventBuffer
	merge     [][]graph.Event

	params []*automation.Parameter
	lanes  []*automation.Lane
	ramps  [][]float64

	// Written by the render loop, read by the status feed.
	faulted atomic.Bool

	peakBits atomic.Uint64
	rmsBits  atomic.Uint64
}

func (s *nodeState) setMeter(peak, rms float64) {
	s.peakBits.Store(math.Float64bits(peak))
	s.rmsBits.Store(math.Float64bits(rms))
}

func (s *nodeState) Peak() float64 { return math.Float64frombits(s.peakBits.Load()) }
func (s *nodeState) RMS() float64  { return math.Float64frombits(s.rmsBits.Load()) }

// Scheduler walks the graph once per block in cached topological order.
// Given identical topology, node state, transport and parameter values it
// produces bit-identical output, which is what keeps offline rendering and
// live playback consistent.
type Scheduler struct {
	g          *graph.Graph
	sampleRate float64
	blockSize  int

	order []*nodeState
	byID  map[graph.NodeID]*nodeState
	zero  []float64

	lanes map[laneKey]*automation.Lane

	nodeFaults atomic.Uint64
	lastFault  atomic.Pointer[FaultNotice]
}

func NewScheduler(g *graph.Graph, sampleRate float64, blockSize int) *Scheduler {
	s := &Scheduler{
		g:          g,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		byID:       make(map[graph.NodeID]*nodeState),
		zero:       make([]float64, blockSize),
		lanes:      make(map[laneKey]*automation.Lane),
	}
	s.Rebind()
	return s
}

// Rebind rebuilds all per-node bindings from the graph. Called after every
// structural edit, always between blocks. This is the one place the
// scheduler allocates.
func (s *Scheduler) Rebind() {
	order := s.g.Order()
	states := make([]*nodeState, 0, len(order))
	byID := make(map[graph.NodeID]*nodeState, len(order))

	// First pass: allocate outputs so inputs can alias them in pass two.
	for _, n := range order {
		st := &nodeState{
			node:       n,
			audioOutIx: make(map[string]int),
			eventOutIx: make(map[string]int),
		}
		if old := s.byID[n.ID()]; old != nil {
			st.faulted.Store(old.faulted.Load())
		}
		for _, p := range n.Ports() {
			if p.Dir != graph.Out {
				continue
			}
			switch p.Type {
			case graph.AudioPort:
				st.audioOutIx[p.Name] = len(st.audioOuts)
				st.audioOuts = append(st.audioOuts, make([]float64, s.blockSize))
			case graph.EventPort:
				st.eventOutIx[p.Name] = len(st.eventOuts)
				st.eventOuts = append(st.eventOuts, graph.NewEventBuffer(eventCapacity))
			}
		}
		if pp, ok := n.(graph.ParameterProvider); ok {
			st.params = pp.Parameters()
			st.lanes = make([]*automation.Lane, len(st.params))
			st.ramps = make([][]float64, len(st.params))
			for i, p := range st.params {
				st.lanes[i] = s.lanes[laneKey{n.ID(), p.ID}]
				st.ramps[i] = make([]float64, s.blockSize)
			}
		}
		st.pc = graph.ProcessContext{
			Rate:      s.sampleRate,
			AudioOut:  st.audioOuts,
			EventsOut: st.eventOuts,
			Params:    make([]automation.Resolved, len(st.params)),
		}
		states = append(states, st)
		byID[n.ID()] = st
	}

	// Second pass: bind inputs to producer outputs.
	for _, st := range states {
		for _, p := range st.node.Ports() {
			if p.Dir != graph.In {
				continue
			}
			ref := graph.PortRef{Node: st.node.ID(), Port: p.Name}
			switch p.Type {
			case graph.AudioPort:
				buf := s.zero
				if src, ok := s.g.AudioSource(ref); ok {
					prod := byID[src.Node]
					buf = prod.audioOuts[prod.audioOutIx[src.Port]]
				}
				st.pc.AudioIn = append(st.pc.AudioIn, buf)
			case graph.EventPort:
				var srcs []*graph.EventBuffer
				for _, src := range s.g.EventSources(ref) {
					prod := byID[src.Node]
					srcs = append(srcs, prod.eventOuts[prod.eventOutIx[src.Port]])
				}
				st.eventSrcs = append(st.eventSrcs, srcs)
				st.merge = append(st.merge, make([]graph.Event, 0, eventCapacity))
				st.pc.EventsIn = append(st.pc.EventsIn, nil)
			}
		}
	}

	s.order = states
	s.byID = byID
}

// RenderBlock renders frames samples starting at start. frames never
// exceeds the block size; the transport may request less when a block
// crosses a loop boundary. Zero-alloc outside node faults.
func (s *Scheduler) RenderBlock(start graph.SamplePosition, frames int, snap timeline.Snapshot) {
	for _, st := range s.order {
		if st.faulted.Load() {
			// A faulted node is silent until explicitly reset.
			s.silence(st, frames)
			continue
		}

		for _, out := range st.eventOuts {
			out.Reset()
		}
		for i, srcs := range st.eventSrcs {
			merged := st.merge[i][:0]
			for _, src := range srcs {
				for _, ev := range src.Events() {
					if len(merged) == cap(merged) {
						break
					}
					merged = append(merged, ev)
				}
			}
			graph.SortEvents(merged)
			st.merge[i] = merged
			st.pc.EventsIn[i] = graph.Events(merged)
		}

		for i, p := range st.params {
			lane := st.lanes[i]
			if lane == nil || lane.Empty() {
				st.pc.Params[i] = automation.Resolved{Value: p.Value()}
				continue
			}
			v, constant := lane.Resolve(int64(start), frames, st.ramps[i])
			p.Set(v)
			if constant {
				st.pc.Params[i] = automation.Resolved{Value: p.Value()}
			} else {
				// Lanes may carry breakpoints outside the parameter's
				// range; the ramp goes through the same clamp a direct
				// Set does.
				ramp := st.ramps[i]
				for f := 0; f < frames; f++ {
					ramp[f] = p.Clamp(ramp[f])
				}
				st.pc.Params[i] = automation.Resolved{Value: p.Value(), Ramp: ramp}
			}
		}

		st.pc.Frames = frames
		st.pc.Start = start
		st.pc.Tempo = snap.BPM
		st.pc.Playing = snap.State != timeline.Stopped
		st.pc.Recording = snap.State == timeline.Recording

		if err := st.node.Process(&st.pc); err != nil {
			s.silence(st, frames)
			st.faulted.Store(true)
			s.nodeFaults.Add(1)
			s.lastFault.Store(&FaultNotice{
				Node: st.node.ID(),
				Name: st.node.Name(),
				Err:  err.Error(),
			})
			continue
		}

		s.meter(st, frames)
	}
}

// silence zeroes a node's contribution for this block.
func (s *Scheduler) silence(st *nodeState, frames int) {
	for _, out := range st.audioOuts {
		graph.Zero(out[:frames])
	}
	for _, out := range st.eventOuts {
		out.Reset()
	}
	st.setMeter(0, 0)
}

// meter computes peak and RMS across the node's audio outputs.
func (s *Scheduler) meter(st *nodeState, frames int) {
	if len(st.audioOuts) == 0 {
		return
	}
	var peak, sum float64
	var count int
	for _, out := range st.audioOuts {
		for _, v := range out[:frames] {
			if a := math.Abs(v); a > peak {
				peak = a
			}
			sum += v * v
			count++
		}
	}
	rms := 0.0
	if count > 0 {
		rms = math.Sqrt(sum / float64(count))
	}
	st.setMeter(peak, rms)
}

// NodeAudioOut exposes a node's audio output buffers, used by the engine to
// read the master bus after a render.
func (s *Scheduler) NodeAudioOut(id graph.NodeID) [][]float64 {
	st := s.byID[id]
	if st == nil {
		return nil
	}
	return st.audioOuts
}

// Faulted reports whether a node is currently faulted.
func (s *Scheduler) Faulted(id graph.NodeID) bool {
	st := s.byID[id]
	return st != nil && st.faulted.Load()
}

// ResetNode clears a node's fault state and resets its processing state.
func (s *Scheduler) ResetNode(id graph.NodeID) {
	st := s.byID[id]
	if st == nil {
		return
	}
	st.faulted.Store(false)
	st.node.Reset()
}

// SetLane binds an automation lane to a node parameter; a nil lane unbinds.
func (s *Scheduler) SetLane(node graph.NodeID, param uint32, lane *automation.Lane) {
	key := laneKey{node, param}
	if lane == nil {
		delete(s.lanes, key)
	} else {
		s.lanes[key] = lane
	}
	st := s.byID[node]
	if st == nil {
		return
	}
	for i, p := range st.params {
		if p.ID == param {
			st.lanes[i] = lane
		}
	}
}

// Lane returns the lane bound to a node parameter, if any.
func (s *Scheduler) Lane(node graph.NodeID, param uint32) *automation.Lane {
	return s.lanes[laneKey{node, param}]
}

// NodeFaults returns the total fault count since engine start.
func (s *Scheduler) NodeFaults() uint64 { return s.nodeFaults.Load() }

// LastFault returns the most recent fault notice, or nil.
func (s *Scheduler) LastFault() *FaultNotice { return s.lastFault.Load() }
