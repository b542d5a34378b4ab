// SPDX-License-Identifier: MIT
/*
Package project persists engine state as YAML documents: the node set with
per-type configuration, connections, parameter values, automation lanes,
tempo map and loop region. Positions are stored as exact sample frames, so
a saved project renders bit-identically after a round trip.
*/
package project

import (
	"fmt"
	"sort"
	"time"

	"opentune/internal/automation"
	"opentune/internal/engine"
	"opentune/internal/graph"
	"opentune/internal/nodes"
	"opentune/internal/plugin"
	"opentune/internal/timeline"
	"opentune/pkg/bitint"
)

// Metadata identifies a stored project. Author and the musical fields are
// user-facing; the engine only reads the sample rate back.
type Metadata struct {
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name"`
	Author        string    `yaml:"author,omitempty"`
	Created       time.Time `yaml:"created"`
	Modified      time.Time `yaml:"modified"`
	SampleRate    float64   `yaml:"sample_rate"`
	BitDepth      int       `yaml:"bit_depth"`
	TimeSignature string    `yaml:"time_signature,omitempty"`
}

// NoteSpec is one sequenced note in a clip.
type NoteSpec struct {
	Pos      int64 `yaml:"pos"`
	Length   int64 `yaml:"length"`
	Key      uint8 `yaml:"key"`
	Velocity uint8 `yaml:"velocity"`
}

// NodeSpec describes one node. Type selects the constructor; the remaining
// fields are type-specific and omitted when unused. Parameter values are
// not stored here, they live in the parameters section.
type NodeSpec struct {
	ID   uint32 `yaml:"id"`
	Type string `yaml:"type"`

	Frequency   float64    `yaml:"frequency,omitempty"`    // oscillator
	Channel     uint8      `yaml:"channel,omitempty"`      // noteclip
	Notes       []NoteSpec `yaml:"notes,omitempty"`        // noteclip
	Inputs      int        `yaml:"inputs,omitempty"`       // mixer
	Cutoff      float64    `yaml:"cutoff,omitempty"`       // filter
	DelayFrames int        `yaml:"delay_frames,omitempty"` // delay
	Path        string     `yaml:"path,omitempty"`         // sampler
	Anchor      int64      `yaml:"anchor,omitempty"`       // sampler
	FFTSize     int        `yaml:"fft_size,omitempty"`     // analyzer
	Plugin      string     `yaml:"plugin,omitempty"`       // plugin host
}

// PortSpec is one endpoint of a connection.
type PortSpec struct {
	Node uint32 `yaml:"node"`
	Port string `yaml:"port"`
}

// ConnectionSpec is one directed edge.
type ConnectionSpec struct {
	From PortSpec `yaml:"from"`
	To   PortSpec `yaml:"to"`
}

// ParamSpec is one stored parameter value.
type ParamSpec struct {
	Node  uint32  `yaml:"node"`
	Param uint32  `yaml:"param"`
	Value float64 `yaml:"value"`
}

// BreakpointSpec is one automation breakpoint at an exact sample position.
type BreakpointSpec struct {
	Pos    int64   `yaml:"pos"`
	Value  float64 `yaml:"value"`
	Interp string  `yaml:"interp"`
}

// LaneSpec binds a breakpoint list to a node parameter.
type LaneSpec struct {
	Node        uint32           `yaml:"node"`
	Param       uint32           `yaml:"param"`
	Breakpoints []BreakpointSpec `yaml:"breakpoints"`
}

// TempoSpec is one tempo change.
type TempoSpec struct {
	Pos int64   `yaml:"pos"`
	BPM float64 `yaml:"bpm"`
}

// LoopSpec mirrors the transport loop region.
type LoopSpec struct {
	Enabled bool  `yaml:"enabled"`
	Start   int64 `yaml:"start"`
	End     int64 `yaml:"end"`
}

// Project is the full document.
type Project struct {
	Metadata    Metadata         `yaml:"metadata"`
	Master      uint32           `yaml:"master,omitempty"`
	Tempo       []TempoSpec      `yaml:"tempo,omitempty"`
	Loop        LoopSpec         `yaml:"loop"`
	Nodes       []NodeSpec       `yaml:"nodes,omitempty"`
	Connections []ConnectionSpec `yaml:"connections,omitempty"`
	Parameters  []ParamSpec      `yaml:"parameters,omitempty"`
	Automation  []LaneSpec       `yaml:"automation,omitempty"`
}

// Capture reads the engine's applied state into a document. The caller
// should have no edits in flight.
func (p *Project) Capture(e *engine.Engine) error {
	g := e.Graph()

	all := g.Nodes()
	sort.Slice(all, func(i, j int) bool { return all[i].ID() < all[j].ID() })

	p.Master = uint32(e.Master())
	p.Nodes = p.Nodes[:0]
	p.Parameters = p.Parameters[:0]
	p.Automation = p.Automation[:0]

	for _, n := range all {
		spec, err := describeNode(n)
		if err != nil {
			return err
		}
		p.Nodes = append(p.Nodes, spec)

		pp, ok := n.(graph.ParameterProvider)
		if !ok {
			continue
		}
		for _, param := range pp.Parameters() {
			p.Parameters = append(p.Parameters, ParamSpec{
				Node:  uint32(n.ID()),
				Param: param.ID,
				Value: param.Value(),
			})
			lane := e.Scheduler().Lane(n.ID(), param.ID)
			if lane == nil || lane.Empty() {
				continue
			}
			ls := LaneSpec{Node: uint32(n.ID()), Param: param.ID}
			for _, bp := range lane.Breakpoints() {
				ls.Breakpoints = append(ls.Breakpoints, BreakpointSpec{
					Pos:    bp.Pos,
					Value:  bp.Value,
					Interp: bp.Interp.String(),
				})
			}
			p.Automation = append(p.Automation, ls)
		}
	}

	p.Connections = p.Connections[:0]
	for _, c := range g.Connections() {
		p.Connections = append(p.Connections, ConnectionSpec{
			From: PortSpec{Node: uint32(c.From.Node), Port: c.From.Port},
			To:   PortSpec{Node: uint32(c.To.Node), Port: c.To.Port},
		})
	}

	p.Tempo = p.Tempo[:0]
	for _, tc := range e.TempoMap().Changes() {
		p.Tempo = append(p.Tempo, TempoSpec{Pos: tc.Pos, BPM: tc.BPM})
	}

	loop := e.TransportSnapshot().Loop
	p.Loop = LoopSpec{Enabled: loop.Enabled, Start: loop.Start, End: loop.End}
	p.Metadata.SampleRate = e.SampleRate()
	return nil
}

func describeNode(n graph.Node) (NodeSpec, error) {
	spec := NodeSpec{ID: uint32(n.ID())}
	switch t := n.(type) {
	case *nodes.Oscillator:
		spec.Type = "oscillator"
	case *nodes.NoteClip:
		spec.Type = "noteclip"
		spec.Channel = t.Channel()
		for _, note := range t.Notes() {
			spec.Notes = append(spec.Notes, NoteSpec{
				Pos: note.Pos, Length: note.Length, Key: note.Key, Velocity: note.Velocity,
			})
		}
	case *nodes.Gain:
		spec.Type = "gain"
	case *nodes.Mixer:
		spec.Type = "mixer"
		spec.Inputs = t.Inputs()
	case *nodes.Filter:
		spec.Type = "filter"
	case *nodes.FeedbackDelay:
		spec.Type = "delay"
		spec.DelayFrames = t.DelayFrames()
	case *nodes.Sampler:
		spec.Type = "sampler"
		spec.Path = t.Path()
		spec.Anchor = t.Anchor()
	case *nodes.Analyzer:
		spec.Type = "analyzer"
		spec.FFTSize = t.FFTSize()
	case *plugin.Adapter:
		spec.Type = "plugin"
		spec.Plugin = t.Describe().Name
	default:
		return spec, fmt.Errorf("node %d (%s) has no storable type", n.ID(), n.Name())
	}
	return spec, nil
}

// Materialize rebuilds the engine state from the document. Nodes are
// constructed through the same paths editing uses, so a load behaves
// exactly like replaying the original edits.
func (p *Project) Materialize(e *engine.Engine, pm *plugin.Manager) error {
	for _, spec := range p.Nodes {
		n, err := buildNode(spec, e, pm)
		if err != nil {
			return fmt.Errorf("node %d: %w", spec.ID, err)
		}
		if err := e.AddNode(n); err != nil {
			return err
		}
	}
	if p.Master != 0 {
		if err := e.SetMaster(graph.NodeID(p.Master)); err != nil {
			return err
		}
	}
	for _, c := range p.Connections {
		from := graph.PortRef{Node: graph.NodeID(c.From.Node), Port: c.From.Port}
		to := graph.PortRef{Node: graph.NodeID(c.To.Node), Port: c.To.Port}
		if err := e.Connect(from, to); err != nil {
			return err
		}
	}
	for _, ps := range p.Parameters {
		if err := e.SetParam(graph.NodeID(ps.Node), ps.Param, ps.Value); err != nil {
			return err
		}
	}
	for _, ls := range p.Automation {
		lane := automation.NewLane()
		for _, bp := range ls.Breakpoints {
			interp, err := automation.ParseInterpolation(bp.Interp)
			if err != nil {
				return fmt.Errorf("lane %d/%d: %w", ls.Node, ls.Param, err)
			}
			lane.Insert(automation.Breakpoint{Pos: bp.Pos, Value: bp.Value, Interp: interp})
		}
		if err := e.Automate(graph.NodeID(ls.Node), ls.Param, lane); err != nil {
			return err
		}
	}
	for _, tc := range p.Tempo {
		if err := e.SetTempo(tc.Pos, tc.BPM); err != nil {
			return err
		}
	}
	return e.SetLoop(timeline.Loop{Enabled: p.Loop.Enabled, Start: p.Loop.Start, End: p.Loop.End})
}

func buildNode(spec NodeSpec, e *engine.Engine, pm *plugin.Manager) (graph.Node, error) {
	id := graph.NodeID(spec.ID)
	if pm != nil {
		pm.ReserveID(id)
	}
	switch spec.Type {
	case "oscillator":
		freq := spec.Frequency
		if freq == 0 {
			freq = 440
		}
		return nodes.NewOscillator(id, freq), nil
	case "noteclip":
		clip := make([]nodes.Note, 0, len(spec.Notes))
		for _, ns := range spec.Notes {
			clip = append(clip, nodes.Note{
				Pos: ns.Pos, Length: ns.Length, Key: ns.Key, Velocity: ns.Velocity,
			})
		}
		return nodes.NewNoteClip(id, spec.Channel, clip), nil
	case "gain":
		return nodes.NewGain(id, 1), nil
	case "mixer":
		return nodes.NewMixer(id, spec.Inputs), nil
	case "filter":
		cutoff := spec.Cutoff
		if cutoff == 0 {
			cutoff = 1000
		}
		return nodes.NewFilter(id, cutoff, e.SampleRate()), nil
	case "delay":
		return nodes.NewFeedbackDelay(id, spec.DelayFrames, 0)
	case "sampler":
		s := nodes.NewSampler(id, spec.Path, spec.Anchor)
		if err := s.Load(); err != nil {
			return nil, err
		}
		return s, nil
	case "analyzer":
		// NewAnalyzer panics on a bad size; a damaged document must fail
		// the load instead.
		if !bitint.IsPowerOfTwo(spec.FFTSize) {
			return nil, fmt.Errorf("analyzer fft_size %d is not a power of 2", spec.FFTSize)
		}
		return nodes.NewAnalyzer(id, spec.FFTSize), nil
	case "plugin":
		if pm == nil {
			return nil, fmt.Errorf("no plugin manager for plugin %q", spec.Plugin)
		}
		return pm.Load(spec.Plugin, id, e.SampleRate(), e.BlockSize())
	default:
		return nil, fmt.Errorf("unknown node type %q", spec.Type)
	}
}
