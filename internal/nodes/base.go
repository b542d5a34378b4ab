// SPDX-License-Identifier: MIT
/*
Package nodes provides the built-in processing nodes:
- Oscillator: monophonic sine generator driven by note events
- NoteClip: timeline-anchored note event source
- Gain: click-free ramped gain stage
- Mixer: N-input summing with master gain
- Filter: Butterworth low-pass (second order sections)
- FeedbackDelay: bounded-feedback delay line, the sanctioned way to build
  feedback without making the graph cyclic
- Sampler: pre-buffered WAV clip player
- Analyzer: FFT spectrum meter tap

Every Process implementation is real-time safe: no allocations, no locks,
no I/O. Anything that needs either happens at construction or configuration
time on a non-real-time context.
*/
package nodes

import "opentune/internal/graph"

// base carries the identity and port plumbing shared by all built-in nodes.
type base struct {
	id    graph.NodeID
	name  string
	ports []graph.Port
}

func (b *base) ID() graph.NodeID    { return b.id }
func (b *base) Name() string        { return b.name }
func (b *base) Ports() []graph.Port { return b.ports }
