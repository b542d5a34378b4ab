// SPDX-License-Identifier: MIT
/*
Package timeline tracks the playhead: sample position, play state, tempo map
and loop region. The transport is owned by the real-time render loop; other
contexts change it only through queued engine commands and observe it through
read-only snapshots.
*/
package timeline

// SamplePosition is an absolute frame count since transport start. Mirrors
// graph.SamplePosition; kept as a local alias-free type so the package has
// no dependency on the graph.
type SamplePosition = int64

// State of the transport.
type State int

const (
	Stopped State = iota
	Playing
	Recording
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// Loop is an optional [Start, End) loop region in frames.
type Loop struct {
	Enabled bool
	Start   SamplePosition
	End     SamplePosition
}

// Span is a contiguous run of frames to render. A block that crosses the
// loop end is split into two spans so sub-block alignment is preserved.
type Span struct {
	Start  SamplePosition
	Frames int
}

// Transport is the playhead state machine. Not safe for concurrent use; the
// engine confines it to the real-time context.
type Transport struct {
	state State
	pos   SamplePosition
	loop  Loop
	tempo *TempoMap
}

func NewTransport(tempo *TempoMap) *Transport {
	if tempo == nil {
		tempo = NewTempoMap()
	}
	return &Transport{tempo: tempo}
}

func (t *Transport) State() State          { return t.state }
func (t *Transport) Pos() SamplePosition   { return t.pos }
func (t *Transport) Loop() Loop            { return t.loop }
func (t *Transport) Tempo() *TempoMap      { return t.tempo }
func (t *Transport) Rolling() bool         { return t.state != Stopped }
func (t *Transport) SetLoop(l Loop)        { t.loop = l }
func (t *Transport) Seek(p SamplePosition) { t.pos = p }

// Play starts playback from the current position. No-op unless stopped.
func (t *Transport) Play() {
	if t.state == Stopped {
		t.state = Playing
	}
}

// Stop halts the transport from any state, keeping the position. Used both
// for the regular stop command and the hard stop on a fatal device fault.
func (t *Transport) Stop() {
	t.state = Stopped
}

// ToggleRecording flips between playing and recording without losing the
// position. From stopped it starts recording immediately.
func (t *Transport) ToggleRecording() {
	switch t.state {
	case Playing:
		t.state = Recording
	case Recording:
		t.state = Playing
	case Stopped:
		t.state = Recording
	}
}

// Advance produces the spans covering the next frames of playback and moves
// the playhead. A block crossing an enabled loop's end wraps to loop start,
// split at the boundary. Spans are appended to dst so the real-time caller
// can reuse one backing array; dst should have capacity 2. When the
// transport is stopped a single span at the current position is produced and
// the playhead does not move.
func (t *Transport) Advance(frames int, dst []Span) []Span {
	if t.state == Stopped {
		return append(dst, Span{Start: t.pos, Frames: frames})
	}
	looping := t.loop.Enabled && t.loop.End > t.loop.Start
	remaining := frames
	for remaining > 0 {
		// Reaching the loop end exactly is a wrap too: the playhead must
		// never rest on End, or the next block escapes the region.
		if looping && t.pos < t.loop.End && t.pos+SamplePosition(remaining) >= t.loop.End {
			run := int(t.loop.End - t.pos)
			dst = append(dst, Span{Start: t.pos, Frames: run})
			t.pos = t.loop.Start
			remaining -= run
			continue
		}
		dst = append(dst, Span{Start: t.pos, Frames: remaining})
		t.pos += SamplePosition(remaining)
		remaining = 0
	}
	return dst
}

// Snapshot is a read-only copy of the transport for UI layers and for the
// per-block process context.
type Snapshot struct {
	State State
	Pos   SamplePosition
	Loop  Loop
	BPM   float64
}

func (t *Transport) Snapshot() Snapshot {
	return Snapshot{State: t.state, Pos: t.pos, Loop: t.loop, BPM: t.tempo.At(t.pos)}
}
