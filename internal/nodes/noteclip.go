// SPDX-License-Identifier: MIT
package nodes

import (
	"sort"

	"gitlab.com/gomidi/midi/v2"

	"opentune/internal/graph"
)

// Note is one clip entry: a key held for Length frames starting at Pos.
type Note struct {
	Pos      int64
	Length   int64
	Key      uint8
	Velocity uint8
}

// NoteClip emits note-on/note-off events at exact timeline positions. It is
// the deterministic event source used for sequenced material; live MIDI
// input goes through the engine command queue instead.
type NoteClip struct {
	base
	notes   []Note
	onMsgs  []midi.Message // pre-built per note so Process never allocates
	offMsgs []midi.Message
	channel uint8
}

func NewNoteClip(id graph.NodeID, channel uint8, notes []Note) *NoteClip {
	sorted := append([]Note(nil), notes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })
	on := make([]midi.Message, len(sorted))
	off := make([]midi.Message, len(sorted))
	for i, n := range sorted {
		on[i] = midi.NoteOn(channel, n.Key, n.Velocity)
		off[i] = midi.NoteOff(channel, n.Key)
	}
	return &NoteClip{
		base: base{
			id:   id,
			name: "noteclip",
			ports: []graph.Port{
				{Name: "notes", Type: graph.EventPort, Dir: graph.Out},
			},
		},
		notes:   sorted,
		onMsgs:  on,
		offMsgs: off,
		channel: channel,
	}
}

func (c *NoteClip) Reset() {}

// Notes returns the clip content for persistence.
func (c *NoteClip) Notes() []Note { return append([]Note(nil), c.notes...) }

// Channel is the MIDI channel the clip emits on.
func (c *NoteClip) Channel() uint8 { return c.channel }

func (c *NoteClip) Process(pc *graph.ProcessContext) error {
	if !pc.Playing {
		return nil
	}
	out := pc.EventsOut[0]
	start := int64(pc.Start)
	end := start + int64(pc.Frames)
	for i, n := range c.notes {
		if n.Pos >= end {
			break
		}
		if n.Pos >= start {
			out.Push(int(n.Pos-start), c.onMsgs[i])
		}
		if off := n.Pos + n.Length; off >= start && off < end {
			out.Push(int(off-start), c.offMsgs[i])
		}
	}
	return nil
}
