// SPDX-License-Identifier: MIT
package graph

import (
	"github.com/viterin/vek"
	"gitlab.com/gomidi/midi/v2"
)

// Event is one control message anchored to a frame offset within a block.
type Event struct {
	Frame int // offset within the current block, 0 <= Frame < block size
	Msg   midi.Message
}

// Events is a read-only view of an event input for one block.
type Events []Event

// EventBuffer is a fixed-capacity event output. It is reset by the scheduler
// at the start of every block; Push never grows the backing array, events
// past the capacity are dropped.
type EventBuffer struct {
	events []Event
}

// NewEventBuffer pre-allocates room for capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{events: make([]Event, 0, capacity)}
}

// Push appends an event if capacity remains. Zero-alloc.
func (b *EventBuffer) Push(frame int, msg midi.Message) bool {
	if len(b.events) == cap(b.events) {
		return false
	}
	b.events = append(b.events, Event{Frame: frame, Msg: msg})
	return true
}

// Events returns the events pushed this block.
func (b *EventBuffer) Events() Events { return b.events }

// Reset empties the buffer keeping the allocated memory.
func (b *EventBuffer) Reset() { b.events = b.events[:0] }

// Zero fills an audio buffer with silence. Zero-alloc.
func Zero(buf []float64) {
	vek.Zeros_Into(buf, len(buf))
}

// SortEvents orders events by frame offset in place. Insertion sort keeps
// this allocation-free; merged event fan-in is nearly sorted already.
func SortEvents(events []Event) {
	for i := 1; i < len(events); i++ {
		e := events[i]
		j := i - 1
		for j >= 0 && events[j].Frame > e.Frame {
			events[j+1] = events[j]
			j--
		}
		events[j+1] = e
	}
}
