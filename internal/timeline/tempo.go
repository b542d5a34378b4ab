// SPDX-License-Identifier: MIT
package timeline

import "sort"

// TempoChange sets a new tempo from an exact frame position onward. Changes
// never apply retroactively.
type TempoChange struct {
	Pos SamplePosition
	BPM float64
}

// TempoMap is an ordered sequence of tempo changes. An empty map plays at
// DefaultBPM.
type TempoMap struct {
	changes []TempoChange
}

// DefaultBPM is used when a project declares no tempo at position zero.
const DefaultBPM = 120.0

// NewTempoMap builds a map, sorting the changes by position.
func NewTempoMap(changes ...TempoChange) *TempoMap {
	m := &TempoMap{changes: append([]TempoChange(nil), changes...)}
	sort.SliceStable(m.changes, func(i, j int) bool { return m.changes[i].Pos < m.changes[j].Pos })
	return m
}

// Set inserts or replaces the change at pos.
func (m *TempoMap) Set(pos SamplePosition, bpm float64) {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].Pos >= pos })
	if i < len(m.changes) && m.changes[i].Pos == pos {
		m.changes[i].BPM = bpm
		return
	}
	m.changes = append(m.changes, TempoChange{})
	copy(m.changes[i+1:], m.changes[i:])
	m.changes[i] = TempoChange{Pos: pos, BPM: bpm}
}

// At returns the tempo effective at pos: the last change at or before pos,
// or DefaultBPM before the first change.
func (m *TempoMap) At(pos SamplePosition) float64 {
	bpm := DefaultBPM
	for _, c := range m.changes {
		if c.Pos > pos {
			break
		}
		bpm = c.BPM
	}
	return bpm
}

// Changes returns the map's changes in position order.
func (m *TempoMap) Changes() []TempoChange {
	return append([]TempoChange(nil), m.changes...)
}

// BeatAt converts a frame position to a beat position by integrating the
// tempo map piecewise. Needed by editing layers that display bars/beats; the
// engine itself only ever works in frames.
func (m *TempoMap) BeatAt(pos SamplePosition, sampleRate float64) float64 {
	var beats float64
	prevPos := SamplePosition(0)
	prevBPM := DefaultBPM
	if len(m.changes) > 0 && m.changes[0].Pos == 0 {
		prevBPM = m.changes[0].BPM
	}
	for _, c := range m.changes {
		if c.Pos > pos {
			break
		}
		if c.Pos > prevPos {
			beats += float64(c.Pos-prevPos) / sampleRate * prevBPM / 60.0
			prevPos = c.Pos
		}
		prevBPM = c.BPM
	}
	beats += float64(pos-prevPos) / sampleRate * prevBPM / 60.0
	return beats
}
