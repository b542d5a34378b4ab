// SPDX-License-Identifier: MIT
/*
Package automation implements node parameters and time-indexed automation
lanes. Parameters are read lock-free on the real-time path; lanes are
resolved once per block before any node executes, so a block always sees a
single consistent parameter snapshot.
*/
package automation

import (
	"math"
	"sync/atomic"
)

// Parameter is a named, ranged value owned by one node. The current value is
// stored as atomic float bits so the real-time path reads it without locks
// while edits arrive from non-real-time contexts.
type Parameter struct {
	ID      uint32
	Name    string
	Unit    string
	Min     float64
	Max     float64
	Default float64
	Stepped bool // quantize to integers (stepped/enumerated parameters)

	bits atomic.Uint64
}

// NewParameter creates a parameter initialized to its default value.
func NewParameter(id uint32, name, unit string, min, max, def float64) *Parameter {
	p := &Parameter{ID: id, Name: name, Unit: unit, Min: min, Max: max, Default: def}
	p.bits.Store(math.Float64bits(def))
	return p
}

// Value returns the current value. Zero-alloc, lock-free.
func (p *Parameter) Value() float64 {
	return math.Float64frombits(p.bits.Load())
}

// Set stores a new value clamped to [Min, Max]. Stepped parameters are
// rounded to the nearest integer.
func (p *Parameter) Set(v float64) {
	p.bits.Store(math.Float64bits(p.Clamp(v)))
}

// Clamp returns v constrained to the parameter's range and step grid.
func (p *Parameter) Clamp(v float64) float64 {
	if v < p.Min {
		v = p.Min
	}
	if v > p.Max {
		v = p.Max
	}
	if p.Stepped {
		v = math.Round(v)
	}
	return v
}

// Resolved is one parameter's value for one block. Ramp is non-nil only when
// automation moves the value within the block; it then holds one value per
// frame for click-free application.
type Resolved struct {
	Value float64
	Ramp  []float64
}
