// SPDX-License-Identifier: MIT
package automation

import (
	"fmt"
	"math"
	"sort"
)

// Interpolation selects how a lane moves between two breakpoints.
type Interpolation int

const (
	// Step holds the breakpoint value until the next breakpoint.
	Step Interpolation = iota
	// Linear interpolates linearly in value.
	Linear
	// Exponential interpolates linearly in log space, matching perceptual
	// parameters such as gain and frequency. Falls back to linear when an
	// endpoint is not strictly positive.
	Exponential
)

func (i Interpolation) String() string {
	switch i {
	case Step:
		return "step"
	case Linear:
		return "linear"
	case Exponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// ParseInterpolation converts the serialized lane form back to an
// Interpolation. Unknown names report an error rather than defaulting, so a
// damaged project file is caught at load time.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "step":
		return Step, nil
	case "linear":
		return Linear, nil
	case "exponential":
		return Exponential, nil
	default:
		return Step, fmt.Errorf("unknown interpolation %q", s)
	}
}

// Breakpoint is one control point of a lane. Pos is an exact frame count;
// automation timing never goes through floating point so save/load round
// trips are lossless.
type Breakpoint struct {
	Pos    int64
	Value  float64
	Interp Interpolation
}

// Lane is an ordered breakpoint sequence bound to one parameter. It is
// evaluable at any position: before the first breakpoint it clamps to the
// first value, after the last to the last value.
type Lane struct {
	points []Breakpoint
}

// NewLane builds a lane, sorting the breakpoints by position.
func NewLane(points ...Breakpoint) *Lane {
	l := &Lane{points: append([]Breakpoint(nil), points...)}
	sort.SliceStable(l.points, func(i, j int) bool { return l.points[i].Pos < l.points[j].Pos })
	return l
}

// Insert adds a breakpoint keeping the lane sorted. A breakpoint at an
// existing position replaces the old one.
func (l *Lane) Insert(bp Breakpoint) {
	i := sort.Search(len(l.points), func(i int) bool { return l.points[i].Pos >= bp.Pos })
	if i < len(l.points) && l.points[i].Pos == bp.Pos {
		l.points[i] = bp
		return
	}
	l.points = append(l.points, Breakpoint{})
	copy(l.points[i+1:], l.points[i:])
	l.points[i] = bp
}

// Remove deletes the breakpoint at pos, if any.
func (l *Lane) Remove(pos int64) bool {
	i := sort.Search(len(l.points), func(i int) bool { return l.points[i].Pos >= pos })
	if i < len(l.points) && l.points[i].Pos == pos {
		l.points = append(l.points[:i], l.points[i+1:]...)
		return true
	}
	return false
}

// Breakpoints returns the lane's points in position order.
func (l *Lane) Breakpoints() []Breakpoint {
	return append([]Breakpoint(nil), l.points...)
}

// Empty reports whether the lane has no breakpoints.
func (l *Lane) Empty() bool { return len(l.points) == 0 }

// Value evaluates the lane at one position.
func (l *Lane) Value(pos int64) float64 {
	n := len(l.points)
	if n == 0 {
		return 0
	}
	if pos <= l.points[0].Pos {
		return l.points[0].Value
	}
	if pos >= l.points[n-1].Pos {
		return l.points[n-1].Value
	}
	// Index of the segment start: last breakpoint at or before pos.
	i := sort.Search(n, func(i int) bool { return l.points[i].Pos > pos }) - 1
	return interpolate(l.points[i], l.points[i+1], pos)
}

// Resolve evaluates the lane across one block. When the value is constant
// over the whole block it returns (value, true) and leaves ramp untouched;
// otherwise it fills ramp[0:frames] per sample and returns (ramp[0], false).
// ramp must hold at least frames values. Zero-alloc.
func (l *Lane) Resolve(start int64, frames int, ramp []float64) (float64, bool) {
	n := len(l.points)
	if n == 0 {
		return 0, true
	}
	last := start + int64(frames) - 1
	// Zero or one breakpoint, or a span entirely outside the breakpoints,
	// clamps to a block constant.
	if n == 1 || last <= l.points[0].Pos || start >= l.points[n-1].Pos {
		return l.Value(start), true
	}
	first := l.Value(start)
	constant := true
	for f := 0; f < frames; f++ {
		v := l.Value(start + int64(f))
		ramp[f] = v
		if v != first {
			constant = false
		}
	}
	return first, constant
}

func interpolate(a, b Breakpoint, pos int64) float64 {
	switch a.Interp {
	case Step:
		return a.Value
	case Exponential:
		if a.Value > 0 && b.Value > 0 {
			t := float64(pos-a.Pos) / float64(b.Pos-a.Pos)
			return a.Value * math.Pow(b.Value/a.Value, t)
		}
		fallthrough
	case Linear:
		fallthrough
	default:
		t := float64(pos-a.Pos) / float64(b.Pos-a.Pos)
		return a.Value + (b.Value-a.Value)*t
	}
}
