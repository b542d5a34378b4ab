// SPDX-License-Identifier: MIT
package automation

import (
	"math"
	"testing"
)

func TestLaneValueLinear(t *testing.T) {
	lane := NewLane(
		Breakpoint{Pos: 0, Value: 0.0, Interp: Linear},
		Breakpoint{Pos: 1000, Value: 1.0, Interp: Linear},
	)

	tests := []struct {
		pos  int64
		want float64
	}{
		{-100, 0.0}, // clamp before the first breakpoint
		{0, 0.0},
		{250, 0.25},
		{500, 0.5},
		{1000, 1.0},
		{5000, 1.0}, // clamp after the last breakpoint
	}
	for _, tt := range tests {
		if got := lane.Value(tt.pos); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Value(%d) = %g, want %g", tt.pos, got, tt.want)
		}
	}
}

func TestLaneValueStep(t *testing.T) {
	lane := NewLane(
		Breakpoint{Pos: 0, Value: 2.0, Interp: Step},
		Breakpoint{Pos: 100, Value: 5.0, Interp: Step},
	)
	if got := lane.Value(99); got != 2.0 {
		t.Errorf("Value(99) = %g, want 2 (step holds)", got)
	}
	if got := lane.Value(100); got != 5.0 {
		t.Errorf("Value(100) = %g, want 5", got)
	}
}

func TestLaneValueExponential(t *testing.T) {
	lane := NewLane(
		Breakpoint{Pos: 0, Value: 100.0, Interp: Exponential},
		Breakpoint{Pos: 100, Value: 10000.0, Interp: Exponential},
	)
	// Halfway in log space is the geometric mean.
	if got := lane.Value(50); math.Abs(got-1000.0) > 1e-9 {
		t.Errorf("Value(50) = %g, want 1000", got)
	}

	// A non-positive endpoint degrades to linear instead of producing NaN.
	lin := NewLane(
		Breakpoint{Pos: 0, Value: 0.0, Interp: Exponential},
		Breakpoint{Pos: 100, Value: 10.0, Interp: Exponential},
	)
	if got := lin.Value(50); math.Abs(got-5.0) > 1e-12 {
		t.Errorf("Value(50) with zero endpoint = %g, want 5 (linear fallback)", got)
	}
}

func TestLaneInsertRemove(t *testing.T) {
	lane := NewLane()
	lane.Insert(Breakpoint{Pos: 200, Value: 2})
	lane.Insert(Breakpoint{Pos: 100, Value: 1})
	lane.Insert(Breakpoint{Pos: 100, Value: 7}) // replaces, same position

	pts := lane.Breakpoints()
	if len(pts) != 2 {
		t.Fatalf("breakpoints = %d, want 2", len(pts))
	}
	if pts[0].Pos != 100 || pts[0].Value != 7 {
		t.Errorf("first breakpoint = %+v, want pos 100 value 7", pts[0])
	}

	if !lane.Remove(200) {
		t.Error("Remove(200) = false, want true")
	}
	if lane.Remove(200) {
		t.Error("second Remove(200) = true, want false")
	}
}

func TestResolveConstantBlocks(t *testing.T) {
	lane := NewLane(
		Breakpoint{Pos: 1000, Value: 0.0, Interp: Linear},
		Breakpoint{Pos: 2000, Value: 1.0, Interp: Linear},
	)
	ramp := make([]float64, 128)

	// Entirely before the first breakpoint: constant at the first value.
	if v, constant := lane.Resolve(0, 128, ramp); !constant || v != 0.0 {
		t.Errorf("Resolve before span = (%g, %t), want (0, true)", v, constant)
	}
	// Entirely after the last: constant at the last value.
	if v, constant := lane.Resolve(3000, 128, ramp); !constant || v != 1.0 {
		t.Errorf("Resolve after span = (%g, %t), want (1, true)", v, constant)
	}
	// Crossing a segment: per-sample ramp.
	v, constant := lane.Resolve(1500, 128, ramp)
	if constant {
		t.Fatal("Resolve inside a moving segment reported constant")
	}
	if math.Abs(v-0.5) > 1e-12 {
		t.Errorf("ramp start = %g, want 0.5", v)
	}
	for f := 1; f < 128; f++ {
		if ramp[f] <= ramp[f-1] {
			t.Fatalf("ramp not strictly increasing at frame %d", f)
		}
	}
}

func TestResolveZeroAlloc(t *testing.T) {
	lane := NewLane(
		Breakpoint{Pos: 0, Value: 0.0, Interp: Linear},
		Breakpoint{Pos: 1 << 20, Value: 1.0, Interp: Linear},
	)
	ramp := make([]float64, 512)
	lane.Resolve(1000, 512, ramp)

	allocs := testing.AllocsPerRun(100, func() {
		lane.Resolve(1000, 512, ramp)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Resolve, got %.1f", allocs)
	}
}

func TestParameterClamping(t *testing.T) {
	p := NewParameter(1, "cutoff", "Hz", 20, 20000, 1000)
	if got := p.Value(); got != 1000 {
		t.Errorf("default = %g, want 1000", got)
	}

	tests := []struct {
		set  float64
		want float64
	}{
		{5, 20},         // below min
		{20, 20},        // at min
		{440, 440},      // in range
		{20000, 20000},  // at max
		{100000, 20000}, // above max
	}
	for _, tt := range tests {
		p.Set(tt.set)
		if got := p.Value(); got != tt.want {
			t.Errorf("Set(%g) -> %g, want %g", tt.set, got, tt.want)
		}
	}

	stepped := NewParameter(2, "mode", "", 0, 4, 0)
	stepped.Stepped = true
	stepped.Set(2.6)
	if got := stepped.Value(); got != 3 {
		t.Errorf("stepped Set(2.6) -> %g, want 3", got)
	}
}

func TestParseInterpolationRoundTrip(t *testing.T) {
	for _, interp := range []Interpolation{Step, Linear, Exponential} {
		got, err := ParseInterpolation(interp.String())
		if err != nil || got != interp {
			t.Errorf("ParseInterpolation(%q) = (%v, %v)", interp.String(), got, err)
		}
	}
	if _, err := ParseInterpolation("cubic"); err == nil {
		t.Error("unknown interpolation parsed without error")
	}
}
