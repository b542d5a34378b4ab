// SPDX-License-Identifier: MIT
package timeline

import (
	"math"
	"testing"
)

func TestAdvanceLoopSplit(t *testing.T) {
	tr := NewTransport(nil)
	tr.SetLoop(Loop{Enabled: true, Start: 100, End: 200})
	tr.Seek(150)
	tr.Play()

	spans := tr.Advance(100, nil)
	want := []Span{
		{Start: 150, Frames: 50},
		{Start: 100, Frames: 50},
	}
	if len(spans) != len(want) {
		t.Fatalf("spans = %v, want %v", spans, want)
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Errorf("span[%d] = %v, want %v", i, spans[i], want[i])
		}
	}
	if tr.Pos() != 150 {
		t.Errorf("position after wrap = %d, want 150", tr.Pos())
	}
}

func TestAdvanceWrapsOnExactLoopEnd(t *testing.T) {
	// A block ending exactly at the loop end must wrap the playhead to
	// loop start, not park it on End where the next block would escape
	// the region. Exact hits are routine with power-of-two loop lengths
	// and block sizes.
	tr := NewTransport(nil)
	tr.SetLoop(Loop{Enabled: true, Start: 100, End: 200})
	tr.Seek(150)
	tr.Play()

	spans := tr.Advance(50, nil)
	if len(spans) != 1 || spans[0] != (Span{Start: 150, Frames: 50}) {
		t.Fatalf("spans = %v, want one span of 50 at 150", spans)
	}
	if tr.Pos() != 100 {
		t.Fatalf("position after exact-boundary block = %d, want 100", tr.Pos())
	}

	// The next block stays inside the loop.
	spans = tr.Advance(50, nil)
	if len(spans) != 1 || spans[0] != (Span{Start: 100, Frames: 50}) {
		t.Fatalf("next spans = %v, want one span of 50 at 100", spans)
	}
	if tr.Pos() != 150 {
		t.Errorf("position = %d, want 150", tr.Pos())
	}
}

func TestAdvanceWithoutLoop(t *testing.T) {
	tr := NewTransport(nil)
	tr.Play()
	spans := tr.Advance(512, nil)
	if len(spans) != 1 || spans[0] != (Span{Start: 0, Frames: 512}) {
		t.Fatalf("spans = %v, want one span of 512 at 0", spans)
	}
	if tr.Pos() != 512 {
		t.Errorf("position = %d, want 512", tr.Pos())
	}
}

func TestAdvanceStoppedDoesNotMove(t *testing.T) {
	tr := NewTransport(nil)
	tr.Seek(1000)
	spans := tr.Advance(256, nil)
	if len(spans) != 1 || spans[0].Start != 1000 {
		t.Fatalf("spans = %v, want a single span at 1000", spans)
	}
	if tr.Pos() != 1000 {
		t.Errorf("stopped transport moved to %d", tr.Pos())
	}
}

func TestDegenerateLoopIsDisabled(t *testing.T) {
	// End <= Start is accepted but never wraps.
	tr := NewTransport(nil)
	tr.SetLoop(Loop{Enabled: true, Start: 500, End: 500})
	tr.Seek(400)
	tr.Play()
	spans := tr.Advance(300, nil)
	if len(spans) != 1 {
		t.Fatalf("degenerate loop produced a split: %v", spans)
	}
	if tr.Pos() != 700 {
		t.Errorf("position = %d, want 700", tr.Pos())
	}
}

func TestAdvanceReusesSpanStorage(t *testing.T) {
	tr := NewTransport(nil)
	tr.SetLoop(Loop{Enabled: true, Start: 0, End: 1000})
	tr.Play()
	dst := make([]Span, 0, 2)

	allocs := testing.AllocsPerRun(100, func() {
		dst = tr.Advance(512, dst[:0])
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Advance, got %.1f", allocs)
	}
}

func TestTransportStateTransitions(t *testing.T) {
	tr := NewTransport(nil)
	if tr.State() != Stopped {
		t.Fatal("new transport not stopped")
	}
	tr.Play()
	if tr.State() != Playing {
		t.Error("Play from stopped did not start playback")
	}
	tr.ToggleRecording()
	if tr.State() != Recording {
		t.Error("toggle while playing did not start recording")
	}
	tr.ToggleRecording()
	if tr.State() != Playing {
		t.Error("toggle while recording did not return to playing")
	}
	tr.Stop()
	if tr.State() != Stopped {
		t.Error("Stop did not stop")
	}
	tr.ToggleRecording()
	if tr.State() != Recording {
		t.Error("toggle from stopped did not start recording")
	}
}

func TestTempoMapAt(t *testing.T) {
	tm := NewTempoMap()
	if got := tm.At(0); got != DefaultBPM {
		t.Fatalf("empty map tempo = %g, want %g", got, DefaultBPM)
	}

	tm.Set(0, 120)
	tm.Set(44100, 140)
	tm.Set(88200, 90)

	tests := []struct {
		pos  SamplePosition
		want float64
	}{
		{0, 120},
		{44099, 120},
		{44100, 140}, // takes effect exactly at its declared position
		{50000, 140},
		{88200, 90},
		{1 << 30, 90},
	}
	for _, tt := range tests {
		if got := tm.At(tt.pos); got != tt.want {
			t.Errorf("At(%d) = %g, want %g", tt.pos, got, tt.want)
		}
	}
}

func TestTempoMapBeats(t *testing.T) {
	// 120 BPM at 44100 Hz: one beat is 22050 frames.
	tm := NewTempoMap()
	tm.Set(0, 120)
	if got := tm.BeatAt(44100, 44100); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("BeatAt one second at 120 BPM = %g, want 2", got)
	}

	// Tempo doubles after the first second; beats accumulate piecewise.
	tm.Set(44100, 240)
	if got := tm.BeatAt(88200, 44100); math.Abs(got-6.0) > 1e-9 {
		t.Errorf("BeatAt two seconds with tempo change = %g, want 6", got)
	}
}
