// SPDX-License-Identifier: MIT
package engine

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func decodeWAV(t *testing.T, path string) ([]int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Data, int(dec.NumChans)
}

func TestRecorderEncodesPushedSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	rec, err := NewRecorder(path, 44100, 2)
	if err != nil {
		t.Fatal(err)
	}

	// 10 blocks of a known ramp on the left, silence on the right.
	const frames = 128
	planar := [][]float64{make([]float64, frames), make([]float64, frames)}
	for f := 0; f < frames; f++ {
		planar[0][f] = float64(f) / frames
	}
	const blocks = 10
	for i := 0; i < blocks; i++ {
		rec.Write(planar, frames)
	}
	// Give the encoder goroutine time to drain before closing.
	time.Sleep(50 * time.Millisecond)
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if got := rec.Overruns(); got != 0 {
		t.Errorf("overruns = %d, want 0", got)
	}

	data, chans := decodeWAV(t, path)
	if chans != 2 {
		t.Fatalf("channels = %d, want 2", chans)
	}
	if got := len(data) / chans; got != blocks*frames {
		t.Fatalf("decoded %d frames, want %d", got, blocks*frames)
	}
	// Spot-check a mid-ramp sample against the 24-bit scale.
	const scale = (1 << 23) - 1
	want := int(planar[0][64] * scale)
	if got := data[64*2]; got != want {
		t.Errorf("left sample 64 = %d, want %d", got, want)
	}
	if got := data[64*2+1]; got != 0 {
		t.Errorf("right sample 64 = %d, want 0", got)
	}
}

func TestRecorderWriteAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.wav")
	rec, err := NewRecorder(path, 44100, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	planar := [][]float64{make([]float64, 64)}
	rec.Write(planar, 64) // must not panic
	if err := rec.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestRecorderClampsOutOfRangeSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hot.wav")
	rec, err := NewRecorder(path, 44100, 1)
	if err != nil {
		t.Fatal(err)
	}
	planar := [][]float64{{2.5, -3.0, 0.0, 1.0}}
	rec.Write(planar, 4)
	time.Sleep(50 * time.Millisecond)
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	data, _ := decodeWAV(t, path)
	const scale = (1 << 23) - 1
	if data[0] != scale || data[1] != -scale {
		t.Errorf("clipped samples = %d, %d, want ±%d", data[0], data[1], scale)
	}
}

func TestRenderToWAV(t *testing.T) {
	e := newTestEngine(t)
	sequencedSession(t, e)

	path := filepath.Join(t.TempDir(), "bounce.wav")
	const seconds = 0.25
	if err := e.RenderToWAV(path, seconds); err != nil {
		t.Fatal(err)
	}

	data, chans := decodeWAV(t, path)
	wantFrames := int(seconds * e.SampleRate())
	if got := len(data) / chans; got != wantFrames {
		t.Fatalf("rendered %d frames, want %d", got, wantFrames)
	}
	var peak int
	for _, v := range data {
		if a := int(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		t.Fatal("bounce is all silence")
	}

	// The transport is rewound and stopped afterwards.
	snap := e.TransportSnapshot()
	if snap.Pos != 0 || snap.State.String() != "stopped" {
		t.Errorf("transport after bounce: pos=%d state=%s", snap.Pos, snap.State)
	}
}

func TestRenderToWAVRejectsBadArguments(t *testing.T) {
	e := newTestEngine(t)
	if err := e.RenderToWAV(filepath.Join(t.TempDir(), "x.wav"), 0); err == nil {
		t.Error("zero duration accepted")
	}
	if err := e.RenderToWAV(filepath.Join(t.TempDir(), "y.wav"), -1); err == nil {
		t.Error("negative duration accepted")
	}
}
