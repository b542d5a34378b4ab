// SPDX-License-Identifier: MIT
package engine

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "opentune/internal/log"
	"opentune/pkg/bitint"
)

const recorderBitDepth = 24

// sampleRing is a single-producer/single-consumer ring of interleaved
// samples, same layout as commandRing. The callback pushes, the encoder
// goroutine pops; neither side ever blocks.
type sampleRing struct {
	buf  []float64
	mask uint64

	_     [64]byte
	read  atomic.Uint64
	_     [64]byte
	write atomic.Uint64
}

func newSampleRing(capacity int) *sampleRing {
	capacity = bitint.NextPowerOfTwo(capacity)
	return &sampleRing{
		buf:  make([]float64, capacity),
		mask: bitint.Mask(capacity),
	}
}

// push appends as many samples as fit and returns how many were dropped.
func (r *sampleRing) push(samples []float64) int {
	w := r.write.Load()
	free := int(r.mask + 1 - (w - r.read.Load()))
	n := len(samples)
	if n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		r.buf[(w+uint64(i))&r.mask] = samples[i]
	}
	r.write.Store(w + uint64(n))
	return len(samples) - n
}

// pop fills dst with up to len(dst) samples and returns the count.
func (r *sampleRing) pop(dst []float64) int {
	rd := r.read.Load()
	avail := int(r.write.Load() - rd)
	n := len(dst)
	if n > avail {
		n = avail
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(rd+uint64(i))&r.mask]
	}
	r.read.Store(rd + uint64(n))
	return n
}

// Recorder captures the master bus to a WAV file. The real-time side only
// interleaves into the ring; file encoding runs on the recorder's own
// goroutine, so a slow disk shows up as dropped samples, never as a glitch.
type Recorder struct {
	file *os.File
	enc  *wav.Encoder

	ring     *sampleRing
	channels int
	closed   atomic.Bool

	// Pre-allocated callback-side interleave scratch, blockSize * channels.
	interleave []float64

	drain     []float64
	pending   int // leftover samples of a partial frame from the last batch
	sampleBuf *audio.IntBuffer

	overruns atomic.Uint64
	done     chan struct{}
	stopped  chan struct{}
}

func NewRecorder(path string, sampleRate, channels int) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		file:       file,
		enc:        wav.NewEncoder(file, sampleRate, recorderBitDepth, channels, 1),
		ring:       newSampleRing(sampleRate * channels), // ~1s of headroom
		channels:   channels,
		interleave: make([]float64, 4096*channels),
		drain:      make([]float64, 8192),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data: make([]int, len(r.drain)),
	}

	go r.run()
	return r, nil
}

// Write interleaves one block of planar channel buffers into the ring.
// Called from the audio callback; no allocations, never blocks.
func (r *Recorder) Write(planar [][]float64, frames int) {
	if r.closed.Load() {
		return
	}
	total := frames * r.channels
	if total > len(r.interleave) {
		total = len(r.interleave)
		frames = total / r.channels
	}
	for f := 0; f < frames; f++ {
		for ch := 0; ch < r.channels; ch++ {
			r.interleave[f*r.channels+ch] = planar[ch%len(planar)][f]
		}
	}
	if dropped := r.ring.push(r.interleave[:total]); dropped > 0 {
		r.overruns.Add(uint64(dropped))
	}
}

// Overruns reports how many samples were dropped because the encoder could
// not keep up.
func (r *Recorder) Overruns() uint64 { return r.overruns.Load() }

func (r *Recorder) run() {
	defer close(r.stopped)
	for {
		select {
		case <-r.done:
			// Final drain before the encoder closes.
			for r.encodeOnce() > 0 {
			}
			return
		default:
			if r.encodeOnce() == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}
}

// encodeOnce moves one batch from the ring into the encoder.
func (r *Recorder) encodeOnce() int {
	got := r.ring.pop(r.drain[r.pending:])
	if got == 0 {
		return 0
	}
	// Encode whole frames; a trailing partial frame carries over.
	avail := r.pending + got
	n := avail - avail%r.channels
	if n == 0 {
		r.pending = avail
		return got
	}

	const scale = 1 << (recorderBitDepth - 1)
	for i := 0; i < n; i++ {
		v := r.drain[i]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		r.sampleBuf.Data[i] = int(v * (scale - 1))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:n]
	if err := r.enc.Write(r.sampleBuf); err != nil {
		applog.Errorf("Recording write failed: %v", err)
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:cap(r.sampleBuf.Data)]

	copy(r.drain, r.drain[n:avail])
	r.pending = avail - n
	return got
}

// Close stops accepting samples, flushes the ring and finalizes the file.
func (r *Recorder) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	close(r.done)
	<-r.stopped

	if over := r.overruns.Load(); over > 0 {
		applog.Warnf("Recording dropped %d samples", over)
	}
	if err := r.enc.Close(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to finalize recording: %w", err)
	}
	return r.file.Close()
}
