// SPDX-License-Identifier: MIT
package nodes

import (
	"math"
	"math/cmplx"
	"sync/atomic"

	"gonum.org/v1/gonum/dsp/fourier"

	"opentune/internal/graph"
	"opentune/pkg/bitint"
)

// Analyzer is a pass-through spectrum meter: audio flows unchanged from in
// to out while a Hann-windowed FFT of each block is written into a double
// buffer for non-real-time readers (the status publisher). Block size must
// be a power of two; the FFT size equals the block size.
type Analyzer struct {
	base

	fft    *fourier.FFT
	window []float64
	input  []float64
	coefs  []complex128

	// Two magnitude buffers; front selects the one readers may touch
	// while Process writes the other.
	mags  [2][]float64
	front atomic.Uint32
}

func NewAnalyzer(id graph.NodeID, fftSize int) *Analyzer {
	if !bitint.IsPowerOfTwo(fftSize) {
		panic("analyzer: FFT size must be a power of 2")
	}
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}
	bins := fftSize/2 + 1
	return &Analyzer{
		base: base{
			id:   id,
			name: "analyzer",
			ports: []graph.Port{
				{Name: "in", Type: graph.AudioPort, Dir: graph.In},
				{Name: "out", Type: graph.AudioPort, Dir: graph.Out},
			},
		},
		fft:    fourier.NewFFT(fftSize),
		window: window,
		input:  make([]float64, fftSize),
		coefs:  make([]complex128, bins),
		mags:   [2][]float64{make([]float64, bins), make([]float64, bins)},
	}
}

func (a *Analyzer) Reset() {}

func (a *Analyzer) Process(pc *graph.ProcessContext) error {
	in := pc.AudioIn[0]
	out := pc.AudioOut[0]
	copy(out[:pc.Frames], in[:pc.Frames])

	n := len(a.input)
	for i := 0; i < n; i++ {
		if i < pc.Frames {
			a.input[i] = in[i] * a.window[i]
		} else {
			a.input[i] = 0
		}
	}
	back := 1 - a.front.Load()
	mags := a.mags[back]
	a.fft.Coefficients(a.coefs, a.input)
	for i, c := range a.coefs {
		mags[i] = cmplx.Abs(c)
	}
	a.front.Store(back)
	return nil
}

// Magnitudes copies the most recent spectrum into dst and returns the
// number of bins written. Safe to call from non-real-time contexts.
func (a *Analyzer) Magnitudes(dst []float64) int {
	return copy(dst, a.mags[a.front.Load()])
}

// Bins returns the number of magnitude bins (FFT size / 2 + 1).
func (a *Analyzer) Bins() int { return len(a.coefs) }

// FFTSize is the transform length the analyzer was built with.
func (a *Analyzer) FFTSize() int { return len(a.window) }

// BinFrequency returns the center frequency in Hz of bin i.
func (a *Analyzer) BinFrequency(i int, sampleRate float64) float64 {
	if i < 0 || i >= len(a.coefs) {
		return 0
	}
	return a.fft.Freq(i) * sampleRate
}
