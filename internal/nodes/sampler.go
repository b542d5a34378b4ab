// SPDX-License-Identifier: MIT
package nodes

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/go-audio/wav"

	"opentune/internal/automation"
	"opentune/internal/graph"
)

// Sampler plays one pre-buffered WAV clip anchored at a timeline position.
// The file is decoded in full by Load on a non-real-time context; the
// real-time path only checks an atomic ready flag, so a clip that has not
// finished loading plays silence instead of blocking the render loop.
type Sampler struct {
	base
	params []*automation.Parameter

	path   string
	anchor int64 // timeline frame of the clip's first sample

	ready atomic.Bool
	data  []float64 // mono, normalized to [-1, 1]
}

func NewSampler(id graph.NodeID, path string, anchor int64) *Sampler {
	return &Sampler{
		base: base{
			id:   id,
			name: "sampler",
			ports: []graph.Port{
				{Name: "out", Type: graph.AudioPort, Dir: graph.Out},
			},
		},
		params: []*automation.Parameter{
			automation.NewParameter(0, "gain", "", 0, 2, 1),
		},
		path:   path,
		anchor: anchor,
	}
}

func (s *Sampler) Parameters() []*automation.Parameter { return s.params }
func (s *Sampler) Reset()                              {}
func (s *Sampler) Path() string                        { return s.path }
func (s *Sampler) Anchor() int64                       { return s.anchor }

// Load decodes the clip into memory. Must be called off the real-time path,
// before or while the engine runs; the sampler stays silent until it
// completes.
func (s *Sampler) Load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("sampler: open %s: %w", s.path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("sampler: decode %s: %w", s.path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return fmt.Errorf("sampler: %s has no channels", s.path)
	}

	chans := buf.Format.NumChannels
	frames := len(buf.Data) / chans
	scale := 1.0 / float64(int64(1)<<(dec.BitDepth-1))
	data := make([]float64, frames)
	for i := 0; i < frames; i++ {
		// Fold multi-channel files down to mono.
		var sum float64
		for c := 0; c < chans; c++ {
			sum += float64(buf.Data[i*chans+c])
		}
		data[i] = sum / float64(chans) * scale
	}

	s.data = data
	s.ready.Store(true)
	return nil
}

func (s *Sampler) Process(pc *graph.ProcessContext) error {
	out := pc.AudioOut[0]
	if !s.ready.Load() || !pc.Playing {
		graph.Zero(out[:pc.Frames])
		return nil
	}
	pos := int64(pc.Start) - s.anchor
	for f := 0; f < pc.Frames; f++ {
		i := pos + int64(f)
		if i < 0 || i >= int64(len(s.data)) {
			out[f] = 0
			continue
		}
		out[f] = s.data[i] * pc.Param(0, f)
	}
	return nil
}
