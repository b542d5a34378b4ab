// SPDX-License-Identifier: MIT
package nodes

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"opentune/internal/automation"
	"opentune/internal/graph"
)

// Filter is a second-order Butterworth low-pass. The cutoff parameter is
// applied at block boundaries only: redesigning the section coefficients
// allocates, so it runs once per block and only when the cutoff moved.
type Filter struct {
	base
	params []*automation.Parameter

	section    *biquad.Section
	sampleRate float64
	lastCutoff float64
}

func NewFilter(id graph.NodeID, cutoff, sampleRate float64) *Filter {
	f := &Filter{
		base: base{
			id:   id,
			name: "filter",
			ports: []graph.Port{
				{Name: "in", Type: graph.AudioPort, Dir: graph.In},
				{Name: "out", Type: graph.AudioPort, Dir: graph.Out},
			},
		},
		params: []*automation.Parameter{
			automation.NewParameter(0, "cutoff", "Hz", 20, 20000, cutoff),
		},
		sampleRate: sampleRate,
	}
	f.retune(cutoff)
	return f
}

func (f *Filter) Parameters() []*automation.Parameter { return f.params }

func (f *Filter) Reset() {
	f.retune(f.params[0].Value())
}

func (f *Filter) retune(cutoff float64) {
	sections := design.ButterworthLP(cutoff, 2, f.sampleRate)
	f.section = biquad.NewSection(sections[0])
	f.lastCutoff = cutoff
}

func (f *Filter) Process(pc *graph.ProcessContext) error {
	if cutoff := pc.Params[0].Value; cutoff != f.lastCutoff {
		f.retune(cutoff)
	}
	in := pc.AudioIn[0][:pc.Frames]
	out := pc.AudioOut[0][:pc.Frames]
	copy(out, in)
	f.section.ProcessBlock(out)
	return nil
}
