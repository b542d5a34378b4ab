// SPDX-License-Identifier: MIT
package nodes

import (
	"github.com/viterin/vek"

	"opentune/internal/automation"
	"opentune/internal/graph"
)

// Gain scales its input by the gain parameter. Automation ramps apply per
// sample, so automated fades are click-free.
type Gain struct {
	base
	params []*automation.Parameter
}

func NewGain(id graph.NodeID, gain float64) *Gain {
	return &Gain{
		base: base{
			id:   id,
			name: "gain",
			ports: []graph.Port{
				{Name: "in", Type: graph.AudioPort, Dir: graph.In},
				{Name: "out", Type: graph.AudioPort, Dir: graph.Out},
			},
		},
		params: []*automation.Parameter{
			automation.NewParameter(0, "gain", "", 0, 4, gain),
		},
	}
}

func (g *Gain) Parameters() []*automation.Parameter { return g.params }
func (g *Gain) Reset()                              {}

func (g *Gain) Process(pc *graph.ProcessContext) error {
	in := pc.AudioIn[0]
	out := pc.AudioOut[0]
	if ramp := pc.Params[0].Ramp; ramp != nil {
		vek.Mul_Into(out[:pc.Frames], in[:pc.Frames], ramp[:pc.Frames])
		return nil
	}
	vek.MulNumber_Into(out[:pc.Frames], in[:pc.Frames], pc.Params[0].Value)
	return nil
}
