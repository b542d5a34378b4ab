// SPDX-License-Identifier: MIT
package nodes

import (
	"fmt"

	"github.com/viterin/vek"

	"opentune/internal/automation"
	"opentune/internal/graph"
)

// Mixer sums up to Inputs() audio sources into one output. Audio fan-in is
// only legal through a mixer; the graph rejects a second source on any other
// audio input.
type Mixer struct {
	base
	params []*automation.Parameter
	inputs int
}

// NewMixer creates a mixer with the given number of input ports, named
// "in0".."inN-1".
func NewMixer(id graph.NodeID, inputs int) *Mixer {
	if inputs < 1 {
		inputs = 1
	}
	ports := make([]graph.Port, 0, inputs+1)
	for i := 0; i < inputs; i++ {
		ports = append(ports, graph.Port{
			Name: fmt.Sprintf("in%d", i), Type: graph.AudioPort, Dir: graph.In,
		})
	}
	ports = append(ports, graph.Port{Name: "out", Type: graph.AudioPort, Dir: graph.Out})
	return &Mixer{
		base: base{id: id, name: "mixer", ports: ports},
		params: []*automation.Parameter{
			automation.NewParameter(0, "gain", "", 0, 4, 1),
		},
		inputs: inputs,
	}
}

func (m *Mixer) Parameters() []*automation.Parameter { return m.params }
func (m *Mixer) Reset()                              {}
func (m *Mixer) Inputs() int                         { return m.inputs }

func (m *Mixer) Process(pc *graph.ProcessContext) error {
	out := pc.AudioOut[0][:pc.Frames]
	graph.Zero(out)
	for _, in := range pc.AudioIn {
		vek.Add_Inplace(out, in[:pc.Frames])
	}
	if ramp := pc.Params[0].Ramp; ramp != nil {
		vek.Mul_Inplace(out, ramp[:pc.Frames])
	} else if g := pc.Params[0].Value; g != 1 {
		vek.MulNumber_Inplace(out, g)
	}
	return nil
}
