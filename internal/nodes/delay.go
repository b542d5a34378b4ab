// SPDX-License-Identifier: MIT
package nodes

import (
	"github.com/cwbudde/algo-dsp/dsp/delay"

	"opentune/internal/automation"
	"opentune/internal/graph"
)

// FeedbackDelay is a delay line with internal, bounded feedback. Feedback
// loops live inside this node rather than in the connection relation, which
// keeps the graph acyclic by construction while still giving editors an
// audible feedback path. Feedback gain is capped below unity so the loop
// always decays.
type FeedbackDelay struct {
	base
	params []*automation.Parameter

	line      *delay.Line
	delay     int // frames, fixed at construction (bounded)
	maxFrames int
}

const maxFeedback = 0.95

// NewFeedbackDelay creates a delay of delayFrames with the given feedback
// gain. delayFrames is clamped to at least one frame.
func NewFeedbackDelay(id graph.NodeID, delayFrames int, feedback float64) (*FeedbackDelay, error) {
	if delayFrames < 1 {
		delayFrames = 1
	}
	line, err := delay.New(delayFrames + 1)
	if err != nil {
		return nil, err
	}
	return &FeedbackDelay{
		base: base{
			id:   id,
			name: "feedbackdelay",
			ports: []graph.Port{
				{Name: "in", Type: graph.AudioPort, Dir: graph.In},
				{Name: "out", Type: graph.AudioPort, Dir: graph.Out},
			},
		},
		params: []*automation.Parameter{
			automation.NewParameter(0, "feedback", "", 0, maxFeedback, feedback),
			automation.NewParameter(1, "mix", "", 0, 1, 0.5),
		},
		line:      line,
		delay:     delayFrames,
		maxFrames: delayFrames,
	}, nil
}

func (d *FeedbackDelay) Parameters() []*automation.Parameter { return d.params }

// DelayFrames returns the fixed delay length for persistence.
func (d *FeedbackDelay) DelayFrames() int { return d.delay }

func (d *FeedbackDelay) Reset() {
	d.line.Reset()
}

func (d *FeedbackDelay) Process(pc *graph.ProcessContext) error {
	in := pc.AudioIn[0]
	out := pc.AudioOut[0]
	for f := 0; f < pc.Frames; f++ {
		fb := pc.Param(0, f)
		mix := pc.Param(1, f)
		delayed := d.line.Read(d.delay)
		d.line.Write(in[f] + delayed*fb)
		out[f] = in[f]*(1-mix) + delayed*mix
	}
	return nil
}
