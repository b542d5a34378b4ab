// SPDX-License-Identifier: MIT
package nodes

import (
	"math"

	"opentune/internal/automation"
	"opentune/internal/graph"
)

// Oscillator parameter indices, matching Parameters() order.
const (
	OscParamFrequency = iota
	OscParamGain
)

// Oscillator is a monophonic sine generator. It free-runs at the frequency
// parameter and retunes on incoming note-on events; note-off for the active
// key silences it.
type Oscillator struct {
	base
	params []*automation.Parameter

	phase     float64
	activeKey int // -1 when free-running
	gateOpen  bool
	freeRun   bool // no note received yet, sound at the frequency parameter
}

func NewOscillator(id graph.NodeID, frequency float64) *Oscillator {
	o := &Oscillator{
		base: base{
			id:   id,
			name: "oscillator",
			ports: []graph.Port{
				{Name: "notes", Type: graph.EventPort, Dir: graph.In},
				{Name: "out", Type: graph.AudioPort, Dir: graph.Out},
			},
		},
		params: []*automation.Parameter{
			automation.NewParameter(0, "frequency", "Hz", 1, 20000, frequency),
			automation.NewParameter(1, "gain", "", 0, 1, 0.5),
		},
		activeKey: -1,
		freeRun:   true,
		gateOpen:  true,
	}
	return o
}

func (o *Oscillator) Parameters() []*automation.Parameter { return o.params }

func (o *Oscillator) Reset() {
	o.phase = 0
	o.activeKey = -1
	o.freeRun = true
	o.gateOpen = true
}

func (o *Oscillator) Process(pc *graph.ProcessContext) error {
	out := pc.AudioOut[0]
	events := pc.EventsIn[0]
	ev := 0

	freq := pc.Params[OscParamFrequency].Value
	step := 2 * math.Pi * freq / pc.Rate

	for f := 0; f < pc.Frames; f++ {
		for ev < len(events) && events[ev].Frame <= f {
			var ch, key, vel uint8
			msg := events[ev].Msg
			switch {
			case msg.GetNoteOn(&ch, &key, &vel) && vel > 0:
				o.activeKey = int(key)
				o.freeRun = false
				o.gateOpen = true
				freq = keyFrequency(key)
				step = 2 * math.Pi * freq / pc.Rate
			case msg.GetNoteOff(&ch, &key, &vel), msg.GetNoteOn(&ch, &key, &vel):
				// Note-off, or running-status note-on with velocity 0.
				if int(key) == o.activeKey {
					o.gateOpen = false
				}
			}
			ev++
		}
		if o.freeRun {
			// Frequency automation can ramp within the block.
			step = 2 * math.Pi * pc.Param(OscParamFrequency, f) / pc.Rate
		}
		if o.gateOpen {
			out[f] = math.Sin(o.phase) * pc.Param(OscParamGain, f)
		} else {
			out[f] = 0
		}
		o.phase += step
		if o.phase > 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
	return nil
}

// keyFrequency maps a MIDI key to equal-temperament Hz (A4 = key 69 = 440).
func keyFrequency(key uint8) float64 {
	return 440 * math.Pow(2, (float64(key)-69)/12)
}
