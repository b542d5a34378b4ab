// SPDX-License-Identifier: MIT
package plugin

import (
	"math"

	"opentune/internal/automation"
)

func registerBuiltins(m *Manager) {
	m.Register("drive", func() Processor { return newDrive() })
	m.Register("widener", func() Processor { return newWidener() })
}

// drive is a tanh waveshaper, the reference internal processor.
type drive struct {
	params []*automation.Parameter
}

func newDrive() *drive {
	return &drive{
		params: []*automation.Parameter{
			automation.NewParameter(0, "amount", "", 1, 20, 2),
		},
	}
}

func (d *drive) Describe() Descriptor {
	return Descriptor{Name: "drive", Format: FormatInternal, Inputs: 1, Outputs: 1}
}

func (d *drive) Configure(sampleRate float64, blockSize int) error { return nil }

func (d *drive) Parameters() []*automation.Parameter { return d.params }

func (d *drive) Process(in, out [][]float64, frames int) error {
	amount := d.params[0].Value()
	norm := math.Tanh(amount)
	for f := 0; f < frames; f++ {
		out[0][f] = math.Tanh(in[0][f]*amount) / norm
	}
	return nil
}

func (d *drive) Unload() error { return nil }

// widener is a two-in/two-out mid-side width processor, exercising
// multi-port adapters.
type widener struct {
	params []*automation.Parameter
}

func newWidener() *widener {
	return &widener{
		params: []*automation.Parameter{
			automation.NewParameter(0, "width", "", 0, 2, 1),
		},
	}
}

func (w *widener) Describe() Descriptor {
	return Descriptor{Name: "widener", Format: FormatInternal, Inputs: 2, Outputs: 2}
}

func (w *widener) Configure(sampleRate float64, blockSize int) error { return nil }

func (w *widener) Parameters() []*automation.Parameter { return w.params }

func (w *widener) Process(in, out [][]float64, frames int) error {
	width := w.params[0].Value()
	for f := 0; f < frames; f++ {
		mid := (in[0][f] + in[1][f]) * 0.5
		side := (in[0][f] - in[1][f]) * 0.5 * width
		out[0][f] = mid + side
		out[1][f] = mid - side
	}
	return nil
}

func (w *widener) Unload() error { return nil }
