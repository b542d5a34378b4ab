// SPDX-License-Identifier: MIT
package plugin

import "opentune/internal/automation"

// Processor is the host-side contract every plugin format adapter
// implements. Configure runs on a non-real-time context before the
// processor joins the graph; Process runs on the real-time path and must
// not allocate, lock, or block. Parameter changes reach the processor only
// at block boundaries, through the parameters returned by Parameters.
type Processor interface {
	Describe() Descriptor
	Configure(sampleRate float64, blockSize int) error
	Process(in, out [][]float64, frames int) error
	Parameters() []*automation.Parameter
	Unload() error
}
