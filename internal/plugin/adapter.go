// SPDX-License-Identifier: MIT
package plugin

import (
	"fmt"
	"sync/atomic"
	"time"

	"opentune/internal/automation"
	"opentune/internal/graph"
)

// Time budget for one Process call as a fraction of the block's real-time
// duration. Overruns are latency faults: non-fatal, silenced for the block.
const budgetFraction = 0.8

// Adapter presents a Processor as a standard graph node and bounds the
// blast radius of its failures:
//
//   - A panic or error from Process is converted to a node fault: outputs
//     are zeroed and the scheduler skips the node until it is reset.
//   - A Process call that exceeds the soft time budget has its contribution
//     replaced with silence for that block and one latency fault counted;
//     the scheduler keeps running.
//
// Audio port names are "in0".."inN-1" and "out0".."outN-1" following the
// processor's descriptor.
type Adapter struct {
	id   graph.NodeID
	proc Processor
	desc Descriptor

	ports  []graph.Port
	budget time.Duration

	latencyFaults atomic.Uint64
}

// newAdapter wires the node shape from the processor's descriptor. The time
// budget follows from the engine block size and sample rate.
func newAdapter(id graph.NodeID, proc Processor, sampleRate float64, blockSize int) *Adapter {
	desc := proc.Describe()
	ports := make([]graph.Port, 0, desc.Inputs+desc.Outputs)
	for i := 0; i < desc.Inputs; i++ {
		ports = append(ports, graph.Port{
			Name: fmt.Sprintf("in%d", i), Type: graph.AudioPort, Dir: graph.In,
		})
	}
	for i := 0; i < desc.Outputs; i++ {
		ports = append(ports, graph.Port{
			Name: fmt.Sprintf("out%d", i), Type: graph.AudioPort, Dir: graph.Out,
		})
	}
	blockDur := time.Duration(float64(blockSize) / sampleRate * float64(time.Second))
	return &Adapter{
		id:     id,
		proc:   proc,
		desc:   desc,
		ports:  ports,
		budget: time.Duration(budgetFraction * float64(blockDur)),
	}
}

func (a *Adapter) ID() graph.NodeID    { return a.id }
func (a *Adapter) Name() string        { return a.desc.Name }
func (a *Adapter) Ports() []graph.Port { return a.ports }

// Describe returns the wrapped processor's descriptor for persistence.
func (a *Adapter) Describe() Descriptor { return a.desc }

func (a *Adapter) Parameters() []*automation.Parameter { return a.proc.Parameters() }

// LatencyFaults returns the number of budget overruns so far. Read by the
// status publisher; never reset on the real-time path.
func (a *Adapter) LatencyFaults() uint64 { return a.latencyFaults.Load() }

func (a *Adapter) Reset() {}

// Unload releases the wrapped processor. Must only be called after the node
// has left the graph.
func (a *Adapter) Unload() error { return a.proc.Unload() }

func (a *Adapter) Process(pc *graph.ProcessContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", a.desc.Name, r)
		}
	}()

	startedAt := time.Now()
	if err := a.proc.Process(pc.AudioIn, pc.AudioOut, pc.Frames); err != nil {
		return fmt.Errorf("plugin %s: %w", a.desc.Name, err)
	}
	if time.Since(startedAt) > a.budget {
		for _, out := range pc.AudioOut {
			graph.Zero(out[:pc.Frames])
		}
		a.latencyFaults.Add(1)
	}
	return nil
}
