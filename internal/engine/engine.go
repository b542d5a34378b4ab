// SPDX-License-Identifier: MIT
/*
Package engine wires the graph, scheduler and timeline to a PortAudio output
stream and exposes the editing API.

Thread safety follows a single rule: the real-time callback owns the graph,
the scheduler bindings and the transport. Editing contexts never touch them
directly; they validate an edit synchronously under the engine lock, then
queue a command that the callback applies at the next block boundary. The
callback acquires the lock with TryLock only, so an editor holding it can
delay command application by a block but never the audio.
*/
package engine

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"opentune/internal/automation"
	"opentune/internal/config"
	"opentune/internal/device"
	"opentune/internal/graph"
	applog "opentune/internal/log"
	"opentune/internal/timeline"
)

var ErrCommandQueueFull = fmt.Errorf("command queue full")

type Engine struct {
	mu  sync.Mutex
	cfg *config.Config

	g        *graph.Graph
	sched    *Scheduler
	tl       *timeline.Transport
	commands *commandRing
	masterID atomic.Uint32

	outputDevice *portaudio.DeviceInfo
	stream       *portaudio.Stream
	running      atomic.Bool

	rec atomic.Pointer[Recorder]

	// Pre-allocated per-callback scratch: master mix in float64 and span
	// storage for loop splits.
	mix   [][]float64
	spans []timeline.Span

	// Double-buffered transport snapshot so status readers never race the
	// callback.
	snaps  [2]timeline.Snapshot
	snapIx atomic.Uint32
}

func New(cfg *config.Config) *Engine {
	g := graph.New()
	e := &Engine{
		cfg:      cfg,
		g:        g,
		sched:    NewScheduler(g, cfg.Audio.SampleRate, cfg.Audio.BlockSize),
		tl:       timeline.NewTransport(timeline.NewTempoMap()),
		commands: newCommandRing(config.DefaultCommandQueueSize),
		spans:    make([]timeline.Span, 0, 2),
	}
	e.mix = make([][]float64, cfg.Audio.Channels)
	for ch := range e.mix {
		e.mix[ch] = make([]float64, cfg.Audio.BlockSize)
	}
	e.snaps[0] = e.tl.Snapshot()
	return e
}

// Graph exposes the graph for read-only inspection by non-real-time code
// that holds no commands in flight, such as project save. Callers must not
// mutate it.
func (e *Engine) Graph() *graph.Graph { return e.g }

// Scheduler exposes fault state and lanes to status and persistence code.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// TempoMap returns the transport's tempo map for persistence reads.
func (e *Engine) TempoMap() *timeline.TempoMap { return e.tl.Tempo() }

// SampleRate the engine runs at. Fixed for the engine's lifetime.
func (e *Engine) SampleRate() float64 { return e.cfg.Audio.SampleRate }

// BlockSize in frames. Fixed for the engine's lifetime.
func (e *Engine) BlockSize() int { return e.cfg.Audio.BlockSize }

// --- Stream lifecycle ---

// DeviceError wraps a failure from the audio device layer, the one fault
// class that halts playback. Node and plugin faults are contained instead.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("device %s failed: %v", e.Op, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// Start opens the configured output device and begins the callback stream.
func (e *Engine) Start() error {
	dev, err := device.OutputDevice(e.cfg.Audio.DeviceID)
	if err != nil {
		return err
	}
	e.outputDevice = dev

	latency := dev.DefaultHighOutputLatency
	if e.cfg.Audio.LowLatency {
		latency = dev.DefaultLowOutputLatency
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: e.cfg.Audio.Channels,
			Latency:  latency,
		},
		FramesPerBuffer: e.cfg.Audio.BlockSize,
		SampleRate:      e.cfg.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.process)
	if err != nil {
		return &DeviceError{Op: "open", Err: err}
	}
	e.stream = stream

	if err := e.stream.Start(); err != nil {
		e.stream.Close()
		e.stream = nil
		return &DeviceError{Op: "start", Err: err}
	}

	e.running.Store(true)
	applog.Infof("Output stream started: %s (%.0f Hz, %d frames, %d ch)",
		dev.Name, e.cfg.Audio.SampleRate, e.cfg.Audio.BlockSize, e.cfg.Audio.Channels)
	return nil
}

// Stop halts and closes the output stream. A stream error here is a device
// fault: it is reported, and the transport is stopped so state stays
// consistent for a later restart.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}
	e.running.Store(false)

	var firstErr error
	if err := e.stream.Stop(); err != nil {
		firstErr = &DeviceError{Op: "stop", Err: err}
	}
	if err := e.stream.Close(); err != nil && firstErr == nil {
		firstErr = &DeviceError{Op: "close", Err: err}
	}
	e.stream = nil

	e.mu.Lock()
	e.drainLocked()
	e.tl.Stop()
	e.publishSnapshot()
	e.mu.Unlock()

	return firstErr
}

// Close releases everything: stream, then any active master recording.
func (e *Engine) Close() error {
	err := e.Stop()
	if rec := e.rec.Swap(nil); rec != nil {
		if cerr := rec.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// process is the PortAudio output callback.
// Performance Critical (Hot Path):
// - Pre-allocated buffers only, no allocations outside fault paths
// - Graph edits are applied here, at the block boundary, via the ring
func (e *Engine) process(out [][]float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.mu.TryLock() {
		e.drainLocked()
		e.mu.Unlock()
	}

	if len(out) == 0 {
		return
	}
	frames := len(out[0])
	block := e.cfg.Audio.BlockSize

	// The device normally delivers exactly one block; chunk in case it
	// hands us more.
	for done := 0; done < frames; {
		n := frames - done
		if n > block {
			n = block
		}
		e.renderInto(n)
		for ch := range out {
			src := e.mix[ch%len(e.mix)]
			for i := 0; i < n; i++ {
				out[ch][done+i] = float32(src[i])
			}
		}
		if rec := e.rec.Load(); rec != nil {
			rec.Write(e.mix, n)
		}
		done += n
	}

	e.publishSnapshot()
}

// renderInto advances the transport by frames and renders the master bus
// into e.mix. Blocks that cross the loop end arrive as two spans and are
// rendered back to back, which keeps event and automation positions
// sample-accurate across the wrap.
func (e *Engine) renderInto(frames int) {
	snap := e.tl.Snapshot()
	e.spans = e.tl.Advance(frames, e.spans[:0])
	offset := 0
	for _, sp := range e.spans {
		e.sched.RenderBlock(graph.SamplePosition(sp.Start), sp.Frames, snap)
		master := e.sched.NodeAudioOut(graph.NodeID(e.masterID.Load()))
		for ch := range e.mix {
			dst := e.mix[ch][offset : offset+sp.Frames]
			if len(master) == 0 {
				graph.Zero(dst)
				continue
			}
			copy(dst, master[ch%len(master)][:sp.Frames])
		}
		offset += sp.Frames
	}
}

// drainLocked applies every queued command. Caller holds e.mu. A command
// invalidated by an earlier one in the same drain is dropped with a log
// line; validation happened at queue time against the then-applied state.
func (e *Engine) drainLocked() {
	structural := false
	var cmd Command
	for e.commands.Pop(&cmd) {
		if e.apply(&cmd) {
			structural = true
		}
	}
	if structural {
		e.sched.Rebind()
	}
}

// apply executes one command against the owned state, reporting whether it
// changed graph structure.
func (e *Engine) apply(cmd *Command) bool {
	switch cmd.Op {
	case OpAddNode:
		if err := e.g.AddNode(cmd.Node); err != nil {
			applog.Errorf("Dropped add command: %v", err)
			return false
		}
		return true
	case OpRemoveNode:
		if err := e.g.RemoveNode(cmd.NodeID); err != nil {
			applog.Errorf("Dropped remove command: %v", err)
			return false
		}
		return true
	case OpConnect:
		if err := e.g.Connect(cmd.From, cmd.To); err != nil {
			applog.Errorf("Dropped connect command: %v", err)
			return false
		}
		return true
	case OpDisconnect:
		if err := e.g.Disconnect(cmd.From, cmd.To); err != nil {
			applog.Errorf("Dropped disconnect command: %v", err)
			return false
		}
		return true
	case OpSetParam:
		e.setParam(cmd.NodeID, cmd.ParamID, cmd.Value)
	case OpSetLane:
		e.sched.SetLane(cmd.NodeID, cmd.ParamID, cmd.Lane)
	case OpClearLane:
		e.sched.SetLane(cmd.NodeID, cmd.ParamID, nil)
	case OpResetNode:
		e.sched.ResetNode(cmd.NodeID)
	case OpPlay:
		e.tl.Play()
	case OpStop:
		e.tl.Stop()
	case OpToggleRecording:
		e.tl.ToggleRecording()
	case OpSeek:
		e.tl.Seek(cmd.Pos)
	case OpSetLoop:
		e.tl.SetLoop(cmd.Loop)
	case OpSetTempo:
		e.tl.Tempo().Set(cmd.Pos, cmd.BPM)
	}
	return false
}

func (e *Engine) setParam(node graph.NodeID, param uint32, value float64) {
	n := e.g.Node(node)
	pp, ok := n.(graph.ParameterProvider)
	if !ok {
		return
	}
	for _, p := range pp.Parameters() {
		if p.ID == param {
			p.Set(value)
			return
		}
	}
}

func (e *Engine) publishSnapshot() {
	back := (e.snapIx.Load() & 1) ^ 1
	e.snaps[back] = e.tl.Snapshot()
	e.snapIx.Store(back)
}

// snapshot returns the last published transport snapshot without touching
// the transport itself.
func (e *Engine) snapshot() timeline.Snapshot {
	return e.snaps[e.snapIx.Load()&1]
}

// TransportSnapshot is the public read of transport state.
func (e *Engine) TransportSnapshot() timeline.Snapshot { return e.snapshot() }

// --- Editing API ---
//
// Each editor validates synchronously against the last applied state and
// returns a structural error immediately; the mutation itself lands at the
// next block boundary. While the stream is not running the engine drains
// inline, so edits apply immediately in offline and test use.

func (e *Engine) push(cmd Command) error {
	if !e.commands.Push(cmd) {
		return ErrCommandQueueFull
	}
	if !e.running.Load() {
		e.drainLocked()
		e.publishSnapshot()
	}
	return nil
}

// AddNode inserts a fully constructed node into the graph.
func (e *Engine) AddNode(n graph.Node) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n == nil {
		return fmt.Errorf("nil node")
	}
	if e.g.Node(n.ID()) != nil {
		return fmt.Errorf("node %d already in graph", n.ID())
	}
	return e.push(Command{Op: OpAddNode, Node: n})
}

// RemoveNode removes a node and, as a documented side effect, every
// connection attached to it.
func (e *Engine) RemoveNode(id graph.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.g.Node(id) == nil {
		return fmt.Errorf("node %d not in graph", id)
	}
	return e.push(Command{Op: OpRemoveNode, NodeID: id})
}

// Connect adds an edge. Port mismatches and cycles are rejected here,
// synchronously, and leave the graph unchanged.
func (e *Engine) Connect(from, to graph.PortRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.g.CheckConnect(from, to); err != nil {
		return err
	}
	return e.push(Command{Op: OpConnect, From: from, To: to})
}

// Disconnect removes the exact edge from -> to.
func (e *Engine) Disconnect(from, to graph.PortRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.g.Connected(from, to) {
		return fmt.Errorf("no connection %d:%s -> %d:%s", from.Node, from.Port, to.Node, to.Port)
	}
	return e.push(Command{Op: OpDisconnect, From: from, To: to})
}

// SetParam changes a node parameter at the next block boundary.
func (e *Engine) SetParam(node graph.NodeID, param uint32, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkParam(node, param); err != nil {
		return err
	}
	return e.push(Command{Op: OpSetParam, NodeID: node, ParamID: param, Value: value})
}

// Automate binds an automation lane to a node parameter. The engine takes
// ownership of the lane; the caller must not mutate it afterwards.
func (e *Engine) Automate(node graph.NodeID, param uint32, lane *automation.Lane) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkParam(node, param); err != nil {
		return err
	}
	return e.push(Command{Op: OpSetLane, NodeID: node, ParamID: param, Lane: lane})
}

// ClearAutomation unbinds a parameter's lane; the parameter keeps its last
// value.
func (e *Engine) ClearAutomation(node graph.NodeID, param uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkParam(node, param); err != nil {
		return err
	}
	return e.push(Command{Op: OpClearLane, NodeID: node, ParamID: param})
}

func (e *Engine) checkParam(node graph.NodeID, param uint32) error {
	n := e.g.Node(node)
	if n == nil {
		return fmt.Errorf("node %d not in graph", node)
	}
	pp, ok := n.(graph.ParameterProvider)
	if !ok {
		return fmt.Errorf("node %d has no parameters", node)
	}
	for _, p := range pp.Parameters() {
		if p.ID == param {
			return nil
		}
	}
	return fmt.Errorf("node %d has no parameter %d", node, param)
}

// ResetNode clears a node's fault state and internal processing state.
func (e *Engine) ResetNode(id graph.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.g.Node(id) == nil {
		return fmt.Errorf("node %d not in graph", id)
	}
	return e.push(Command{Op: OpResetNode, NodeID: id})
}

// SetMaster names the node whose audio output feeds the device and the
// master recorder.
func (e *Engine) SetMaster(id graph.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.g.Node(id) == nil {
		return fmt.Errorf("node %d not in graph", id)
	}
	e.masterID.Store(uint32(id))
	return nil
}

// Master returns the current master node ID.
func (e *Engine) Master() graph.NodeID { return graph.NodeID(e.masterID.Load()) }

func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.push(Command{Op: OpPlay})
}

func (e *Engine) StopTransport() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.push(Command{Op: OpStop})
}

func (e *Engine) ToggleRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.push(Command{Op: OpToggleRecording})
}

func (e *Engine) Seek(pos timeline.SamplePosition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.push(Command{Op: OpSeek, Pos: pos})
}

// SetLoop installs a loop region. A region with End <= Start is accepted
// and treated as disabled.
func (e *Engine) SetLoop(l timeline.Loop) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.push(Command{Op: OpSetLoop, Loop: l})
}

// SetTempo installs a tempo change at the given position.
func (e *Engine) SetTempo(pos timeline.SamplePosition, bpm float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bpm <= 0 {
		return fmt.Errorf("tempo must be positive, got %.2f", bpm)
	}
	return e.push(Command{Op: OpSetTempo, Pos: pos, BPM: bpm})
}

// --- Master recording ---

// StartMasterRecording begins capturing the master bus to a WAV file. The
// callback only pushes samples into a ring; encoding happens on the
// recorder's own goroutine.
func (e *Engine) StartMasterRecording(path string) error {
	rec, err := NewRecorder(path, int(e.cfg.Audio.SampleRate), e.cfg.Audio.Channels)
	if err != nil {
		return err
	}
	if !e.rec.CompareAndSwap(nil, rec) {
		rec.Close()
		return fmt.Errorf("already recording")
	}
	applog.Infof("Recording master to %s", path)
	return nil
}

// StopMasterRecording flushes and closes the active recording, if any.
func (e *Engine) StopMasterRecording() error {
	rec := e.rec.Swap(nil)
	if rec == nil {
		return nil
	}
	return rec.Close()
}
