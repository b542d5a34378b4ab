// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"opentune/internal/automation"
	"opentune/internal/config"
	"opentune/internal/graph"
	"opentune/internal/nodes"
	"opentune/internal/timeline"
	"opentune/pkg/testutil"
)

const testBlock = 128

func newTestEngine(t testing.TB) *Engine {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Audio.BlockSize = testBlock
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return New(cfg)
}

// steadyNode outputs a constant signal and can be told to fail, standing in
// for a misbehaving processor.
type steadyNode struct {
	id    graph.NodeID
	fail  bool
	level float64
}

func (n *steadyNode) ID() graph.NodeID { return n.id }
func (n *steadyNode) Name() string     { return "steady" }
func (n *steadyNode) Reset()           {}
func (n *steadyNode) Ports() []graph.Port {
	return []graph.Port{{Name: "out", Type: graph.AudioPort, Dir: graph.Out}}
}

func (n *steadyNode) Process(pc *graph.ProcessContext) error {
	if n.fail {
		return errors.New("simulated failure")
	}
	for f := 0; f < pc.Frames; f++ {
		pc.AudioOut[0][f] = n.level
	}
	return nil
}

// buildSession wires source -> master mixer and starts playback.
func buildSession(t *testing.T, e *Engine, src graph.Node, srcPort string) graph.NodeID {
	t.Helper()
	master := nodes.NewMixer(100, 1)
	for _, n := range []graph.Node{src, master} {
		if err := e.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	err := e.Connect(
		graph.PortRef{Node: src.ID(), Port: srcPort},
		graph.PortRef{Node: master.ID(), Port: "in0"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetMaster(master.ID()); err != nil {
		t.Fatal(err)
	}
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	return master.ID()
}

func TestEditorValidation(t *testing.T) {
	e := newTestEngine(t)
	a, b := nodes.NewGain(1, 1), nodes.NewGain(2, 1)
	for _, n := range []graph.Node{a, b} {
		if err := e.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.AddNode(nodes.NewGain(1, 1)); err == nil {
		t.Error("duplicate node ID accepted")
	}

	if err := e.Connect(
		graph.PortRef{Node: 1, Port: "out"}, graph.PortRef{Node: 2, Port: "in"},
	); err != nil {
		t.Fatal(err)
	}

	// Closing the cycle is rejected synchronously and changes nothing.
	err := e.Connect(graph.PortRef{Node: 2, Port: "out"}, graph.PortRef{Node: 1, Port: "in"})
	var cerr *graph.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("cycle edit returned %v, want *CycleError", err)
	}
	if got := len(e.Graph().Connections()); got != 1 {
		t.Errorf("rejected edit changed the graph: %d connections", got)
	}

	if err := e.SetParam(1, 99, 0.5); err == nil {
		t.Error("SetParam with unknown parameter accepted")
	}
	if err := e.RemoveNode(42); err == nil {
		t.Error("RemoveNode of unknown node accepted")
	}
	if err := e.SetTempo(0, -10); err == nil {
		t.Error("negative tempo accepted")
	}
}

func TestEditsApplyWhileStopped(t *testing.T) {
	// Without a running stream the engine drains inline, so edits are
	// visible immediately.
	e := newTestEngine(t)
	g := nodes.NewGain(1, 1)
	if err := e.AddNode(g); err != nil {
		t.Fatal(err)
	}
	if e.Graph().Node(1) == nil {
		t.Fatal("node not applied inline")
	}
	if err := e.SetParam(1, 0, 0.25); err != nil {
		t.Fatal(err)
	}
	if got := g.Parameters()[0].Value(); got != 0.25 {
		t.Errorf("parameter = %g after SetParam, want 0.25", got)
	}
}

func TestRemoveNodeDropsItsConnections(t *testing.T) {
	e := newTestEngine(t)
	buildSession(t, e, &steadyNode{id: 1, level: 1}, "out")
	if err := e.RemoveNode(1); err != nil {
		t.Fatal(err)
	}
	if got := len(e.Graph().Connections()); got != 0 {
		t.Errorf("%d connections survive source removal, want 0", got)
	}
}

func renderBlocks(e *Engine, blocks int) []float64 {
	out := make([]float64, 0, blocks*testBlock)
	for i := 0; i < blocks; i++ {
		e.renderInto(testBlock)
		out = append(out, e.mix[0][:testBlock]...)
	}
	return out
}

func sequencedSession(t testing.TB, e *Engine) {
	t.Helper()
	beat := int64(11025)
	clip := nodes.NewNoteClip(1, 0, []nodes.Note{
		{Pos: 0, Length: beat - 1, Key: 60, Velocity: 100},
		{Pos: beat, Length: beat - 1, Key: 67, Velocity: 96},
	})
	osc := nodes.NewOscillator(2, 440)
	master := nodes.NewMixer(100, 1)
	for _, n := range []graph.Node{clip, osc, master} {
		if err := e.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	steps := []struct{ from, to graph.PortRef }{
		{graph.PortRef{Node: 1, Port: "notes"}, graph.PortRef{Node: 2, Port: "notes"}},
		{graph.PortRef{Node: 2, Port: "out"}, graph.PortRef{Node: 100, Port: "in0"}},
	}
	for _, s := range steps {
		if err := e.Connect(s.from, s.to); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.SetMaster(100); err != nil {
		t.Fatal(err)
	}
	lane := automation.NewLane(
		automation.Breakpoint{Pos: 0, Value: 0.2, Interp: automation.Linear},
		automation.Breakpoint{Pos: 44100, Value: 1.0, Interp: automation.Linear},
	)
	if err := e.Automate(100, 0, lane); err != nil {
		t.Fatal(err)
	}
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
}

func TestRenderDeterminism(t *testing.T) {
	// Two engines built from the same edits produce bit-identical output,
	// including automation ramps and sequenced events.
	a, b := newTestEngine(t), newTestEngine(t)
	sequencedSession(t, a)
	sequencedSession(t, b)

	outA := renderBlocks(a, 50)
	outB := renderBlocks(b, 50)
	for i := range outA {
		if outA[i] != outB[i] {
			t.Fatalf("output diverges at sample %d: %v != %v", i, outA[i], outB[i])
		}
	}

	var nonZero bool
	for _, v := range outA {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatal("rendered output is all silence")
	}
}

func TestFaultedNodeSilentUntilReset(t *testing.T) {
	e := newTestEngine(t)
	src := &steadyNode{id: 1, level: 0.5, fail: true}
	buildSession(t, e, src, "out")

	out := renderBlocks(e, 3)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %g from a faulted node, want silence", i, v)
		}
	}
	// The fault is counted once, not once per block.
	if got := e.sched.NodeFaults(); got != 1 {
		t.Fatalf("node faults = %d after 3 blocks, want 1", got)
	}
	if f := e.sched.LastFault(); f == nil || f.Node != 1 {
		t.Fatalf("last fault = %+v, want node 1", f)
	}
	if !e.sched.Faulted(1) {
		t.Fatal("node not marked faulted")
	}

	// Reset restores processing.
	src.fail = false
	if err := e.ResetNode(1); err != nil {
		t.Fatal(err)
	}
	out = renderBlocks(e, 1)
	if out[0] != 0.5 {
		t.Errorf("sample after reset = %g, want 0.5", out[0])
	}
	if got := e.sched.NodeFaults(); got != 1 {
		t.Errorf("node faults = %d after reset, want still 1", got)
	}
}

func TestLoopWrapKeepsSubBlockAlignment(t *testing.T) {
	e := newTestEngine(t)
	buildSession(t, e, &steadyNode{id: 1, level: 1}, "out")
	if err := e.SetLoop(timeline.Loop{Enabled: true, Start: 0, End: 192}); err != nil {
		t.Fatal(err)
	}

	e.renderInto(testBlock) // [0, 128)
	if got := e.tl.Pos(); got != 128 {
		t.Fatalf("position = %d after first block, want 128", got)
	}
	e.renderInto(testBlock) // [128, 192) + [0, 64)
	if got := e.tl.Pos(); got != 64 {
		t.Fatalf("position = %d after wrap, want 64", got)
	}
	// The wrapped block still fills every frame.
	for f := 0; f < testBlock; f++ {
		if e.mix[0][f] != 1 {
			t.Fatalf("frame %d silent across the loop wrap", f)
		}
	}
}

func TestAutomationRampReachesMaster(t *testing.T) {
	e := newTestEngine(t)
	master := buildSession(t, e, &steadyNode{id: 1, level: 1}, "out")
	lane := automation.NewLane(
		automation.Breakpoint{Pos: 0, Value: 0.0, Interp: automation.Linear},
		automation.Breakpoint{Pos: 12800, Value: 1.0, Interp: automation.Linear},
	)
	if err := e.Automate(master, 0, lane); err != nil {
		t.Fatal(err)
	}

	e.renderInto(testBlock)
	for f := 0; f < testBlock; f++ {
		want := float64(f) / 12800
		if math.Abs(e.mix[0][f]-want) > 1e-12 {
			t.Fatalf("frame %d = %g, want %g", f, e.mix[0][f], want)
		}
	}
}

func TestAutomationRampClampedToParameterRange(t *testing.T) {
	e := newTestEngine(t)
	master := buildSession(t, e, &steadyNode{id: 1, level: 1}, "out")

	// Mixer gain tops out at 4; the lane overshoots to 8. The ramp must be
	// clamped per sample, exactly like a direct Set would be.
	lane := automation.NewLane(
		automation.Breakpoint{Pos: 0, Value: 0, Interp: automation.Linear},
		automation.Breakpoint{Pos: 128, Value: 8, Interp: automation.Linear},
	)
	if err := e.Automate(master, 0, lane); err != nil {
		t.Fatal(err)
	}

	e.renderInto(testBlock)
	for f := 0; f < testBlock; f++ {
		want := float64(f) / 16
		if want > 4 {
			want = 4
		}
		if math.Abs(e.mix[0][f]-want) > 1e-12 {
			t.Fatalf("frame %d = %g, want %g", f, e.mix[0][f], want)
		}
	}
}

func TestRenderHotPathZeroAlloc(t *testing.T) {
	e := newTestEngine(t)
	sequencedSession(t, e)
	e.renderInto(testBlock) // warm-up

	allocs := testing.AllocsPerRun(100, func() {
		e.renderInto(testBlock)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in the render path, got %.1f", allocs)
	}
}

func TestStatusSnapshot(t *testing.T) {
	e := newTestEngine(t)
	buildSession(t, e, &steadyNode{id: 1, level: 1}, "out")
	e.renderInto(testBlock)
	e.publishSnapshot()

	st := e.Status()
	if st.State != "playing" {
		t.Errorf("state = %q, want playing", st.State)
	}
	if len(st.Nodes) != 2 {
		t.Fatalf("status has %d nodes, want 2", len(st.Nodes))
	}
	var masterPeak float64
	for _, n := range st.Nodes {
		if n.ID == 100 {
			masterPeak = n.Peak
		}
	}
	if masterPeak != 1 {
		t.Errorf("master peak = %g, want 1", masterPeak)
	}
}

func BenchmarkRenderInto(b *testing.B) {
	e := newTestEngine(b)
	sequencedSession(b, e)
	e.renderInto(testBlock)

	b.ReportAllocs()
	for b.Loop() {
		e.renderInto(testBlock)
	}
}

func TestPublisherDeliversFrames(t *testing.T) {
	e := newTestEngine(t)
	buildSession(t, e, &steadyNode{id: 1, level: 1}, "out")

	sink := &testutil.MockTransport{}
	pub := NewPublisher(e, sink, 5*time.Millisecond)
	pub.Start()
	time.Sleep(30 * time.Millisecond)
	pub.Stop()

	if len(sink.Sent) == 0 {
		t.Fatal("publisher sent nothing")
	}
	if _, ok := sink.Sent[0].(StatusSnapshot); !ok {
		t.Fatalf("sent frame has type %T, want StatusSnapshot", sink.Sent[0])
	}
}
