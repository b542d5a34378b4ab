// SPDX-License-Identifier: MIT
package engine

import (
	"testing"

	"opentune/internal/graph"
)

func TestCommandRingOrder(t *testing.T) {
	r := newCommandRing(8)
	for i := 0; i < 5; i++ {
		if !r.Push(Command{NodeID: graph.NodeID(i)}) {
			t.Fatalf("Push %d failed on a non-full ring", i)
		}
	}
	if got := r.Len(); got != 5 {
		t.Fatalf("Len = %d, want 5", got)
	}

	var cmd Command
	for i := 0; i < 5; i++ {
		if !r.Pop(&cmd) {
			t.Fatalf("Pop %d failed", i)
		}
		if cmd.NodeID != graph.NodeID(i) {
			t.Fatalf("Pop %d = node %d, not FIFO", i, cmd.NodeID)
		}
	}
	if r.Pop(&cmd) {
		t.Error("Pop on empty ring succeeded")
	}
}

func TestCommandRingFull(t *testing.T) {
	r := newCommandRing(4)
	for i := 0; i < 4; i++ {
		if !r.Push(Command{}) {
			t.Fatalf("Push %d failed before capacity", i)
		}
	}
	if r.Push(Command{}) {
		t.Error("Push on full ring succeeded")
	}

	var cmd Command
	r.Pop(&cmd)
	if !r.Push(Command{}) {
		t.Error("Push failed after a Pop freed a slot")
	}
}

func TestCommandRingRoundsCapacity(t *testing.T) {
	// A non-power-of-2 request rounds up so masking stays valid.
	r := newCommandRing(5)
	for i := 0; i < 8; i++ {
		if !r.Push(Command{}) {
			t.Fatalf("Push %d failed, capacity not rounded to 8", i)
		}
	}
	if r.Push(Command{}) {
		t.Error("ring accepted more than its rounded capacity")
	}
}

func TestCommandRingZeroAlloc(t *testing.T) {
	r := newCommandRing(64)
	var cmd Command
	allocs := testing.AllocsPerRun(100, func() {
		r.Push(Command{Op: OpSeek, Pos: 42})
		r.Pop(&cmd)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Push/Pop, got %.1f", allocs)
	}
}
