// SPDX-License-Identifier: MIT
package engine

import (
	"sync/atomic"

	"opentune/pkg/bitint"
)

// commandRing is a single-producer/single-consumer lock-free queue carrying
// commands from the editing context into the real-time context. Capacity is
// a power of 2 so indices wrap with a mask. Read and write indices live on
// separate cache lines to avoid false sharing between the two sides.
type commandRing struct {
	buf  []Command
	mask uint64

	_     [64]byte // padding
	read  atomic.Uint64
	_     [64]byte
	write atomic.Uint64
}

func newCommandRing(capacity int) *commandRing {
	capacity = bitint.NextPowerOfTwo(capacity)
	return &commandRing{
		buf:  make([]Command, capacity),
		mask: bitint.Mask(capacity),
	}
}

// Push enqueues a command from the producer side. Returns false when the
// ring is full; the caller surfaces that to the editor instead of blocking.
func (r *commandRing) Push(cmd Command) bool {
	w := r.write.Load()
	if w-r.read.Load() > r.mask {
		return false
	}
	r.buf[w&r.mask] = cmd
	r.write.Store(w + 1)
	return true
}

// Pop dequeues one command on the consumer (real-time) side. Zero-alloc.
func (r *commandRing) Pop(cmd *Command) bool {
	rd := r.read.Load()
	if rd == r.write.Load() {
		return false
	}
	*cmd = r.buf[rd&r.mask]
	r.buf[rd&r.mask] = Command{} // drop references for the GC
	r.read.Store(rd + 1)
	return true
}

// Len reports the number of queued commands. Approximate under concurrency,
// exact from either endpoint's own side.
func (r *commandRing) Len() int {
	return int(r.write.Load() - r.read.Load())
}
