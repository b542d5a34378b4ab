// SPDX-License-Identifier: MIT
/*
Package bitint provides power-of-2 helpers for buffer and ring sizing.

Design Principles:
- Zero Allocations: stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: no locks, syscalls, or blocking operations
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Exact powers of 2 are
// preserved: the size-1 before taking the bit length is what keeps 8 from
// becoming 16. Non-positive sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2 have
// exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Mask returns the index mask for a power-of-2 capacity ring buffer.
// Callers must have validated capacity with IsPowerOfTwo.
func Mask(capacity int) uint64 {
	return uint64(capacity - 1)
}
