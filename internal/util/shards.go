// Package util contains internal helpers (shard sizing, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "runtime"

// maxShards bounds the automatic shard count.
const maxShards = 256

// NextPow2 returns the smallest power of two >= x.
// Special cases:
//   - x == 0  -> 1
//   - if the exact next power would overflow 64 bits, the result is clamped to 1<<63
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	if x == 0 {
		return 1 << 63
	}
	return x
}

// ShardCount normalizes a requested shard count to a power of two.
// A non-positive request picks nextPow2(2*GOMAXPROCS), clamped to [1..256].
// Explicit requests are rounded up but not clamped.
func ShardCount(requested int) int {
	if requested > 0 {
		return int(NextPow2(uint64(requested)))
	}
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > maxShards {
		n = maxShards
	}
	return n
}

// ShardIndex maps a 64-bit hash to a shard index.
// shards must be a power of two.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	return int(hash & uint64(shards-1))
}
