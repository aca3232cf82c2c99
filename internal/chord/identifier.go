// Package chord implements the Chord consistent-hashing ring: identifier
// assignment, routing, membership, and key ownership over an m-bit space.
package chord

import (
	"crypto/sha1"
	"math/big"
	"strconv"
)

// MaxBits is the largest identifier width this implementation supports.
// Ring ids are represented as uint64, so the space must fit in 62 bits
// (see DESIGN.md / SPEC_FULL.md "Identifier width").
const MaxBits = 62

// HashAddress hashes an "ip:port" string into the ring, folding the full
// 160-bit SHA-1 digest down to m bits.
func HashAddress(ip string, port int, bits uint) uint64 {
	return hashString(ip+":"+strconv.Itoa(port), bits)
}

// HashKey hashes an arbitrary key string into the ring.
func HashKey(key string, bits uint) uint64 {
	return hashString(key, bits)
}

func hashString(s string, bits uint) uint64 {
	sum := sha1.Sum([]byte(s))
	hashInt := new(big.Int).SetBytes(sum[:])
	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	return new(big.Int).Mod(hashInt, mod).Uint64()
}

// InOpen reports whether x lies on the open clockwise arc (a, b),
// excluding both endpoints. Used by closest_preceding_finger /
// closest_preceding_node style scans (§4.1, §4.2).
func InOpen(x, a, b uint64) bool {
	if a < b {
		return x > a && x < b
	}
	return x > a || x < b // wrap-around, and the a==b corner (x != a)
}

// InLeftInclusive reports whether x lies on the clockwise arc [a, b),
// including a but excluding b. Used by update_finger_table (§4.3.3).
func InLeftInclusive(x, a, b uint64) bool {
	if a < b {
		return x >= a && x < b
	}
	return x >= a || x < b // wrap-around, and the a==b corner (always true)
}

// InRightInclusive reports whether x lies on the clockwise arc (a, b],
// excluding a but including b. Used by find_successor, ownership tests,
// and key transfer (§3 invariant 3, §4.2, §4.4).
func InRightInclusive(x, a, b uint64) bool {
	if a < b {
		return x > a && x <= b
	}
	return x > a || x <= b // wrap-around, and the a==b corner (always true)
}
