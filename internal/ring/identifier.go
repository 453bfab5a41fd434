// Package ring implements the Chord overlay: identifier hashing, the
// clockwise-arc predicate, per-node ring state (predecessor, successor
// list, finger table), and the protocol engine that keeps that state
// correct as peers join, leave, and fail.
//
// Big idea:
//
// Every peer and every key is mapped onto a circle of 2^m points by
// hashing it. A key belongs to the first peer at or after its point on
// the circle, walking clockwise. That's the whole trick — the rest of
// this package is bookkeeping to make that lookup fast (finger table)
// and resilient to membership churn (successor list, stabilization).
package ring

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/big"
)

// HashWidthM is the width, in bits, of the identifier space. Fixed at
// build time — every peer in a ring must be compiled with the same
// value or lookups silently disagree about who owns what.
const HashWidthM = 160

// IdentifierBytes is HashWidthM/8, the length of a SHA-1 digest.
const IdentifierBytes = HashWidthM / 8

// Identifier is an unsigned integer of width HashWidthM, encoded
// big-endian, living on a ring modulo 2^HashWidthM.
type Identifier [IdentifierBytes]byte

// HashID maps arbitrary bytes onto the ring.
func HashID(data []byte) Identifier {
	return Identifier(sha1.Sum(data))
}

// String renders the identifier as hex, truncated for readability in
// logs (the full value is recoverable from Bytes).
func (id Identifier) String() string {
	return fmt.Sprintf("%x", id[:4])
}

// Bytes returns the raw big-endian digest.
func (id Identifier) Bytes() []byte {
	return id[:]
}

// Hex renders the full identifier as hex, for wire encoding (unlike
// String, which truncates for log readability).
func (id Identifier) Hex() string {
	return hex.EncodeToString(id[:])
}

// ParseIdentifier decodes a full identifier previously produced by Hex.
func ParseIdentifier(s string) (Identifier, error) {
	var id Identifier
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("ring: parse identifier: %w", err)
	}
	if len(b) != IdentifierBytes {
		return id, fmt.Errorf("ring: parse identifier: want %d bytes, got %d", IdentifierBytes, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id Identifier) big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// Equal reports whether two identifiers denote the same ring point.
func (id Identifier) Equal(other Identifier) bool {
	return id == other
}

// ringModulus is 2^HashWidthM, computed once.
var ringModulus = new(big.Int).Lsh(big.NewInt(1), HashWidthM)

// AddPow2 returns (id + 2^i) mod 2^m, the position used to build
// finger_table[i].
func (id Identifier) AddPow2(i int) Identifier {
	offset := new(big.Int).Lsh(big.NewInt(1), uint(i))
	sum := new(big.Int).Add(id.big(), offset)
	sum.Mod(sum, ringModulus)
	return fromBig(sum)
}

func fromBig(v *big.Int) Identifier {
	var out Identifier
	b := v.Bytes()
	copy(out[IdentifierBytes-len(b):], b)
	return out
}

// InArc reports whether x lies on the clockwise arc starting strictly
// after a and ending at b. b is included in the arc iff inclusiveB is
// true. This is the workhorse predicate behind every ring lookup and
// must handle wrap-around (b's point is numerically "before" a's).
func InArc(x, a, b Identifier, inclusiveB bool) bool {
	if a == b {
		// A single point's arc (a, a] is either empty (exclusive) or
		// the whole ring (inclusive) — by convention (a, a] means
		// "everyone", the bootstrap single-node-ring case.
		return inclusiveB
	}
	xi, ai, bi := x.big(), a.big(), b.big()
	if ai.Cmp(bi) < 0 {
		// No wrap: arc is (a, b].
		afterA := xi.Cmp(ai) > 0
		if inclusiveB {
			return afterA && xi.Cmp(bi) <= 0
		}
		return afterA && xi.Cmp(bi) < 0
	}
	// Wrap-around: arc is (a, m) U [0, b].
	afterA := xi.Cmp(ai) > 0
	beforeB := xi.Cmp(bi) < 0
	if inclusiveB {
		beforeB = xi.Cmp(bi) <= 0
	}
	return afterA || beforeB
}
