package ring

import (
	"testing"
)

func idOf(b byte) Identifier {
	var id Identifier
	id[IdentifierBytes-1] = b
	return id
}

// naiveInArc walks clockwise one step at a time from a (exclusive) and
// returns true the moment it reaches x, stopping at b. a==b denotes the
// bootstrap singleton-ring case: the whole ring when inclusiveB, empty
// otherwise.
func naiveInArc(x, a, b byte, inclusiveB bool) bool {
	if a == b {
		return inclusiveB
	}
	cur := a
	for {
		cur++
		if cur == b {
			break
		}
		if cur == x {
			return true
		}
	}
	if inclusiveB && x == b {
		return true
	}
	return false
}

func TestInArcAgreesWithLinearScan(t *testing.T) {
	for a := 0; a < 256; a += 7 {
		for b := 0; b < 256; b += 11 {
			for _, inclusiveB := range []bool{true, false} {
				for x := 0; x < 256; x += 3 {
					got := InArc(idOf(byte(x)), idOf(byte(a)), idOf(byte(b)), inclusiveB)
					want := naiveInArc(byte(x), byte(a), byte(b), inclusiveB)
					if got != want {
						t.Fatalf("InArc(%d,%d,%d,incl=%v)=%v want %v", x, a, b, inclusiveB, got, want)
					}
				}
			}
		}
	}
}

func TestInArcSingletonRing(t *testing.T) {
	a := idOf(5)
	if !InArc(idOf(5), a, a, true) {
		t.Fatal("(a,a] with inclusiveB should contain a on a singleton ring")
	}
	if InArc(idOf(5), a, a, false) {
		t.Fatal("(a,a) exclusive should be empty")
	}
}

func TestHashIDDeterministic(t *testing.T) {
	a := HashID([]byte("submit-job-key"))
	b := HashID([]byte("submit-job-key"))
	if a != b {
		t.Fatal("HashID must be deterministic")
	}
	c := HashID([]byte("different-key"))
	if a == c {
		t.Fatal("distinct inputs collided (astronomically unlikely)")
	}
}

func TestAddPow2(t *testing.T) {
	base := idOf(10)
	got := base.AddPow2(0) // +1
	if got != idOf(11) {
		t.Fatalf("AddPow2(0) = %v, want 11", got)
	}
}
