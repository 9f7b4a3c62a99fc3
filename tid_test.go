package tuple

import "testing"

func TestMinTIDIsZero(t *testing.T) {
	if MinTID != 0 {
		t.Fatalf("MinTID = %d, want 0", MinTID)
	}
}

func TestMaxTIDIsAllOnes(t *testing.T) {
	if MaxTID != ^TID(0) {
		t.Fatalf("MaxTID = %d, want ^TID(0)", MaxTID)
	}
	if MaxTID <= MinTID {
		t.Fatal("MaxTID should be the largest representable TID")
	}
}
