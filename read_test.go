package tuple

import (
	"bytes"
	"testing"
)

func TestStableReadFindsExactVersion(t *testing.T) {
	tail := Alloc(TID(1), []byte("v1"), nil, false, nil)
	head := Alloc(TID(3), []byte("v3"), tail, true, nil)

	ok, startTID, payload := StableRead(head, TID(3), NoLimit)
	if !ok {
		t.Fatal("StableRead reported stale head on a freshly built chain")
	}
	if startTID != TID(3) {
		t.Fatalf("startTID = %d, want 3", startTID)
	}
	if !bytes.Equal(payload, []byte("v3")) {
		t.Fatalf("payload = %q, want %q", payload, "v3")
	}
}

func TestStableReadWalksToOlderVersion(t *testing.T) {
	tail := Alloc(TID(1), []byte("v1"), nil, false, nil)
	head := Alloc(TID(3), []byte("v3"), tail, true, nil)

	ok, startTID, payload := StableRead(head, TID(2), NoLimit)
	if !ok {
		t.Fatal("StableRead reported stale head")
	}
	if startTID != TID(1) {
		t.Fatalf("startTID = %d, want 1", startTID)
	}
	if !bytes.Equal(payload, []byte("v1")) {
		t.Fatalf("payload = %q, want %q", payload, "v1")
	}
}

func TestStableReadOlderThanEverythingSeesTombstone(t *testing.T) {
	tail := Alloc(TID(5), []byte("v5"), nil, false, nil)
	head := Alloc(TID(9), []byte("v9"), tail, true, nil)

	ok, startTID, payload := StableRead(head, TID(1), NoLimit)
	if !ok {
		t.Fatal("StableRead reported stale head")
	}
	if startTID != MinTID {
		t.Fatalf("startTID = %d, want MinTID", startTID)
	}
	if len(payload) != 0 {
		t.Fatalf("payload = %q, want empty", payload)
	}
}

func TestStableReadRejectsStaleHead(t *testing.T) {
	head := Alloc(TID(3), []byte("v3"), nil, true, nil)
	head.hdr.setLatest(false) // simulate the index having moved on to a replacement

	ok, _, _ := StableRead(head, TID(3), NoLimit)
	if ok {
		t.Fatal("StableRead did not detect the node is no longer latest")
	}
}

func TestStableReadRespectsMaxLen(t *testing.T) {
	head := Alloc(TID(1), []byte("0123456789"), nil, true, nil)
	ok, _, payload := StableRead(head, TID(1), 4)
	if !ok {
		t.Fatal("StableRead reported stale head")
	}
	if string(payload) != "0123" {
		t.Fatalf("payload = %q, want %q", payload, "0123")
	}
}

func TestIsLatestVersionAndValueIsNil(t *testing.T) {
	head := AllocFirst(true, 8, nil)
	if !head.IsLatestVersion(MinTID) {
		t.Fatal("fresh AllocFirst head is not latest-as-of MinTID")
	}
	if !head.LatestValueIsNil() {
		t.Fatal("fresh AllocFirst head should read as nil-valued")
	}
	if !head.StableIsLatestVersion(MinTID) {
		t.Fatal("StableIsLatestVersion disagreed with the unsynchronized variant")
	}
	if !head.StableLatestValueIsNil() {
		t.Fatal("StableLatestValueIsNil disagreed with the unsynchronized variant")
	}
}
