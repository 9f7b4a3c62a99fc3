package tuple

import (
	"bytes"
	"testing"

	"sehlabs.com/tuple/internal/evtcounter"
)

var alwaysOverwrite = OverwritePolicyFunc(func(oldTID, newTID TID) bool { return true })
var neverOverwrite = OverwritePolicyFunc(func(oldTID, newTID TID) bool { return false })

func TestWriteRecordAtInPlaceOverwrite(t *testing.T) {
	var counters evtcounter.Set
	head := AllocFirst(true, 32, &counters)
	head.Lock()
	spilled, replacement := WriteRecordAt(head, alwaysOverwrite, TID(1), []byte("hello"))
	head.Unlock()

	if spilled {
		t.Fatal("in-place overwrite should not report spilled")
	}
	if replacement != nil {
		t.Fatal("in-place overwrite should not produce a replacement")
	}
	if head.Version() != TID(1) {
		t.Fatalf("version = %d, want 1", head.Version())
	}
	if !bytes.Equal(head.payload(), []byte("hello")) {
		t.Fatalf("payload = %q, want %q", head.payload(), "hello")
	}
	if head.Next() != nil {
		t.Fatal("in-place overwrite should not touch the chain")
	}
}

func TestWriteRecordAtReplaceOnOverflow(t *testing.T) {
	var counters evtcounter.Set
	head := AllocFirst(true, 8, &counters) // rounds up to 16 bytes
	head.Lock()
	big := bytes.Repeat([]byte("x"), 40)
	spilled, replacement := WriteRecordAt(head, alwaysOverwrite, TID(1), big)
	head.Unlock()

	if spilled {
		t.Fatal("replace-on-overflow should not itself report spilled")
	}
	if replacement == nil {
		t.Fatal("expected a replacement head when the payload outgrows allocSize")
	}
	if head.IsLatest() {
		t.Fatal("old head should no longer be latest after replacement")
	}
	if !replacement.IsLatest() {
		t.Fatal("replacement should be latest")
	}
	if replacement.Version() != TID(1) {
		t.Fatalf("replacement version = %d, want 1", replacement.Version())
	}
	if !bytes.Equal(replacement.payload(), big) {
		t.Fatal("replacement payload mismatch")
	}
	if counters.InplaceBufInsufficient.Value() != 1 {
		t.Fatalf("InplaceBufInsufficient = %d, want 1", counters.InplaceBufInsufficient.Value())
	}
}

func TestWriteRecordAtSpillsPriorVersion(t *testing.T) {
	var counters evtcounter.Set
	head := AllocFirst(true, 32, &counters)
	head.Lock()
	WriteRecordAt(head, alwaysOverwrite, TID(1), []byte("v1"))
	head.Unlock()

	head.Lock()
	spilled, replacement := WriteRecordAt(head, neverOverwrite, TID(2), []byte("v2"))
	head.Unlock()

	if !spilled {
		t.Fatal("expected the prior version to spill")
	}
	if replacement != nil {
		t.Fatal("spilling in place should not produce a replacement head")
	}
	if head.Version() != TID(2) {
		t.Fatalf("head version = %d, want 2", head.Version())
	}
	next := head.Next()
	if next == nil {
		t.Fatal("expected a spilled node in the chain")
	}
	if next.Version() != TID(1) {
		t.Fatalf("spilled node version = %d, want 1", next.Version())
	}
	if !bytes.Equal(next.payload(), []byte("v1")) {
		t.Fatal("spilled node payload mismatch")
	}
	if next.IsLatest() {
		t.Fatal("spilled node must not be latest")
	}
	if counters.Spills.Value() != 1 {
		t.Fatalf("Spills = %d, want 1", counters.Spills.Value())
	}
}

func TestWriteRecordAtReplaceOnSpillOverflow(t *testing.T) {
	var counters evtcounter.Set
	head := AllocFirst(true, 8, &counters) // allocSize rounds to 16
	head.Lock()
	WriteRecordAt(head, alwaysOverwrite, TID(1), []byte("v1"))
	head.Unlock()

	head.Lock()
	big := bytes.Repeat([]byte("y"), 40)
	spilled, replacement := WriteRecordAt(head, neverOverwrite, TID(2), big)
	head.Unlock()

	if !spilled {
		t.Fatal("expected spilled to be reported even though a replacement was needed")
	}
	if replacement == nil {
		t.Fatal("expected a replacement head")
	}
	if replacement.Next() != head {
		t.Fatal("replacement should chain to the old head")
	}
	if head.IsLatest() {
		t.Fatal("old head should no longer be latest")
	}
	if head.Version() != TID(1) {
		t.Fatalf("old head retains its version; got %d, want 1", head.Version())
	}
	if counters.InplaceBufInsufficientOnSpill.Value() != 1 {
		t.Fatalf("InplaceBufInsufficientOnSpill = %d, want 1", counters.InplaceBufInsufficientOnSpill.Value())
	}
}

func TestWriteRecordAtZeroLengthCountsLogicalDelete(t *testing.T) {
	var counters evtcounter.Set
	head := AllocFirst(true, 32, &counters)
	head.Lock()
	WriteRecordAt(head, alwaysOverwrite, TID(1), []byte("v1"))
	head.Unlock()

	head.Lock()
	WriteRecordAt(head, alwaysOverwrite, TID(2), nil)
	head.Unlock()

	if head.Size() != 0 {
		t.Fatalf("size = %d, want 0 after deleting write", head.Size())
	}
	if counters.LogicalDeletes.Value() != 1 {
		t.Fatalf("LogicalDeletes = %d, want 1", counters.LogicalDeletes.Value())
	}
}
