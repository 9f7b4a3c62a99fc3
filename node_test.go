package tuple

import "testing"

func TestRoundUpSize(t *testing.T) {
	for _, tc := range []struct{ in, want int }{
		{-5, 0},
		{0, 0},
		{1, 16},
		{16, 16},
		{17, 32},
		{MaxNodeSize, MaxNodeSize},
		{MaxNodeSize + 1, MaxNodeSize},
	} {
		if got := roundUpSize(tc.in); got != tc.want {
			t.Errorf("roundUpSize(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAllocFirstIsDeletedHeadAtMinTID(t *testing.T) {
	n := AllocFirst(true, 32, nil)
	if n.Version() != MinTID {
		t.Fatalf("version = %d, want MinTID", n.Version())
	}
	if n.Size() != 0 {
		t.Fatalf("size = %d, want 0", n.Size())
	}
	if !n.IsLatest() {
		t.Fatal("AllocFirst node is not latest")
	}
	if !n.IsBigType() {
		t.Fatal("AllocFirst(big=true) produced a small node")
	}
	if n.AllocSize() != 32 {
		t.Fatalf("alloc size = %d, want 32", n.AllocSize())
	}
}

func TestSmallNodeNextIsAlwaysNil(t *testing.T) {
	n := AllocFirst(false, 16, nil)
	if n.IsBigType() {
		t.Fatal("AllocFirst(big=false) produced a big node")
	}
	if n.Next() != nil {
		t.Fatal("small node reports a non-nil Next")
	}
}

func TestAllocCopiesPayload(t *testing.T) {
	value := []byte("hello")
	n := Alloc(TID(7), value, nil, true, nil)
	if n.Size() != uint32(len(value)) {
		t.Fatalf("size = %d, want %d", n.Size(), len(value))
	}
	if string(n.payload()) != "hello" {
		t.Fatalf("payload = %q, want %q", n.payload(), "hello")
	}
	value[0] = 'H'
	if n.payload()[0] == 'H' {
		t.Fatal("Alloc aliased the caller's slice instead of copying it")
	}
}

func TestNextAtTrustsProvidedVersionBit(t *testing.T) {
	tail := Alloc(TID(1), []byte("old"), nil, false, nil)
	head := Alloc(TID(2), []byte("new"), tail, true, nil)
	v := head.hdr.word.Load()
	if head.nextAt(v) != tail {
		t.Fatal("nextAt did not follow the chain pointer for a big node")
	}

	small := AllocFirst(false, 8, nil)
	if small.nextAt(small.hdr.word.Load()) != nil {
		t.Fatal("nextAt followed a pointer on a small node")
	}
}
