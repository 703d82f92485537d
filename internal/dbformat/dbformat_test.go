package dbformat

import "testing"

func TestPartitionZeroLgParts(t *testing.T) {
	for _, fid := range [][]byte{[]byte("a"), []byte("some-file-id"), {}} {
		if p := Partition(fid, 0); p != 0 {
			t.Errorf("Partition(%q, 0) = %d, want 0", fid, p)
		}
	}
}

func TestPartitionWithinRange(t *testing.T) {
	for lgParts := uint(0); lgParts <= MaxLgParts; lgParts++ {
		n := uint32(1) << lgParts
		for i := range 500 {
			fid := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
			p := Partition(fid, lgParts)
			if p >= n {
				t.Fatalf("lg_parts=%d: Partition(%v) = %d, out of range [0,%d)", lgParts, fid, p, n)
			}
		}
	}
}

func TestPartitionDeterministic(t *testing.T) {
	fid := []byte("file-0001")
	p1 := Partition(fid, 5)
	p2 := Partition(fid, 5)
	if p1 != p2 {
		t.Errorf("Partition not deterministic: %d != %d", p1, p2)
	}
}

func TestDirModeString(t *testing.T) {
	cases := map[DirMode]string{
		MultiMap:       "multimap",
		UniqueOverride: "unique-override",
		UniqueDrop:     "unique-drop",
		Unique:         "unique",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("DirMode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
