package elf

import "testing"

func TestGNUHashKnownValues(t *testing.T) {
	// Values from the GNU hash specification's own worked examples.
	cases := map[string]uint32{
		"":        0x00001505,
		"printf":  0x156b2bb8,
		"exit":    0x7c967e3f,
		"syscall": 0xbac212a0,
	}
	for name, want := range cases {
		if got := gnuHash(name); got != want {
			t.Errorf("gnuHash(%q) = %#x, want %#x", name, got, want)
		}
	}
}

func TestSysVHashDeterministic(t *testing.T) {
	if sysvHash("foo") != sysvHash("foo") {
		t.Fatal("sysvHash is not deterministic")
	}
	if sysvHash("foo") == sysvHash("bar") {
		t.Fatal("unexpected hash collision between foo and bar")
	}
}

func TestSortEntriesStableIsStable(t *testing.T) {
	type pair struct{ key, seq int }
	in := []pair{{1, 0}, {0, 1}, {1, 2}, {0, 3}}
	sortEntriesStable(in, func(a, b pair) bool { return a.key < b.key })
	want := []pair{{0, 1}, {0, 3}, {1, 0}, {1, 2}}
	for i := range want {
		if in[i] != want[i] {
			t.Fatalf("not stable: got %v, want %v", in, want)
		}
	}
}
