package elf

import "testing"

func TestFindStringExactEntryOnly(t *testing.T) {
	strtab := []byte("\x00libfoo.so\x00bar\x00")
	if off, ok := findString(strtab, "libfoo.so"); !ok || off != 1 {
		t.Fatalf("got off=%d ok=%v", off, ok)
	}
	if _, ok := findString(strtab, "foo.so"); ok {
		t.Fatal("should not match a suffix of a longer entry")
	}
	if _, ok := findString(strtab, "nope"); ok {
		t.Fatal("should not find a string that isn't present")
	}
}

func TestAppendString(t *testing.T) {
	strtab := []byte("\x00a\x00")
	grown, off := appendString(strtab, "bcd")
	if off != len(strtab) {
		t.Fatalf("offset = %d, want %d", off, len(strtab))
	}
	if string(grown[off:off+4]) != "bcd\x00" {
		t.Fatalf("unexpected tail: %q", grown[off:])
	}
}

func TestCountStringRefsEndingAt(t *testing.T) {
	// "shared" starts at 1 and "ed" (a suffix alias) also ends at the
	// same NUL at offset 7.
	strtab := []byte("\x00shared\x00")
	refs := []uint64{1, 5}
	if n := countStringRefsEndingAt(strtab, refs, 1); n != 2 {
		t.Fatalf("got %d refs, want 2", n)
	}
	if n := countStringRefsEndingAt(strtab, nil, 1); n != 0 {
		t.Fatalf("got %d refs with no refs given, want 0", n)
	}
}
