package elf

import "testing"

func TestModifyRPathSetPromotesToRunpath(t *testing.T) {
	raw := buildDynamicELF64(t, "libfoo.so", "/opt/a", "")
	f, err := NewFile(raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.ModifyRPath(RPathSet, "/opt/c:/opt/d", nil, false); err != nil {
		t.Fatalf("ModifyRPath(set): %v", err)
	}
	entries, err := f.Dynamic()
	if err != nil {
		t.Fatal(err)
	}
	tag, _, ok := rpathTag(entries)
	if !ok || tag != DT_RUNPATH {
		t.Fatalf("expected DT_RUNPATH after promotion, got tag=%v ok=%v", tag, ok)
	}
	got, ok, err := f.RPath()
	if err != nil || !ok || got != "/opt/c:/opt/d" {
		t.Fatalf("RPath() = %q, %v, %v", got, ok, err)
	}
}

func TestModifyRPathForceKeepsRPath(t *testing.T) {
	raw := buildDynamicELF64(t, "libfoo.so", "/opt/a", "")
	f, err := NewFile(raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.ModifyRPath(RPathSet, "/opt/e", nil, true); err != nil {
		t.Fatal(err)
	}
	entries, err := f.Dynamic()
	if err != nil {
		t.Fatal(err)
	}
	tag, _, ok := rpathTag(entries)
	if !ok || tag != DT_RPATH {
		t.Fatalf("expected DT_RPATH kept under --force-rpath, got tag=%v ok=%v", tag, ok)
	}
}

func TestShrinkRPathKeepsNonAbsoluteEntries(t *testing.T) {
	raw := buildDynamicELF64(t, "libfoo.so", "$ORIGIN/../lib:/nonexistent/dir", "")
	f, err := NewFile(raw)
	if err != nil {
		t.Fatal(err)
	}
	shrunk, err := f.shrinkRPathValue("$ORIGIN/../lib:/nonexistent/dir", nil)
	if err != nil {
		t.Fatal(err)
	}
	if shrunk != "$ORIGIN/../lib" {
		t.Fatalf("shrinkRPathValue = %q", shrunk)
	}
}

func TestHasAllowedPrefix(t *testing.T) {
	if !hasAllowedPrefix("/usr/lib/foo", []string{"/usr/lib", "/opt"}) {
		t.Fatal("expected /usr/lib/foo to match /usr/lib prefix")
	}
	if hasAllowedPrefix("/var/lib", []string{"/usr/lib", "/opt"}) {
		t.Fatal("did not expect /var/lib to match")
	}
}

func TestSetRPathSharedStringAppends(t *testing.T) {
	raw := buildDynamicELF64(t, "libfoo.so", "/opt/a", "")
	f, err := NewFile(raw)
	if err != nil {
		t.Fatal(err)
	}

	// Point DT_NEEDED at the same .dynstr bytes as DT_RPATH, so an
	// in-place overwrite of the rpath would corrupt the needed name.
	entries, err := f.Dynamic()
	if err != nil {
		t.Fatal(err)
	}
	var rpathVal uint64
	for _, d := range entries {
		if d.Tag == DT_RPATH {
			rpathVal = d.Val
		}
	}
	for i := range entries {
		if entries[i].Tag == DT_NEEDED {
			entries[i].Val = rpathVal
		}
	}
	if err := f.SetDynamic(entries); err != nil {
		t.Fatal(err)
	}

	// "/b" is shorter than "/opt/a", so only the shared-string check
	// stops the in-place path.
	if _, err := f.ModifyRPath(RPathSet, "/b", nil, true); err != nil {
		t.Fatalf("ModifyRPath(set): %v", err)
	}

	needed, err := f.Needed()
	if err != nil {
		t.Fatal(err)
	}
	if len(needed) != 1 || needed[0] != "/opt/a" {
		t.Fatalf("shared string corrupted by in-place rpath write: needed = %v", needed)
	}
	rp, ok, err := f.RPath()
	if err != nil || !ok || rp != "/b" {
		t.Fatalf("RPath() = %q, %v, %v", rp, ok, err)
	}
}
