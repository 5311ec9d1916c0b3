package elf

import (
	"encoding/binary"
	"testing"
)

// buildExecELF64 constructs a minimal ET_EXEC image: a PT_LOAD mapped at
// loadBase, a PT_INTERP/.interp pair, and a .text section that the
// executable layout strategy's boundary scan stops at.
// withGNUStack optionally adds a PT_GNU_STACK segment so toggle tests don't
// need the append-new-Phdr path.
func buildExecELF64(t *testing.T, interp string, withGNUStack, gnuStackExec bool) []byte {
	t.Helper()
	const (
		ehdrSize = 64
		phdrSize = 56
		shdrSize = 64
		loadBase = 0x400000
	)
	le := binary.LittleEndian

	numPhdrs := 2
	if withGNUStack {
		numPhdrs = 3
	}

	// gap leaves slack between .interp and .text so a pending edit (or the
	// absorbed-section fixup) grows the prefix in place, without needing
	// shiftFile's page-insertion path, which this fixture isn't set up to
	// exercise (no PT_PHDR to anchor a second vaddr cross-check against).
	const gap = 4096

	phoff := uint64(ehdrSize)
	interpOff := phoff + uint64(numPhdrs)*phdrSize
	interpData := append([]byte(interp), 0)
	textOff := interpOff + uint64(len(interpData)) + gap
	textData := make([]byte, 16)
	for i := range textData {
		textData[i] = 0x90
	}
	shstrtabOff := textOff + uint64(len(textData))

	shstrtab := []byte{0}
	interpNameOff := uint32(len(shstrtab))
	shstrtab = append(shstrtab, append([]byte(".interp"), 0)...)
	textNameOff := uint32(len(shstrtab))
	shstrtab = append(shstrtab, append([]byte(".text"), 0)...)
	shstrtabNameOff := uint32(len(shstrtab))
	shstrtab = append(shstrtab, append([]byte(".shstrtab"), 0)...)

	shoff := shstrtabOff + uint64(len(shstrtab))
	const numSections = 4
	total := shoff + numSections*shdrSize

	buf := make([]byte, total)

	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = byte(Class64)
	buf[5] = byte(Data2LSB)
	buf[6] = 1

	le.PutUint16(buf[16:18], uint16(ET_EXEC))
	le.PutUint16(buf[18:20], uint16(EM_X86_64))
	le.PutUint32(buf[20:24], 1)
	le.PutUint64(buf[24:32], loadBase+uint64(ehdrSize)) // e_entry, inside .text's header-adjacent region is irrelevant here
	le.PutUint64(buf[32:40], phoff)
	le.PutUint64(buf[40:48], shoff)
	le.PutUint16(buf[52:54], ehdrSize)
	le.PutUint16(buf[54:56], phdrSize)
	le.PutUint16(buf[56:58], uint16(numPhdrs))
	le.PutUint16(buf[58:60], shdrSize)
	le.PutUint16(buf[60:62], numSections)
	le.PutUint16(buf[62:64], 3)

	p0 := buf[phoff : phoff+phdrSize]
	le.PutUint32(p0[0:4], uint32(PT_LOAD))
	le.PutUint32(p0[4:8], uint32(PF_R|PF_X))
	le.PutUint64(p0[8:16], 0)
	le.PutUint64(p0[16:24], loadBase)
	le.PutUint64(p0[24:32], loadBase)
	le.PutUint64(p0[32:40], total)
	le.PutUint64(p0[40:48], total)
	le.PutUint64(p0[48:56], 0x1000)

	p1 := buf[phoff+phdrSize : phoff+2*phdrSize]
	le.PutUint32(p1[0:4], uint32(PT_INTERP))
	le.PutUint32(p1[4:8], uint32(PF_R))
	le.PutUint64(p1[8:16], interpOff)
	le.PutUint64(p1[16:24], loadBase+interpOff)
	le.PutUint64(p1[24:32], loadBase+interpOff)
	le.PutUint64(p1[32:40], uint64(len(interpData)))
	le.PutUint64(p1[40:48], uint64(len(interpData)))
	le.PutUint64(p1[48:56], 1)

	if withGNUStack {
		flags := uint32(PF_R | PF_W)
		if gnuStackExec {
			flags |= uint32(PF_X)
		}
		p2 := buf[phoff+2*phdrSize : phoff+3*phdrSize]
		le.PutUint32(p2[0:4], uint32(PT_GNU_STACK))
		le.PutUint32(p2[4:8], flags)
		le.PutUint64(p2[48:56], 0x10)
	}

	copy(buf[interpOff:], interpData)
	copy(buf[textOff:], textData)
	copy(buf[shstrtabOff:], shstrtab)

	s1 := buf[shoff+shdrSize : shoff+2*shdrSize] // .interp
	le.PutUint32(s1[0:4], interpNameOff)
	le.PutUint32(s1[4:8], uint32(SHT_PROGBITS))
	le.PutUint64(s1[8:16], uint64(SHF_ALLOC))
	le.PutUint64(s1[16:24], loadBase+interpOff)
	le.PutUint64(s1[24:32], interpOff)
	le.PutUint64(s1[32:40], uint64(len(interpData)))
	le.PutUint64(s1[48:56], 1)

	s2 := buf[shoff+2*shdrSize : shoff+3*shdrSize] // .text
	le.PutUint32(s2[0:4], textNameOff)
	le.PutUint32(s2[4:8], uint32(SHT_PROGBITS))
	le.PutUint64(s2[8:16], uint64(SHF_ALLOC|SHF_EXECINSTR))
	le.PutUint64(s2[16:24], loadBase+textOff)
	le.PutUint64(s2[24:32], textOff)
	le.PutUint64(s2[32:40], uint64(len(textData)))
	le.PutUint64(s2[48:56], 16)

	s3 := buf[shoff+3*shdrSize : shoff+4*shdrSize] // .shstrtab
	le.PutUint32(s3[0:4], shstrtabNameOff)
	le.PutUint32(s3[4:8], uint32(SHT_STRTAB))
	le.PutUint64(s3[16:24], shstrtabOff)
	le.PutUint64(s3[24:32], shstrtabOff)
	le.PutUint64(s3[32:40], uint64(len(shstrtab)))
	le.PutUint64(s3[48:56], 1)

	return buf
}

// TestWriteLibraryStrategyReplacesSection exercises Write()'s ET_DYN path
// via an ordinary section replacement.
func TestWriteLibraryStrategyReplacesSection(t *testing.T) {
	raw := buildDynamicELF64(t, "libfoo.so", "", "")
	f, err := NewFile(raw)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.SetSoname("libnew.so.1"); err != nil {
		t.Fatalf("SetSoname: %v", err)
	}

	out, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := NewFile(out)
	if err != nil {
		t.Fatalf("re-parse of written file: %v", err)
	}
	soname, ok, err := f2.Soname()
	if err != nil || !ok || soname != "libnew.so.1" {
		t.Fatalf("Soname() after Write = %q, %v, %v", soname, ok, err)
	}
}

// TestWriteLibraryStrategyForcedRewriteNoReplacedSection covers the
// library-strategy analogue of the executable-strategy bug: a pending edit
// that never touches the replaced-sections store (ForceRewrite from
// appending a new PT_GNU_STACK). layoutLibrary's absorbSectionsBelow is
// already offset-based rather than store-based, so this must already pass.
func TestWriteLibraryStrategyForcedRewriteNoReplacedSection(t *testing.T) {
	raw := buildDynamicELF64(t, "libfoo.so", "", "")
	f, err := NewFile(raw)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.SetExecstack(true); err != nil {
		t.Fatalf("SetExecstack: %v", err)
	}
	if f.HaveReplacedSection(".dynamic") || f.HaveReplacedSection(".dynstr") {
		t.Fatal("SetExecstack should not have touched the replaced-sections store")
	}

	out, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := NewFile(out)
	if err != nil {
		t.Fatalf("re-parse of written file: %v", err)
	}
	if f2.PrintExecstack() != ExecstackExecutable {
		t.Fatalf("PrintExecstack() = %v, want executable", f2.PrintExecstack())
	}
}

// TestWriteExecutableStrategyReplacesInterp exercises Write()'s ET_EXEC
// path via an ordinary section replacement, checking that the PT_INTERP
// segment is resynced to the relocated .interp section.
func TestWriteExecutableStrategyReplacesInterp(t *testing.T) {
	raw := buildExecELF64(t, "/lib64/ld-linux-x86-64.so.2", false, false)
	f, err := NewFile(raw)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.SetInterpreter("/opt/custom/ld.so"); err != nil {
		t.Fatalf("SetInterpreter: %v", err)
	}

	out, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := NewFile(out)
	if err != nil {
		t.Fatalf("re-parse of written file: %v", err)
	}
	s, ok, err := f2.Interp()
	if err != nil || !ok || s != "/opt/custom/ld.so" {
		t.Fatalf("Interp() after Write = %q, %v, %v", s, ok, err)
	}

	sh := f2.Section(".interp")
	if sh == nil {
		t.Fatal(".interp section missing after Write")
	}
	var interpPhdr *ProgramHeader
	for _, p := range f2.Phdrs {
		if p.Type == PT_INTERP {
			interpPhdr = p
		}
	}
	if interpPhdr == nil {
		t.Fatal("PT_INTERP missing after Write")
	}
	if interpPhdr.Offset != sh.Offset || interpPhdr.Vaddr != sh.Addr || interpPhdr.Filesz != sh.Size {
		t.Fatalf("PT_INTERP out of sync with .interp: phdr=%+v sh.Offset=%d sh.Addr=%d sh.Size=%d",
			interpPhdr, sh.Offset, sh.Addr, sh.Size)
	}
}

// TestWriteExecutableStrategyForcedRewriteNoReplacedSection is the
// regression test for the bug where layoutExecutable assumed a non-empty
// replaced-sections store. SetOSABI only calls MarkChanged(), so Write()
// reaches layoutExecutable with lastReplaced == -1; before the fix this
// absorbed every section, zeroed startOffset/startAddr, and always failed
// with AddressSpaceUnderrunError.
func TestWriteExecutableStrategyForcedRewriteNoReplacedSection(t *testing.T) {
	raw := buildExecELF64(t, "/lib64/ld-linux-x86-64.so.2", false, false)
	f, err := NewFile(raw)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.SetOSABI("freebsd"); err != nil {
		t.Fatalf("SetOSABI: %v", err)
	}
	if !f.replaced.empty() {
		t.Fatal("SetOSABI should not have populated the replaced-sections store")
	}

	out, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := NewFile(out)
	if err != nil {
		t.Fatalf("re-parse of written file: %v", err)
	}
	if f2.OSABI() != OSABIFreeBSD {
		t.Fatalf("OSABI() after Write = %v, want OSABIFreeBSD", f2.OSABI())
	}
	s, ok, err := f2.Interp()
	if err != nil || !ok || s != "/lib64/ld-linux-x86-64.so.2" {
		t.Fatalf("Interp() after Write = %q, %v, %v, want unchanged interpreter", s, ok, err)
	}
}

// TestWriteExecutableStrategyToggleExistingExecstack covers the other
// MarkChanged()-only path the maintainer flagged: toggling an existing
// PT_GNU_STACK segment on an ET_EXEC file with nothing in the replaced
// store.
func TestWriteExecutableStrategyToggleExistingExecstack(t *testing.T) {
	raw := buildExecELF64(t, "/lib64/ld-linux-x86-64.so.2", true, false)
	f, err := NewFile(raw)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.SetExecstack(true); err != nil {
		t.Fatalf("SetExecstack: %v", err)
	}
	if !f.replaced.empty() {
		t.Fatal("toggling an existing PT_GNU_STACK should not populate the replaced-sections store")
	}

	out, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := NewFile(out)
	if err != nil {
		t.Fatalf("re-parse of written file: %v", err)
	}
	if f2.PrintExecstack() != ExecstackExecutable {
		t.Fatalf("PrintExecstack() = %v, want executable", f2.PrintExecstack())
	}
}

// TestWriteExecutableStrategyAppendsGNUStack covers the genuine
// ForceRewrite() path: no PT_GNU_STACK and no spare PT_NULL, so
// SetExecstack appends a brand-new program header and forces a layout
// pass with an empty replaced-sections store.
func TestWriteExecutableStrategyAppendsGNUStack(t *testing.T) {
	raw := buildExecELF64(t, "/lib64/ld-linux-x86-64.so.2", false, false)
	f, err := NewFile(raw)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.SetExecstack(false); err != nil {
		t.Fatalf("SetExecstack: %v", err)
	}
	if !f.replaced.empty() {
		t.Fatal("appending a new PT_GNU_STACK should not populate the replaced-sections store")
	}

	out, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := NewFile(out)
	if err != nil {
		t.Fatalf("re-parse of written file: %v", err)
	}
	if f2.PrintExecstack() != ExecstackProtected {
		t.Fatalf("PrintExecstack() = %v, want protected", f2.PrintExecstack())
	}
	s, ok, err := f2.Interp()
	if err != nil || !ok || s != "/lib64/ld-linux-x86-64.so.2" {
		t.Fatalf("Interp() after Write = %q, %v, %v, want unchanged interpreter", s, ok, err)
	}
}

// TestShiftFileSplitsStraddlingLoad pins down the split semantics:
// the straddled PT_LOAD keeps its tail at unchanged
// virtual addresses, and a new PT_LOAD(R|W) maps the head plus the
// inserted pages one shift lower, starting at file offset 0.
func TestShiftFileSplitsStraddlingLoad(t *testing.T) {
	const loadBase = 0x400000
	raw := buildExecELF64(t, "/lib64/ld-linux-x86-64.so.2", false, false)
	f, err := NewFile(raw)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	startOffset := f.Section(".text").Offset
	origLen := len(raw)
	contents := make([]byte, origLen)
	copy(contents, raw)

	const extraBytes = 32
	out := f.shiftFile(contents, 1, startOffset, extraBytes)

	shift := f.PageSize
	if uint64(len(out)) != uint64(origLen)+shift {
		t.Fatalf("file grew by %d, want %d", len(out)-origLen, shift)
	}

	var tail, head *ProgramHeader
	for _, p := range f.Phdrs {
		if p.Type != PT_LOAD {
			continue
		}
		if p.Offset == 0 {
			head = p
		} else {
			tail = p
		}
	}
	if tail == nil || head == nil {
		t.Fatalf("expected a split into head+tail PT_LOADs, got %+v", f.Phdrs)
	}

	if tail.Offset != startOffset+shift {
		t.Fatalf("tail offset = %#x, want %#x", tail.Offset, startOffset+shift)
	}
	if tail.Vaddr != loadBase+startOffset {
		t.Fatalf("tail vaddr = %#x, want %#x (unchanged virtual address)", tail.Vaddr, loadBase+startOffset)
	}
	if tail.Filesz != uint64(origLen)-startOffset {
		t.Fatalf("tail filesz = %d, want %d", tail.Filesz, uint64(origLen)-startOffset)
	}

	if head.Vaddr != loadBase-shift {
		t.Fatalf("head vaddr = %#x, want %#x (one shift below the old base)", head.Vaddr, loadBase-shift)
	}
	if head.Filesz != startOffset+extraBytes {
		t.Fatalf("head filesz = %d, want %d", head.Filesz, startOffset+extraBytes)
	}
	if head.Flags&PF_W == 0 || head.Flags&PF_R == 0 {
		t.Fatalf("head flags = %v, want R|W", head.Flags)
	}

	if f.Header.Phoff != 64 {
		t.Fatalf("e_phoff = %d, want sizeof(Ehdr)", f.Header.Phoff)
	}
	if f.Header.Shoff < startOffset+shift {
		t.Fatalf("e_shoff = %#x not shifted past the insertion point", f.Header.Shoff)
	}
	if f.Section(".text").Offset != startOffset+shift {
		t.Fatalf(".text offset = %#x, want %#x", f.Section(".text").Offset, startOffset+shift)
	}
}

// TestWriteResyncsDynamicStringTablePointers checks that a mutation that
// relocates .dynstr leaves DT_STRTAB/DT_STRSZ pointing at the section's
// new address and size in the written file, not the pre-relocation ones.
func TestWriteResyncsDynamicStringTablePointers(t *testing.T) {
	raw := buildDynamicELF64(t, "libfoo.so", "", "")
	f, err := NewFile(raw)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := f.SetSoname("libmuchlongername.so.9"); err != nil {
		t.Fatalf("SetSoname: %v", err)
	}

	out, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := NewFile(out)
	if err != nil {
		t.Fatalf("re-parse of written file: %v", err)
	}
	dynstr := f2.Section(".dynstr")
	if dynstr == nil {
		t.Fatal(".dynstr missing after Write")
	}
	entries, err := f2.Dynamic()
	if err != nil {
		t.Fatalf("Dynamic: %v", err)
	}
	strtab, ok := DynTagValue(entries, DT_STRTAB)
	if !ok || strtab != dynstr.Addr {
		t.Fatalf("DT_STRTAB = %#x, want .dynstr sh_addr %#x", strtab, dynstr.Addr)
	}
	strsz, ok := DynTagValue(entries, DT_STRSZ)
	if !ok || strsz != dynstr.Size {
		t.Fatalf("DT_STRSZ = %d, want .dynstr sh_size %d", strsz, dynstr.Size)
	}
}
