package elf

import (
	"fmt"
)

// File is an owned, resizable byte buffer plus the parsed view over it.
// The header and header tables are independent, owned copies, not pointer
// views into the raw buffer — every field is read/written through the
// endian adapter, and the buffer is only re-materialized on Write.
type File struct {
	Header FileHeader
	Phdrs  []*ProgramHeader
	Shdrs  []*SectionHeader

	end endian

	raw []byte // original file bytes, read-only after parse

	// oldIndex snapshots old section index -> section name at parse time.
	// It is the only way to rewrite st_shndx after sections are reordered
	//.
	oldIndex map[int]string

	replaced *replacedSections

	// isExecutable is true iff a PT_INTERP segment was present at parse
	// time; it selects the library-vs-executable layout strategy for
	// ET_DYN PIE executables.
	isExecutable bool

	// forceRewrite makes the layout engine run even with no pending
	// section edits, e.g. when execstack toggling appends a Phdr.
	forceRewrite bool

	NoSort   bool
	PageSize uint64

	changed bool
}

func (f *File) is64() bool { return f.Header.Class == Class64 }

// NewFile parses raw as an in-place-editable ELF image. raw is retained;
// callers must not mutate it afterward.
func NewFile(raw []byte) (*File, error) {
	h, en, err := parseFileHeader(raw)
	if err != nil {
		return nil, err
	}

	f := &File{Header: *h, end: en, raw: raw, replaced: newReplacedSections()}

	if err := f.parseProgramHeaders(); err != nil {
		return nil, err
	}
	if err := f.parseSectionHeaders(); err != nil {
		return nil, err
	}

	for _, p := range f.Phdrs {
		if p.Type == PT_INTERP {
			f.isExecutable = true
			break
		}
	}

	f.PageSize = f.Header.Machine.DefaultPageSize()

	f.oldIndex = make(map[int]string, len(f.Shdrs))
	for i, sh := range f.Shdrs {
		f.oldIndex[i] = sh.Name
	}

	return f, nil
}

func overflowsUint64(a, b uint64) bool {
	return a > ^uint64(0)-b
}

func (f *File) parseProgramHeaders() error {
	h := &f.Header
	if h.Phnum == 0 {
		return nil
	}
	entSize := h.phdrSize()
	if overflowsUint64(h.Phoff, uint64(h.Phnum)*entSize) {
		return &MalformedElfError{Reason: "program header table offset overflows"}
	}
	end := h.Phoff + uint64(h.Phnum)*entSize
	if end > uint64(len(f.raw)) {
		return &MalformedElfError{Reason: "program header table out of bounds"}
	}
	f.Phdrs = make([]*ProgramHeader, h.Phnum)
	for i := 0; i < int(h.Phnum); i++ {
		off := h.Phoff + uint64(i)*entSize
		f.Phdrs[i] = parseProgramHeader(f.raw[off:off+entSize], h.Class, f.end)
	}
	return nil
}

func (f *File) parseSectionHeaders() error {
	h := &f.Header
	entSize := h.shdrSize()
	if overflowsUint64(h.Shoff, uint64(h.Shnum)*entSize) {
		return &MalformedElfError{Reason: "section header table offset overflows"}
	}
	end := h.Shoff + uint64(h.Shnum)*entSize
	if end > uint64(len(f.raw)) {
		return &MalformedElfError{Reason: "section header table out of bounds"}
	}
	f.Shdrs = make([]*SectionHeader, h.Shnum)
	for i := 0; i < int(h.Shnum); i++ {
		off := h.Shoff + uint64(i)*entSize
		f.Shdrs[i] = parseSectionHeader(f.raw[off:off+entSize], h.Class, f.end)
		if f.Shdrs[i].Type != SHT_NOBITS {
			shEnd := f.Shdrs[i].Offset + f.Shdrs[i].Size
			if shEnd > uint64(len(f.raw)) || shEnd < f.Shdrs[i].Offset {
				return &MalformedElfError{Reason: fmt.Sprintf("section %d offset+size out of bounds", i)}
			}
		}
	}

	strtabSh := f.Shdrs[h.Shstrndx]
	if strtabSh.Size == 0 {
		return &MalformedElfError{Reason: ".shstrtab is empty"}
	}
	strtab := f.raw[strtabSh.Offset : strtabSh.Offset+strtabSh.Size]
	if strtab[len(strtab)-1] != 0 {
		return &MalformedElfError{Reason: ".shstrtab is not NUL-terminated"}
	}
	for _, sh := range f.Shdrs {
		if uint64(sh.nameIndex) >= uint64(len(strtab)) {
			return &MalformedElfError{Reason: "section name index out of range"}
		}
		sh.Name = cstring(strtab[sh.nameIndex:])
	}
	return nil
}

// Section returns the first section header with the given name, or nil.
func (f *File) Section(name string) *SectionHeader {
	for _, sh := range f.Shdrs {
		if sh.Name == name {
			return sh
		}
	}
	return nil
}

// sectionIndex returns the current slice index of the named section.
func (f *File) sectionIndex(name string) int {
	for i, sh := range f.Shdrs {
		if sh.Name == name {
			return i
		}
	}
	return -1
}

func (f *File) sectionData(sh *SectionHeader) ([]byte, error) {
	if sh.Type == SHT_NOBITS {
		return make([]byte, sh.Size), nil
	}
	end := sh.Offset + sh.Size
	if end > uint64(len(f.raw)) {
		return nil, &MalformedElfError{Reason: fmt.Sprintf("section %q out of bounds", sh.Name)}
	}
	out := make([]byte, sh.Size)
	copy(out, f.raw[sh.Offset:end])
	return out, nil
}

// SectionData returns the current contents of a section by name: its
// pending replacement if one exists, otherwise its original bytes.
func (f *File) SectionData(name string) ([]byte, error) {
	if f.replaced.have(name) {
		return f.replaced.get(name), nil
	}
	sh := f.Section(name)
	if sh == nil {
		return nil, &MissingSectionError{Name: name}
	}
	return f.sectionData(sh)
}

// ProgramHeadersOfType returns every program header of the given type.
func (f *File) ProgramHeadersOfType(t ProgType) []*ProgramHeader {
	var out []*ProgramHeader
	for _, p := range f.Phdrs {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// MarkChanged flags that the file must be rewritten even if the change
// doesn't touch the replaced-sections store (e.g. a header field patch).
func (f *File) MarkChanged() { f.changed = true }

// Changed reports whether any mutation (section replacement, in-place
// header patch, or forced rewrite) is pending.
func (f *File) Changed() bool {
	return f.changed || !f.replaced.empty() || f.forceRewrite
}

// ForceRewrite requests a full layout pass even if no section was
// replaced (e.g. adding a PT_GNU_STACK).
func (f *File) ForceRewrite() { f.forceRewrite = true }
