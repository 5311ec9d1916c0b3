package elf

import "math"

// dynTagSources maps a recognized .dynamic tag to the section whose
// header is now authoritative for its value. Pointer tags
// resolve to sh_addr, size tags to sh_size.
type dynTagSource struct {
	section string
	isSize  bool
}

var dynTagSources = map[DynTag]dynTagSource{
	DT_STRTAB:     {".dynstr", false},
	DT_STRSZ:      {".dynstr", true},
	DT_SYMTAB:     {".dynsym", false},
	DT_HASH:       {".hash", false},
	DT_GNU_HASH:   {".gnu.hash", false},
	DT_MIPS_XHASH: {".MIPS.xhash", false},
	DT_VERNEED:    {".gnu.version_r", false},
	DT_VERSYM:     {".gnu.version", false},
}

// jmprelSections / relSections / relaSections list, in priority order,
// the section names that back DT_JMPREL/DT_REL/DT_RELA respectively.
var jmprelSections = []string{".rel.plt", ".rela.plt", ".rela.IA_64.pltoff"}
var relSections = []string{".rel.dyn", ".rel.got"}
var relaSections = []string{".rela.dyn"}

// rewriteDynamic resyncs every recognized .dynamic tag from its backing
// section header, and sets DT_MIPS_RLD_MAP_REL to a PC-relative offset
// when a .rld_map section exists. It runs after the layout pass has
// placed every section, so it patches contents directly at .dynamic's
// final offset — the replaced-sections store has already been drained
// and writing through it would be lost.
func (f *File) rewriteDynamic(contents []byte) error {
	sh := f.Section(".dynamic")
	if sh == nil {
		return nil
	}
	end := sh.Offset + sh.Size
	if end < sh.Offset || end > uint64(len(contents)) {
		return &MalformedElfError{Reason: ".dynamic out of bounds after layout"}
	}
	data := contents[sh.Offset:end]
	entries := f.parseDynamic(data)

	for i := range entries {
		if src, ok := dynTagSources[entries[i].Tag]; ok {
			target := f.Section(src.section)
			if target == nil {
				continue
			}
			if src.isSize {
				entries[i].Val = target.Size
			} else {
				entries[i].Val = target.Addr
			}
			continue
		}

		switch entries[i].Tag {
		case DT_JMPREL:
			if v, ok := f.firstSectionAddr(jmprelSections); ok {
				entries[i].Val = v
			}
		case DT_REL:
			if v, ok := f.firstSectionAddr(relSections); ok {
				entries[i].Val = v
			}
		case DT_RELA:
			if v, ok := f.firstSectionAddr(relaSections); ok {
				entries[i].Val = v
			}
		case DT_MIPS_RLD_MAP_REL:
			rld := f.Section(".rld_map")
			if rld == nil {
				entries[i].Val = 0
				debugf(".rld_map absent, DT_MIPS_RLD_MAP_REL set to 0")
				continue
			}
			// PC-relative: the loader adds the address of the entry itself.
			entries[i].Val = rld.Addr - (sh.Addr + uint64(i*f.dynEntrySize()))
		}
	}

	copy(data, f.putDynamic(entries, len(data)))
	return nil
}

func (f *File) firstSectionAddr(names []string) (uint64, bool) {
	for _, n := range names {
		if sh := f.Section(n); sh != nil {
			return sh.Addr, true
		}
	}
	return 0, false
}

// rewriteHeaders performs the full cross-reference rewrite: PT_PHDR
// sync, program-header sort, section-header sort (with sh_link/sh_info and
// e_shstrndx remap), .dynamic rewrite, and symbol-table st_shndx/st_value
// rewrite. contents must already be large enough to hold the final header,
// program header table, and section header table at their planned offsets.
func (f *File) rewriteHeaders(contents []byte, phdrAddr uint64) error {
	for _, p := range f.Phdrs {
		if p.Type == PT_PHDR {
			p.Offset = f.Header.Phoff
			p.Vaddr = phdrAddr
			p.Paddr = phdrAddr
			p.Filesz = uint64(len(f.Phdrs)) * f.Header.phdrSize()
			p.Memsz = p.Filesz
		}
	}

	if !f.NoSort {
		sortProgramHeaders(f.Phdrs)
	}

	linkByName := make(map[string]string, len(f.Shdrs))
	infoIsIndex := make(map[string]bool, len(f.Shdrs))
	for _, sh := range f.Shdrs {
		if int(sh.Link) < len(f.Shdrs) {
			linkByName[sh.Name] = f.Shdrs[sh.Link].Name
		}
		if sh.Type == SHT_REL || sh.Type == SHT_RELA {
			if sh.Info > 0 && int(sh.Info) < len(f.Shdrs) {
				infoIsIndex[sh.Name] = true
			}
		}
	}
	infoByName := make(map[string]string, len(f.Shdrs))
	for _, sh := range f.Shdrs {
		if infoIsIndex[sh.Name] && int(sh.Info) < len(f.Shdrs) {
			infoByName[sh.Name] = f.Shdrs[sh.Info].Name
		}
	}

	var shstrtabOrigOffset uint64
	if int(f.Header.Shstrndx) < len(f.Shdrs) {
		shstrtabOrigOffset = f.Shdrs[f.Header.Shstrndx].origOffset
	}

	sorted, _ := sortSectionHeaders(f.Shdrs)
	f.Shdrs = sorted

	for i, sh := range f.Shdrs {
		if linkName, ok := linkByName[sh.Name]; ok {
			sh.Link = uint32(f.sectionIndex(linkName))
		}
		if infoName, ok := infoByName[sh.Name]; ok {
			idx := f.sectionIndex(infoName)
			if idx >= 0 {
				sh.Info = uint32(idx)
			}
		}
		if sh.origOffset == shstrtabOrigOffset {
			f.Header.Shstrndx = uint16(i)
		}
	}

	if err := f.rewriteDynamic(contents); err != nil {
		return err
	}
	if err := f.RewriteSymbolTables(contents); err != nil {
		return err
	}

	f.Header.Shnum = uint16(len(f.Shdrs))
	f.Header.Phnum = uint16(len(f.Phdrs))

	return f.serialize(contents)
}

// check32 verifies that every header field about to be serialized
// round-trips through the 32-bit wire format. The put routines truncate
// silently, so the check runs once here rather than at every field write.
func (f *File) check32() error {
	if f.is64() {
		return nil
	}
	fit := func(v uint64) bool { return v <= math.MaxUint32 }
	if !fit(f.Header.Entry) || !fit(f.Header.Phoff) || !fit(f.Header.Shoff) {
		return &ValueTruncationError{Value: f.Header.Shoff, Width: 4}
	}
	for _, p := range f.Phdrs {
		for _, v := range []uint64{p.Offset, p.Vaddr, p.Paddr, p.Filesz, p.Memsz, p.Align} {
			if !fit(v) {
				return &ValueTruncationError{Value: v, Width: 4}
			}
		}
	}
	for _, sh := range f.Shdrs {
		for _, v := range []uint64{uint64(sh.Flags), sh.Addr, sh.Offset, sh.Size, sh.Addralign, sh.Entsize} {
			if !fit(v) {
				return &ValueTruncationError{Value: v, Width: 4}
			}
		}
	}
	return nil
}

// serialize writes the current FileHeader, program header table, and
// section header table into contents at their recorded offsets.
func (f *File) serialize(contents []byte) error {
	if err := f.check32(); err != nil {
		return err
	}
	hsz := int(f.Header.hdrSize())
	if hsz > len(contents) {
		return &MalformedElfError{Reason: "file too small for ELF header"}
	}
	f.Header.put(contents[:hsz], f.end)

	phSize := int(f.Header.phdrSize())
	for i, p := range f.Phdrs {
		off := int(f.Header.Phoff) + i*phSize
		if off+phSize > len(contents) {
			return &MalformedElfError{Reason: "program header table write overruns file image"}
		}
		p.put(contents[off:off+phSize], f.Header.Class, f.end)
	}

	shSize := int(f.Header.shdrSize())
	for i, sh := range f.Shdrs {
		off := int(f.Header.Shoff) + i*shSize
		if off+shSize > len(contents) {
			return &MalformedElfError{Reason: "section header table write overruns file image"}
		}
		sh.put(contents[off:off+shSize], f.Header.Class, f.end)
	}
	return nil
}
