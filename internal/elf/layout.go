package elf

// sectionAlignment is the alignment every relocated section is promoted
// to by the layout engine; one conservative alignment for appended data
// rather than preserving each section's original (often looser)
// sh_addralign. SHT_NOTE sections are the exception: they keep their own
// sh_addralign so their internal layout stays valid.
const sectionAlignment = 16

// Write runs the layout engine if any edit is pending and returns the
// final file image. With nothing pending it returns a copy of the
// original bytes untouched.
func (f *File) Write() ([]byte, error) {
	if !f.Changed() {
		out := make([]byte, len(f.raw))
		copy(out, f.raw)
		return out, nil
	}

	var (
		contents []byte
		err      error
	)
	switch f.Header.Type {
	case ET_DYN:
		contents, err = f.layoutLibrary()
	case ET_EXEC:
		contents, err = f.layoutExecutable()
	default:
		return nil, &MalformedElfError{Reason: "unsupported e_type for in-place editing"}
	}
	if err != nil {
		return nil, err
	}

	f.replaced.clear()
	f.changed = false
	f.forceRewrite = false
	return contents, nil
}

// maxSegmentAlign returns the largest p_align among all existing program
// headers (of any type), bounded below by the page size.
func (f *File) maxSegmentAlign() uint64 {
	m := f.PageSize
	for _, p := range f.Phdrs {
		if p.Align > m {
			m = p.Align
		}
	}
	return m
}

// phdrFirstPage returns the PT_PHDR segment's p_vaddr - p_offset ("firstPage"
// in spec terms), or 0 if no PT_PHDR is present.
func (f *File) phdrFirstPage() uint64 {
	for _, p := range f.Phdrs {
		if p.Type == PT_PHDR {
			return p.Vaddr - p.Offset
		}
	}
	return 0
}

// noteSectionCount upper-bounds the extra program headers that
// normalizeNoteSegments may introduce.
func (f *File) noteSectionCount() int {
	n := 0
	for _, sh := range f.Shdrs {
		if sh.Type == SHT_NOTE {
			n++
		}
	}
	return n
}

// absorbSectionsBelow adds every not-yet-replaced section whose file
// offset is <= limit into the replaced-sections store, so a growing
// program/section header table can never overwrite live bytes.
func (f *File) absorbSectionsBelow(limit uint64) error {
	type withOff struct {
		sh *SectionHeader
	}
	var ordered []withOff
	for _, sh := range f.Shdrs {
		if sh.Offset <= limit {
			ordered = append(ordered, withOff{sh})
		}
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].sh.Offset < ordered[j-1].sh.Offset; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	for _, o := range ordered {
		if f.replaced.have(o.sh.Name) {
			continue
		}
		if o.sh.Name == "" {
			continue
		}
		if _, err := f.ReplaceSection(o.sh.Name, int(o.sh.Size)); err != nil {
			return err
		}
	}
	return nil
}

// replacedSpaceNeeded sums roundUp(size, sectionAlignment) over every
// pending replaced section.
func (f *File) replacedSpaceNeeded() uint64 {
	var total uint64
	for _, name := range f.replaced.order {
		align := uint64(sectionAlignment)
		if sh := f.Section(name); sh != nil && sh.Type == SHT_NOTE && sh.Addralign != 0 {
			align = sh.Addralign
		}
		total += RoundUp(uint64(len(f.replaced.get(name))), align)
	}
	return total
}
