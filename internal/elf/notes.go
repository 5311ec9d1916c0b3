package elf

// normalizeNoteSegments splits any PT_NOTE that spans more than one
// SHT_NOTE section into one PT_NOTE per section, so writeReplacedSections
// can later sync each note section to its own segment.
// It only runs when at least one replaced section is SHT_NOTE.
func (f *File) normalizeNoteSegments() error {
	anyNote := false
	for _, name := range f.replaced.order {
		if sh := f.Section(name); sh != nil && sh.Type == SHT_NOTE {
			anyNote = true
			break
		}
	}
	if !anyNote {
		return nil
	}

	var noteSecs []*SectionHeader
	for _, sh := range f.Shdrs {
		if sh.Type == SHT_NOTE {
			noteSecs = append(noteSecs, sh)
		}
	}
	if len(noteSecs) == 0 {
		return nil
	}

	var result []*ProgramHeader
	for _, p := range f.Phdrs {
		if p.Type != PT_NOTE {
			result = append(result, p)
			continue
		}
		if p.Filesz == 0 {
			result = append(result, p)
			continue
		}

		var covered []*SectionHeader
		for _, sh := range noteSecs {
			if sh.Offset >= p.Offset && sh.Offset < p.Offset+p.Filesz {
				covered = append(covered, sh)
			}
		}
		if len(covered) == 0 {
			result = append(result, p)
			continue
		}

		cursor := p.Offset
		first := true
		for _, sh := range covered {
			align := sh.Addralign
			if align == 0 {
				align = 1
			}
			aligned := RoundUp(cursor, align)
			if aligned != sh.Offset {
				return &UnsupportedNoteLayoutError{Detail: "gap or partial overlap between PT_NOTE and SHT_NOTE sections"}
			}
			np := &ProgramHeader{
				Type:   PT_NOTE,
				Flags:  p.Flags,
				Offset: sh.Offset,
				Vaddr:  sh.Addr,
				Paddr:  sh.Addr,
				Filesz: sh.Size,
				Memsz:  sh.Size,
				Align:  align,
			}
			if first {
				*p = *np
				result = append(result, p)
				first = false
			} else {
				result = append(result, np)
			}
			cursor = sh.Offset + sh.Size
		}
		if cursor > p.Offset+p.Filesz {
			return &UnsupportedNoteLayoutError{Detail: "note sections exceed their PT_NOTE's extent"}
		}
	}

	f.Phdrs = result
	f.Header.Phnum = uint16(len(result))
	return nil
}
