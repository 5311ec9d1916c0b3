package elf

// shiftFile inserts extraPages*pageSize zero bytes at startOffset into
// contents, bumping every header whose file offset is >= startOffset.
// The PT_LOAD that straddles the insertion point is split: it keeps
// mapping its tail (past startOffset) at the same virtual addresses,
// while a fresh PT_LOAD(R|W) starting at file offset 0 maps the head
// plus the inserted bytes one shift lower in virtual address — that new
// segment is where the rewritten header tables and replaced sections
// will live.
func (f *File) shiftFile(contents []byte, extraPages int, startOffset uint64, extraBytes uint64) []byte {
	shift := uint64(extraPages) * f.PageSize

	grown := make([]byte, len(contents)+int(shift))
	copy(grown, contents[:startOffset])
	copy(grown[startOffset+shift:], contents[startOffset:])

	for _, sh := range f.Shdrs {
		if sh.Offset >= startOffset {
			sh.Offset += shift
		}
	}

	var splitSeg *ProgramHeader
	var splitShift uint64
	for _, p := range f.Phdrs {
		straddles := p.Type == PT_LOAD && p.Offset <= startOffset && startOffset < p.Offset+p.Filesz
		if straddles {
			splitSeg = p
			splitShift = startOffset - p.Offset

			p.Offset = startOffset
			p.Vaddr += splitShift
			p.Paddr += splitShift
			p.Filesz -= splitShift
			p.Memsz -= splitShift
		}
		if p.Offset >= startOffset {
			p.Offset += shift
		}
	}

	if splitSeg != nil {
		f.Phdrs = append(f.Phdrs, &ProgramHeader{
			Type:   PT_LOAD,
			Flags:  ProgFlag(PF_R | PF_W),
			Offset: 0,
			Vaddr:  splitSeg.Vaddr - splitShift - shift,
			Paddr:  splitSeg.Paddr - splitShift - shift,
			Filesz: splitShift + extraBytes,
			Memsz:  splitShift + extraBytes,
			Align:  f.PageSize,
		})
		f.Header.Phnum = uint16(len(f.Phdrs))
	}

	f.Header.Phoff = f.Header.hdrSize()
	if f.Header.Shoff >= startOffset {
		f.Header.Shoff += shift
	}

	return grown
}
