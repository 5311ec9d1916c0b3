package elf

// layoutLibrary implements the ET_DYN ("library") strategy: every pending
// edit is appended past the end of the file under one new PT_LOAD, or
// under the final PT_LOAD when that segment can be extended to cover it.
func (f *File) layoutLibrary() ([]byte, error) {
	maxAlign := f.maxSegmentAlign()

	var startPage uint64
	for _, p := range f.Phdrs {
		if p.Type != PT_LOAD {
			continue
		}
		end := RoundUp(p.Vaddr+p.Memsz, maxAlign)
		if end > startPage {
			startPage = end
		}
	}
	startPage = RoundUp(startPage, maxAlign)
	firstPage := f.phdrFirstPage()

	noteCount := f.noteSectionCount()
	phtSize := f.Header.hdrSize() + uint64(int(f.Header.Phnum)+noteCount+1)*f.Header.phdrSize()
	if err := f.absorbSectionsBelow(phtSize); err != nil {
		return nil, err
	}

	moveSHT := f.Header.Shoff <= phtSize

	neededSpace := f.replacedSpaceNeeded()
	if moveSHT {
		neededSpace += RoundUp(uint64(f.Header.Shnum)*f.Header.shdrSize(), sectionAlignment)
	}

	fileSize := uint64(len(f.raw))
	startOffset := RoundUp(fileSize, f.PageSize)

	contents := make([]byte, int(startOffset)+int(neededSpace)+1)
	copy(contents, f.raw)

	if f.isExecutable && startOffset > startPage {
		startPage = startOffset
	}

	// Extend the final PT_LOAD instead of appending a new one when it is
	// writable, aligned the same way, ends exactly at startOffset, and its
	// mapping puts startOffset at startPage.
	var lastLoad *ProgramHeader
	for _, p := range f.Phdrs {
		if p.Type == PT_LOAD {
			lastLoad = p
		}
	}
	extended := false
	if lastLoad != nil && lastLoad.Flags&PF_W != 0 && lastLoad.Align == f.PageSize &&
		RoundUp(lastLoad.Offset+lastLoad.Filesz, f.PageSize) == startOffset &&
		lastLoad.Vaddr+(startOffset-lastLoad.Offset) == startPage {
		lastLoad.Filesz = startOffset + neededSpace - lastLoad.Offset
		lastLoad.Memsz = lastLoad.Filesz
		extended = true
	}
	if !extended {
		f.Phdrs = append(f.Phdrs, &ProgramHeader{
			Type:   PT_LOAD,
			Flags:  ProgFlag(PF_R | PF_W),
			Offset: startOffset,
			Vaddr:  startPage,
			Paddr:  startPage,
			Filesz: neededSpace,
			Memsz:  neededSpace,
			Align:  f.PageSize,
		})
		f.Header.Phnum = uint16(len(f.Phdrs))
	}

	if err := f.normalizeNoteSegments(); err != nil {
		return nil, err
	}

	curOff := startOffset
	if moveSHT {
		f.Header.Shoff = curOff
		curOff += RoundUp(uint64(f.Header.Shnum)*f.Header.shdrSize(), sectionAlignment)
	}

	curOff, err := f.writeReplacedSections(contents, curOff, startOffset, startPage, sectionAlignment)
	if err != nil {
		return nil, err
	}
	_ = curOff

	if err := f.rewriteHeaders(contents, firstPage+f.Header.Phoff); err != nil {
		return nil, err
	}
	return contents, nil
}
