package elf

// layoutExecutable implements the ET_EXEC strategy: absorb a contiguous
// prefix of sections up to the first non-.interp SHT_PROGBITS boundary
// (or the section after .dynstr), then rewrite that whole prefix into the
// slot it vacated, growing it downward in virtual address via shiftFile
// when the replacement doesn't fit.
func (f *File) layoutExecutable() ([]byte, error) {
	sorted, _ := sortSectionHeaders(f.Shdrs)
	f.Shdrs = sorted

	lastReplaced := -1
	for i, sh := range f.Shdrs {
		if f.replaced.have(sh.Name) {
			lastReplaced = i
		}
	}

	// A rewrite forced by a field-only mutation (SetOSABI, SetExecstack
	// toggling an existing PT_GNU_STACK or appending a new one) leaves the
	// replaced-sections store empty. Absorb the first named section so the
	// boundary scan below has something to bound, mirroring how
	// layout_library.go's absorbSectionsBelow stays store-agnostic.
	if lastReplaced == -1 {
		for i := 1; i < len(f.Shdrs); i++ {
			sh := f.Shdrs[i]
			if sh.Name == "" {
				continue
			}
			data, err := f.sectionData(sh)
			if err != nil {
				return nil, err
			}
			buf, err := f.ReplaceSection(sh.Name, len(data))
			if err != nil {
				return nil, err
			}
			copy(buf, data)
			lastReplaced = i
			break
		}
	}

	var startOffset, startAddr uint64
	prevName := ""
	stopIdx := len(f.Shdrs)
	for i := 1; i <= lastReplaced && i < len(f.Shdrs); i++ {
		sh := f.Shdrs[i]
		stop := (sh.Type == SHT_PROGBITS && sh.Name != ".interp") || prevName == ".dynstr"
		if stop {
			startOffset = sh.Offset
			startAddr = sh.Addr
			stopIdx = i
			break
		}
		prevName = sh.Name
	}
	if stopIdx == len(f.Shdrs) && lastReplaced >= 0 && lastReplaced+1 < len(f.Shdrs) {
		sh := f.Shdrs[lastReplaced+1]
		startOffset = sh.Offset
		startAddr = sh.Addr
		stopIdx = lastReplaced + 1
	}

	for i := 1; i < stopIdx; i++ {
		sh := f.Shdrs[i]
		if f.replaced.have(sh.Name) {
			continue
		}
		if sh.Name == "" {
			continue
		}
		data, err := f.sectionData(sh)
		if err != nil {
			return nil, err
		}
		buf, err := f.ReplaceSection(sh.Name, len(data))
		if err != nil {
			return nil, err
		}
		copy(buf, data)
	}

	if startOffset%f.PageSize != startAddr%f.PageSize {
		return nil, &MalformedElfError{Reason: "load segment offset/address misaligned relative to page size"}
	}
	firstPage := startAddr - startOffset

	contents := make([]byte, len(f.raw))
	copy(contents, f.raw)

	if f.Header.Shoff < startOffset {
		moved := RoundUp(uint64(len(contents)), f.PageSize)
		shtSize := uint64(f.Header.Shnum) * f.Header.shdrSize()
		grown := make([]byte, int(moved+shtSize))
		copy(grown, contents)
		contents = grown
		f.Header.Shoff = moved
	}

	if err := f.normalizeNoteSegments(); err != nil {
		return nil, err
	}

	neededSpace := f.Header.hdrSize() + uint64(f.Header.Phnum)*f.Header.phdrSize() + f.replacedSpaceNeeded()
	curOff := f.Header.hdrSize() + uint64(f.Header.Phnum)*f.Header.phdrSize()

	if neededSpace > startOffset {
		neededSpace += f.Header.phdrSize()
		extra := neededSpace - startOffset
		neededPages := 1 + (extra+f.PageSize-1)/f.PageSize
		if neededPages*f.PageSize > firstPage {
			return nil, &AddressSpaceUnderrunError{Needed: neededPages, Available: firstPage / f.PageSize}
		}
		contents = f.shiftFile(contents, int(neededPages), startOffset, neededSpace-startOffset)
		startOffset += neededPages * f.PageSize
		firstPage -= neededPages * f.PageSize
		// shiftFile added a program header, so the table is one entry
		// longer than when curOff was first computed.
		curOff = f.Header.hdrSize() + uint64(f.Header.Phnum)*f.Header.phdrSize()
	} else {
		for _, p := range f.Phdrs {
			if p.Type == PT_LOAD && p.Offset <= curOff && curOff < p.Offset+p.Filesz && p.Filesz < neededSpace {
				p.Filesz = neededSpace
				p.Memsz = neededSpace
				break
			}
		}
	}

	for i := curOff; i < startOffset && int(i) < len(contents); i++ {
		contents[i] = 0
	}

	finalOff, err := f.writeReplacedSections(contents, curOff, startOffset, startAddr, sectionAlignment)
	if err != nil {
		return nil, err
	}
	if finalOff != neededSpace && finalOff != startOffset {
		debugf("executable layout: curOff=%d neededSpace=%d startOffset=%d mismatch", finalOff, neededSpace, startOffset)
	}

	if err := f.rewriteHeaders(contents, firstPage+f.Header.Phoff); err != nil {
		return nil, err
	}
	return contents, nil
}
