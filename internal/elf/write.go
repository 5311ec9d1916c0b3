package elf

// sentinelByte overwrites the original bytes of every replaced section so
// no stale content is reachable through a leftover address.
const sentinelByte = 'Z'

// sectionSyncTargets names sections whose matching program header must be
// re-synced to the section's new offset/address/size after a copy.
var sectionSyncTargets = map[string]ProgType{
	".interp":            PT_INTERP,
	".dynamic":           PT_DYNAMIC,
	".MIPS.abiflags":     PT_MIPS_ABIFLAGS,
	".note.gnu.property": PT_GNU_PROPERTY,
}

// writeReplacedSections blanks every replaced section's original bytes
// with a sentinel, then copies each replacement into contents starting at
// curOff (in ascending sh_offset order), updating sh_offset/sh_addr/
// sh_size/sh_addralign and syncing any program header that tracks the
// section by type. It returns the advanced curOff.
func (f *File) writeReplacedSections(contents []byte, curOff, startOffset, startAddr uint64, sectionAlignment uint64) (uint64, error) {
	for _, name := range f.replaced.order {
		sh := f.Section(name)
		if sh == nil || sh.Type == SHT_NOBITS {
			continue
		}
		if sh.Offset+sh.Size > uint64(len(contents)) {
			continue
		}
		for i := sh.Offset; i < sh.Offset+sh.Size; i++ {
			contents[i] = sentinelByte
		}
	}

	var plan []replPlan
	for _, name := range f.replaced.order {
		sh := f.Section(name)
		if sh == nil {
			continue
		}
		plan = append(plan, replPlan{sh: sh, data: f.replaced.get(name)})
	}
	sortPlannedByOffset(plan)

	syncedNotes := make(map[*ProgramHeader]bool)
	for _, p := range plan {
		sh := p.sh
		data := p.data
		align := uint64(sectionAlignment)
		if sh.Type == SHT_NOTE {
			align = sh.Addralign
			if align == 0 {
				align = 1
			}
		}

		origOffset, origSize := sh.Offset, sh.Size

		sh.Offset = curOff
		sh.Addr = startAddr + (curOff - startOffset)
		sh.Size = uint64(len(data))
		sh.Addralign = align

		if int(curOff)+len(data) > len(contents) {
			return 0, &MalformedElfError{Reason: "replaced section write overruns file image"}
		}
		copy(contents[curOff:], data)

		if pt, ok := sectionSyncTargets[sh.Name]; ok {
			for _, p2 := range f.Phdrs {
				if p2.Type == pt {
					p2.Offset = sh.Offset
					p2.Vaddr = sh.Addr
					p2.Paddr = sh.Addr
					p2.Filesz = sh.Size
					p2.Memsz = sh.Size
				}
			}
		} else if sh.Type == SHT_NOTE {
			// Sync at most one still-unsynced PT_NOTE that exactly matches
			// the section's original range; a segment that overlaps the
			// range without matching it means normalizeNoteSegments could
			// not have produced this layout.
			synced := false
			for _, p2 := range f.Phdrs {
				if p2.Type != PT_NOTE || syncedNotes[p2] {
					continue
				}
				if p2.Offset == origOffset && p2.Filesz == origSize {
					p2.Offset = sh.Offset
					p2.Vaddr = sh.Addr
					p2.Paddr = sh.Addr
					p2.Filesz = sh.Size
					p2.Memsz = sh.Size
					syncedNotes[p2] = true
					synced = true
					break
				}
			}
			if !synced {
				for _, p2 := range f.Phdrs {
					if p2.Type != PT_NOTE || syncedNotes[p2] || p2.Filesz == 0 {
						continue
					}
					if p2.Offset < origOffset+origSize && origOffset < p2.Offset+p2.Filesz {
						return 0, &UnsupportedNoteLayoutError{Detail: "PT_NOTE partially overlaps a replaced SHT_NOTE section"}
					}
				}
			}
		}

		curOff += RoundUp(uint64(len(data)), align)
	}

	return curOff, nil
}

// replPlan pairs a replaced section's header with its pending bytes,
// ready to be written in ascending-offset order.
type replPlan struct {
	sh   *SectionHeader
	data []byte
}

func sortPlannedByOffset(plan []replPlan) {
	for i := 1; i < len(plan); i++ {
		for j := i; j > 0 && plan[j].sh.Offset < plan[j-1].sh.Offset; j-- {
			plan[j], plan[j-1] = plan[j-1], plan[j]
		}
	}
}
