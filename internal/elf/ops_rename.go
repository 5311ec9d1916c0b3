package elf

// RenameDynamicSymbols appends new names to .dynstr, repoints the
// matching Elf_Sym.st_name, then rebuilds both hash tables for the
// renamed subset. renames maps old exported name to new
// name; names not found in .dynsym are silently ignored, matching a
// map file that may list names a given binary has trimmed.
func (f *File) RenameDynamicSymbols(renames map[string]string) error {
	if len(renames) == 0 {
		return nil
	}
	dynsymData, err := f.SectionData(".dynsym")
	if err != nil {
		return err
	}
	syms := f.parseSymtab(dynsymData)

	strtab, err := f.SectionData(".dynstr")
	if err != nil {
		return err
	}

	names := make([]string, len(syms))
	for i, s := range syms {
		if int(s.Name) < len(strtab) {
			names[i] = cstring(strtab[s.Name:])
		}
	}

	touched := false
	for i := range syms {
		newName, ok := renames[names[i]]
		if !ok || newName == names[i] {
			continue
		}
		grown, off := appendString(strtab, newName)
		if len(grown) != len(strtab) {
			buf, err := f.ReplaceSection(".dynstr", len(grown))
			if err != nil {
				return err
			}
			copy(buf, grown)
			strtab = grown
		}
		syms[i].Name = uint32(off)
		names[i] = newName
		touched = true
	}
	if !touched {
		return nil
	}

	buf, err := f.ReplaceSection(".dynsym", len(dynsymData))
	if err != nil {
		return err
	}
	copy(buf, f.putSymtab(syms))

	if err := f.rebuildHashTables(names); err != nil {
		return err
	}
	f.MarkChanged()
	return nil
}

// rebuildHashTables regenerates .gnu.hash and .hash against the current
// dynsym name list, permuting dynsym/versym entries covered by the GNU
// hash table and propagating that permutation into every relocation's
// symbol index.
func (f *File) rebuildHashTables(names []string) error {
	if sh := f.Section(".gnu.hash"); sh != nil {
		data, err := f.SectionData(".gnu.hash")
		if err != nil {
			return err
		}
		buf, err := f.ReplaceSection(".gnu.hash", len(data))
		if err != nil {
			return err
		}
		copy(buf, data)

		perm, err := f.rebuildGNUHash(buf, names)
		if err != nil {
			return err
		}
		if perm != nil {
			if err := f.applyDynsymPermutation(perm, names); err != nil {
				return err
			}
		}
	}

	if sh := f.Section(".hash"); sh != nil {
		data, err := f.SectionData(".hash")
		if err != nil {
			return err
		}
		buf, err := f.ReplaceSection(".hash", len(data))
		if err != nil {
			return err
		}
		copy(buf, data)
		if err := f.rebuildSysVHash(buf, names); err != nil {
			return err
		}
	}
	return nil
}

// applyDynsymPermutation reorders the covered tail of .dynsym (and
// .gnu.version, if present) per perm (new index i -> old index
// perm[i], relative to the covered range's start), then remaps every
// relocation symbol index through the resulting old->new map.
func (f *File) applyDynsymPermutation(perm []int, names []string) error {
	dynsymData, err := f.SectionData(".dynsym")
	if err != nil {
		return err
	}
	syms := f.parseSymtab(dynsymData)

	start := len(syms) - len(perm)
	if start < 0 {
		return &MalformedElfError{Reason: "gnu hash covers more symbols than .dynsym holds"}
	}

	oldToNew := make(map[int]int, len(perm))
	newSyms := make([]Sym, len(syms))
	copy(newSyms, syms[:start])
	for i, oldIdx := range perm {
		newSyms[start+i] = syms[oldIdx]
		oldToNew[oldIdx] = start + i
	}
	for i := 0; i < start; i++ {
		oldToNew[i] = i
	}

	// Keep names in step with the new .dynsym order so the SysV .hash
	// rebuild that follows indexes the permuted symbols.
	reordered := make([]string, len(perm))
	for i, oldIdx := range perm {
		reordered[i] = names[oldIdx]
	}
	copy(names[start:], reordered)

	buf, err := f.ReplaceSection(".dynsym", len(dynsymData))
	if err != nil {
		return err
	}
	copy(buf, f.putSymtab(newSyms))

	if sh := f.Section(".gnu.version"); sh != nil {
		data, err := f.SectionData(".gnu.version")
		if err != nil {
			return err
		}
		if len(data) >= len(syms)*2 {
			out := make([]byte, len(data))
			copy(out, data[:start*2])
			for i, oldIdx := range perm {
				copy(out[(start+i)*2:(start+i)*2+2], data[oldIdx*2:oldIdx*2+2])
			}
			vbuf, err := f.ReplaceSection(".gnu.version", len(out))
			if err != nil {
				return err
			}
			copy(vbuf, out)
		}
	}

	return f.remapRelocationSymbols(oldToNew)
}
