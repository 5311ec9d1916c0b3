package elf

// AddNeeded appends a DT_NEEDED entry for each name not already
// present, deduplicating against both the existing DT_NEEDED set and
// repeats within names itself.
func (f *File) AddNeeded(names []string) error {
	entries, err := f.Dynamic()
	if err != nil {
		return err
	}
	existing := map[string]bool{}
	for _, d := range entries {
		if d.Tag == DT_NEEDED {
			s, err := f.stringAtDynstrOffset(d.Val)
			if err != nil {
				return err
			}
			existing[s] = true
		}
	}

	changed := false
	for _, name := range names {
		if existing[name] {
			continue
		}
		existing[name] = true
		off, err := f.appendDynstr(name)
		if err != nil {
			return err
		}
		if err := f.GrowDynamic(DT_NEEDED, uint64(off)); err != nil {
			return err
		}
		entries, err = f.Dynamic()
		if err != nil {
			return err
		}
		changed = true
	}
	if changed {
		f.MarkChanged()
	}
	return nil
}

// appendDynstr appends s (deduplicated against the section's current
// contents) to .dynstr and returns its offset.
func (f *File) appendDynstr(s string) (int, error) {
	strtab, err := f.SectionData(".dynstr")
	if err != nil {
		return 0, err
	}
	if off, ok := findString(strtab, s); ok {
		return off, nil
	}
	grown, off := appendString(strtab, s)
	buf, err := f.ReplaceSection(".dynstr", len(grown))
	if err != nil {
		return 0, err
	}
	copy(buf, grown)
	return off, nil
}

// RemoveNeeded drops every DT_NEEDED entry whose name is in names.
func (f *File) RemoveNeeded(names []string) error {
	drop := map[string]bool{}
	for _, n := range names {
		drop[n] = true
	}
	entries, err := f.Dynamic()
	if err != nil {
		return err
	}
	out := entries[:0:0]
	removed := false
	for _, d := range entries {
		if d.Tag == DT_NEEDED {
			s, err := f.stringAtDynstrOffset(d.Val)
			if err != nil {
				return err
			}
			if drop[s] {
				removed = true
				continue
			}
		}
		out = append(out, d)
	}
	if !removed {
		return nil
	}
	for len(out) < len(entries) {
		out = append(out, Dyn{Tag: DT_NULL})
	}
	if err := f.SetDynamic(out); err != nil {
		return err
	}
	f.MarkChanged()
	return nil
}

// ReplaceNeeded renames DT_NEEDED entries per the old->new map, and
// rewrites every Elf_Verneed.vn_file in .gnu.version_r that names an old
// filename still using symbol versions.
func (f *File) ReplaceNeeded(renames map[string]string) error {
	entries, err := f.Dynamic()
	if err != nil {
		return err
	}
	changed := false
	for i, d := range entries {
		if d.Tag != DT_NEEDED {
			continue
		}
		old, err := f.stringAtDynstrOffset(d.Val)
		if err != nil {
			return err
		}
		newName, ok := renames[old]
		if !ok || newName == old {
			continue
		}
		off, err := f.appendDynstr(newName)
		if err != nil {
			return err
		}
		entries[i].Val = uint64(off)
		changed = true

		if err := f.renameVerneedFile(old, newName); err != nil {
			return err
		}
	}
	if !changed {
		return nil
	}
	if err := f.SetDynamic(entries); err != nil {
		return err
	}
	f.MarkChanged()
	return nil
}

// renameVerneedFile rewrites every Elf_Verneed.vn_file in
// .gnu.version_r equal to old to newName, using the section's own
// sh_link to locate its string table (not necessarily .dynstr).
func (f *File) renameVerneedFile(old, newName string) error {
	sh := f.Section(".gnu.version_r")
	if sh == nil {
		return nil
	}
	data, err := f.SectionData(".gnu.version_r")
	if err != nil {
		return err
	}
	if int(sh.Link) >= len(f.Shdrs) {
		return &MalformedElfError{Reason: ".gnu.version_r sh_link out of range"}
	}
	strtabName := f.Shdrs[sh.Link].Name
	strtab, err := f.SectionData(strtabName)
	if err != nil {
		return err
	}

	touched := false
	off := 0
	for off+16 <= len(data) {
		vnFile := f.end.Uint32(data[off+4 : off+8])
		vnNext := f.end.Uint32(data[off+12 : off+16])
		if int(vnFile) < len(strtab) && cstring(strtab[vnFile:]) == old {
			newStrtab, newOff := appendString(strtab, newName)
			if len(newStrtab) != len(strtab) {
				buf, err := f.ReplaceSection(strtabName, len(newStrtab))
				if err != nil {
					return err
				}
				copy(buf, newStrtab)
				strtab = newStrtab
			}
			buf, err := f.ReplaceSection(".gnu.version_r", len(data))
			if err != nil {
				return err
			}
			copy(buf, data)
			f.end.PutUint32(buf[off+4:off+8], uint32(newOff))
			data = buf
			touched = true
		}
		if vnNext == 0 {
			break
		}
		off += int(vnNext)
	}
	if touched {
		f.MarkChanged()
	}
	return nil
}

// Needed returns the current DT_NEEDED list in order.
func (f *File) Needed() ([]string, error) {
	return f.neededLibraries()
}
