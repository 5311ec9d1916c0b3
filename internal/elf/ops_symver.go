package elf

// ClearSymbolVersions sets the Elf_Versym entry of each named dynamic
// symbol to 1 (VER_NDX_GLOBAL), dropping its version requirement without
// touching .gnu.version_r itself.
func (f *File) ClearSymbolVersions(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	versh := f.Section(".gnu.version")
	if versh == nil {
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

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	versData, err := f.SectionData(".gnu.version")
	if err != nil {
		return err
	}

	const verNdxGlobal = 1
	changed := false
	buf := append([]byte(nil), versData...)
	for i, s := range syms {
		if int(s.Name) >= len(strtab) {
			continue
		}
		name := cstring(strtab[s.Name:])
		if !want[name] {
			continue
		}
		off := i * 2
		if off+2 > len(buf) {
			continue
		}
		if f.end.Uint16(buf[off:off+2]) != verNdxGlobal {
			f.end.PutUint16(buf[off:off+2], verNdxGlobal)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	out, err := f.ReplaceSection(".gnu.version", len(buf))
	if err != nil {
		return err
	}
	copy(out, buf)
	f.MarkChanged()
	return nil
}
