package elf

// Sym is a parsed Elf_Sym entry. Value and Size are always widened to
// uint64 regardless of class, matching the rest of the package's
// natural-word convention.
type Sym struct {
	Name  uint32
	Info  byte
	Other byte
	Shndx uint16
	Value uint64
	Size  uint64
}

func (s Sym) Type() byte { return s.Info & 0xf }

func (f *File) symEntrySize() int {
	if f.is64() {
		return SymSize64
	}
	return SymSize32
}

// parseSymtab decodes a raw SHT_SYMTAB/SHT_DYNSYM section image.
func (f *File) parseSymtab(data []byte) []Sym {
	size := f.symEntrySize()
	n := len(data) / size
	out := make([]Sym, 0, n)
	for i := 0; i < n; i++ {
		b := data[i*size : (i+1)*size]
		var s Sym
		if f.is64() {
			s.Name = f.end.Uint32(b[0:4])
			s.Info = b[4]
			s.Other = b[5]
			s.Shndx = f.end.Uint16(b[6:8])
			s.Value = f.end.Uint64(b[8:16])
			s.Size = f.end.Uint64(b[16:24])
		} else {
			s.Name = f.end.Uint32(b[0:4])
			s.Value = uint64(f.end.Uint32(b[4:8]))
			s.Size = uint64(f.end.Uint32(b[8:12]))
			s.Info = b[12]
			s.Other = b[13]
			s.Shndx = f.end.Uint16(b[14:16])
		}
		out = append(out, s)
	}
	return out
}

// putSymtab re-encodes syms into a buffer of len(syms)*symEntrySize().
func (f *File) putSymtab(syms []Sym) []byte {
	size := f.symEntrySize()
	out := make([]byte, len(syms)*size)
	for i, s := range syms {
		b := out[i*size : (i+1)*size]
		if f.is64() {
			f.end.PutUint32(b[0:4], s.Name)
			b[4] = s.Info
			b[5] = s.Other
			f.end.PutUint16(b[6:8], s.Shndx)
			f.end.PutUint64(b[8:16], s.Value)
			f.end.PutUint64(b[16:24], s.Size)
		} else {
			f.end.PutUint32(b[0:4], s.Name)
			f.end.PutUint32(b[4:8], uint32(s.Value))
			f.end.PutUint32(b[8:12], uint32(s.Size))
			b[12] = s.Info
			b[13] = s.Other
			f.end.PutUint16(b[14:16], s.Shndx)
		}
	}
	return out
}

// RewriteSymbolTables translates st_shndx (and, for STT_SECTION
// symbols, st_value) of every SHT_SYMTAB/SHT_DYNSYM through the
// parse-time old-index snapshot into current section indices. It runs
// after layout, so each table is read from and patched into contents at
// its final offset; a symbol whose old section no longer exists is
// skipped with a warning-level debug line.
func (f *File) RewriteSymbolTables(contents []byte) error {
	for _, sh := range f.Shdrs {
		if sh.Type != SHT_SYMTAB && sh.Type != SHT_DYNSYM {
			continue
		}
		end := sh.Offset + sh.Size
		if end < sh.Offset || end > uint64(len(contents)) {
			return &MalformedElfError{Reason: "symbol table out of bounds after layout"}
		}
		data := contents[sh.Offset:end]
		syms := f.parseSymtab(data)
		changed := false
		for i := range syms {
			idx := int(syms[i].Shndx)
			if idx == int(SHN_UNDEF) || idx >= int(SHN_LORESERVE) {
				continue
			}
			name, ok := f.oldIndex[idx]
			if !ok {
				continue
			}
			newIdx := f.sectionIndex(name)
			if newIdx < 0 {
				debugf("symbol %d in %s refers to dropped section %q, skipping", i, sh.Name, name)
				continue
			}
			if uint16(newIdx) != syms[i].Shndx {
				syms[i].Shndx = uint16(newIdx)
				changed = true
			}
			if syms[i].Type() == STT_SECTION {
				newVal := f.Shdrs[newIdx].Addr
				if newVal != syms[i].Value {
					syms[i].Value = newVal
					changed = true
				}
			}
		}
		if !changed {
			continue
		}
		copy(data, f.putSymtab(syms))
	}
	return nil
}
