package elf

// gnuHash is the DJB-style hash (seed 5381, h = h*33 + c) used by
// .gnu.hash.
func gnuHash(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}

// sysvHash is the classic PJW variant used by the SysV .hash section.
func sysvHash(name string) uint32 {
	var h, g uint32
	for i := 0; i < len(name); i++ {
		h = (h << 4) + uint32(name[i])
		if g = h & 0xf0000000; g != 0 {
			h ^= g >> 24
		}
		h &= ^g
	}
	return h
}

// gnuHashHeader is the fixed portion of a .gnu.hash section.
type gnuHashHeader struct {
	numBuckets uint32
	symndx     uint32
	maskwords  uint32
	shift2     uint32
}

func (f *File) parseGNUHashHeader(data []byte) (gnuHashHeader, error) {
	if len(data) < 16 {
		return gnuHashHeader{}, &MalformedElfError{Reason: ".gnu.hash section too small"}
	}
	return gnuHashHeader{
		numBuckets: f.end.Uint32(data[0:4]),
		symndx:     f.end.Uint32(data[4:8]),
		maskwords:  f.end.Uint32(data[8:12]),
		shift2:     f.end.Uint32(data[12:16]),
	}, nil
}

func (f *File) elfClassBits() uint32 {
	if f.is64() {
		return 64
	}
	return 32
}

func (f *File) bloomWordSize() int {
	if f.is64() {
		return 8
	}
	return 4
}

// rebuildGNUHash orders dynsyms[h.symndx:] by hash-mod-bucket and
// rewrites the .gnu.hash section in place for that order. It does not
// move the symbols itself: it returns the permutation for the covered
// dynsym range, indexed by new position -> old position, which the
// caller applies to .dynsym/.gnu.version and the relocation indices.
func (f *File) rebuildGNUHash(data []byte, names []string) ([]int, error) {
	h, err := f.parseGNUHashHeader(data)
	if err != nil {
		return nil, err
	}
	bloomBytes := int(h.maskwords) * f.bloomWordSize()
	bucketsOff := 16 + bloomBytes
	chainOff := bucketsOff + int(h.numBuckets)*4
	if chainOff > len(data) {
		return nil, &MalformedElfError{Reason: ".gnu.hash table truncated"}
	}
	numChain := (len(data) - chainOff) / 4
	if numChain == 0 {
		return nil, nil
	}

	type entry struct {
		oldIdx int
		hash   uint32
	}
	entries := make([]entry, numChain)
	for i := 0; i < numChain; i++ {
		oldIdx := int(h.symndx) + i
		entries[i] = entry{oldIdx: oldIdx, hash: gnuHash(names[oldIdx])}
	}
	// Stable sort by hash mod numBuckets.
	sortEntriesStable(entries, func(a, b entry) bool {
		return a.hash%h.numBuckets < b.hash%h.numBuckets
	})

	perm := make([]int, len(entries))
	for i, e := range entries {
		perm[i] = e.oldIdx
	}

	// Clear Bloom filters, buckets, chain; refill per steps 5-7.
	for i := 0; i < bloomBytes; i++ {
		data[16+i] = 0
	}
	for i := 0; i < int(h.numBuckets)*4; i++ {
		data[bucketsOff+i] = 0
	}

	classBits := f.elfClassBits()
	setBloomBit := func(bit uint32) {
		word := (bit / classBits) % h.maskwords
		shift := bit % classBits
		off := 16 + int(word)*f.bloomWordSize()
		if f.is64() {
			v := f.end.Uint64(data[off : off+8])
			v |= uint64(1) << shift
			f.end.PutUint64(data[off:off+8], v)
		} else {
			v := f.end.Uint32(data[off : off+4])
			v |= uint32(1) << shift
			f.end.PutUint32(data[off:off+4], v)
		}
	}

	for _, e := range entries {
		setBloomBit(e.hash)
		setBloomBit(e.hash >> h.shift2)
	}

	for i, e := range entries {
		bucket := e.hash % h.numBuckets
		cur := f.end.Uint32(data[bucketsOff+int(bucket)*4 : bucketsOff+int(bucket)*4+4])
		if cur == 0 {
			f.end.PutUint32(data[bucketsOff+int(bucket)*4:bucketsOff+int(bucket)*4+4], uint32(i)+h.symndx)
		}
		last := i == len(entries)-1 || entries[i+1].hash%h.numBuckets != bucket
		chainVal := e.hash &^ 1
		if last {
			chainVal |= 1
		}
		f.end.PutUint32(data[chainOff+i*4:chainOff+i*4+4], chainVal)
	}

	return perm, nil
}

// rebuildSysVHash recomputes .hash's bucket/chain arrays for the
// current symbol name list. names[0] is always
// the null symbol.
func (f *File) rebuildSysVHash(data []byte, names []string) error {
	if len(data) < 8 {
		return &MalformedElfError{Reason: ".hash section too small"}
	}
	numBuckets := f.end.Uint32(data[0:4])
	numChain := f.end.Uint32(data[4:8])
	bucketsOff := 8
	chainOff := 8 + int(numBuckets)*4
	if chainOff+int(numChain)*4 > len(data) {
		return &MalformedElfError{Reason: ".hash table truncated"}
	}
	for i := 0; i < int(numBuckets)*4; i++ {
		data[bucketsOff+i] = 0
	}
	for i := 0; i < int(numChain) && i < len(names); i++ {
		if i == 0 {
			continue
		}
		bucket := sysvHash(names[i]) % numBuckets
		bOff := bucketsOff + int(bucket)*4
		chain := f.end.Uint32(data[bOff : bOff+4])
		f.end.PutUint32(data[chainOff+i*4:chainOff+i*4+4], chain)
		f.end.PutUint32(data[bOff:bOff+4], uint32(i))
	}
	return nil
}

// sortEntriesStable is a tiny stable insertion-sort helper so this
// file has no sort.Slice dependency on entry's unexported type.
func sortEntriesStable[T any](s []T, less func(a, b T) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// elf64RSymShift/elf32RSymShift locate the symbol-index field inside
// r_info for each class.
const (
	elf64RSymShift = 32
	elf32RSymShift = 8
)

// remapRelocationSymbols rewrites r_info's symbol-index field in every
// SHT_REL/SHT_RELA section through oldToNew (old dynsym index -> new).
func (f *File) remapRelocationSymbols(oldToNew map[int]int) error {
	for _, sh := range f.Shdrs {
		if sh.Type != SHT_REL && sh.Type != SHT_RELA {
			continue
		}
		data, err := f.SectionData(sh.Name)
		if err != nil {
			return err
		}
		entsz := int(sh.Entsize)
		if entsz == 0 {
			continue
		}
		buf := append([]byte(nil), data...)
		changed := false
		for off := 0; off+entsz <= len(buf); off += entsz {
			infoOff := off + f.wordOffsetOfRInfo()
			if f.is64() {
				info := f.end.Uint64(buf[infoOff : infoOff+8])
				oldSym := int(info >> elf64RSymShift)
				if newSym, ok := oldToNew[oldSym]; ok && newSym != oldSym {
					info = (uint64(newSym) << elf64RSymShift) | (info & 0xffffffff)
					f.end.PutUint64(buf[infoOff:infoOff+8], info)
					changed = true
				}
			} else {
				info := f.end.Uint32(buf[infoOff : infoOff+4])
				oldSym := int(info >> elf32RSymShift)
				if newSym, ok := oldToNew[oldSym]; ok && newSym != oldSym {
					info = (uint32(newSym) << elf32RSymShift) | (info & 0xff)
					f.end.PutUint32(buf[infoOff:infoOff+4], info)
					changed = true
				}
			}
		}
		if !changed {
			continue
		}
		out, err := f.ReplaceSection(sh.Name, len(buf))
		if err != nil {
			return err
		}
		copy(out, buf)
		f.MarkChanged()
	}
	return nil
}

// wordOffsetOfRInfo is the byte offset of r_info within Elf_Rel/Elf_Rela:
// one natural word in (past r_offset) on both classes.
func (f *File) wordOffsetOfRInfo() int { return f.end.wordSize() }
