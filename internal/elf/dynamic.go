package elf

// Dyn is one decoded (tag, value|pointer) entry of .dynamic.
type Dyn struct {
	Tag DynTag
	Val uint64
}

func (f *File) dynEntrySize() int {
	if f.is64() {
		return DynSize64
	}
	return DynSize32
}

// parseDynamic decodes a raw .dynamic section into entries, stopping at
// (and including) the first DT_NULL terminator.
func (f *File) parseDynamic(data []byte) []Dyn {
	sz := f.dynEntrySize()
	var out []Dyn
	for off := 0; off+sz <= len(data); off += sz {
		var tag int64
		var val uint64
		if f.is64() {
			tag = int64(f.end.Uint64(data[off : off+8]))
			val = f.end.Uint64(data[off+8 : off+16])
		} else {
			tag = int64(int32(f.end.Uint32(data[off : off+4])))
			val = uint64(f.end.Uint32(data[off+4 : off+8]))
		}
		out = append(out, Dyn{Tag: DynTag(tag), Val: val})
		if DynTag(tag) == DT_NULL {
			break
		}
	}
	return out
}

// putDynamic re-encodes entries into a zeroed byte buffer of size bytes;
// entries that do not fit are dropped, and unused trailing slots stay
// zero (DT_NULL).
func (f *File) putDynamic(entries []Dyn, size int) []byte {
	sz := f.dynEntrySize()
	out := make([]byte, size)
	for i, d := range entries {
		off := i * sz
		if off+sz > size {
			break
		}
		if f.is64() {
			f.end.PutUint64(out[off:off+8], uint64(int64(d.Tag)))
			f.end.PutUint64(out[off+8:off+16], d.Val)
		} else {
			f.end.PutUint32(out[off:off+4], uint32(int64(d.Tag)))
			f.end.PutUint32(out[off+4:off+8], uint32(d.Val))
		}
	}
	return out
}

// Dynamic returns the parsed .dynamic entries, reading through the
// replaced-sections store if .dynamic has a pending edit.
func (f *File) Dynamic() ([]Dyn, error) {
	sh := f.Section(".dynamic")
	if sh == nil {
		return nil, &MissingSectionError{Name: ".dynamic"}
	}
	data, err := f.SectionData(".dynamic")
	if err != nil {
		return nil, err
	}
	return f.parseDynamic(data), nil
}

// SetDynamic re-encodes entries and stores them as a pending replacement
// for .dynamic, preserving the section's current size.
func (f *File) SetDynamic(entries []Dyn) error {
	sh := f.Section(".dynamic")
	if sh == nil {
		return &MissingSectionError{Name: ".dynamic"}
	}
	size := int(sh.Size)
	if f.replaced.have(".dynamic") {
		size = len(f.replaced.get(".dynamic"))
	}
	buf, err := f.ReplaceSection(".dynamic", size)
	if err != nil {
		return err
	}
	copy(buf, f.putDynamic(entries, size))
	return nil
}

// GrowDynamic grows .dynamic by one entry, shifting every entry up to and
// including the first DT_NULL down by one slot and writing tag/val into
// the freed slot 0.
func (f *File) GrowDynamic(tag DynTag, val uint64) error {
	entries, err := f.Dynamic()
	if err != nil {
		return err
	}
	nullIdx := len(entries) - 1
	for i, d := range entries {
		if d.Tag == DT_NULL {
			nullIdx = i
			break
		}
	}
	grown := make([]Dyn, 0, len(entries)+1)
	grown = append(grown, Dyn{Tag: tag, Val: val})
	grown = append(grown, entries[:nullIdx+1]...)

	sh := f.Section(".dynamic")
	size := int(sh.Size)
	if f.replaced.have(".dynamic") {
		size = len(f.replaced.get(".dynamic"))
	}
	newSize := size + f.dynEntrySize()
	buf, err := f.ReplaceSection(".dynamic", newSize)
	if err != nil {
		return err
	}
	copy(buf, f.putDynamic(grown, newSize))
	return nil
}

// DynTagValue returns the value of the first entry with the given tag.
func DynTagValue(entries []Dyn, tag DynTag) (uint64, bool) {
	for _, d := range entries {
		if d.Tag == tag {
			return d.Val, true
		}
	}
	return 0, false
}
