package elf

// Soname returns DT_SONAME's string value, if present.
func (f *File) Soname() (string, bool, error) {
	entries, err := f.Dynamic()
	if err != nil {
		return "", false, err
	}
	val, ok := DynTagValue(entries, DT_SONAME)
	if !ok {
		return "", false, nil
	}
	s, err := f.stringAtDynstrOffset(val)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (f *File) stringAtDynstrOffset(off uint64) (string, error) {
	strtab, err := f.SectionData(".dynstr")
	if err != nil {
		return "", err
	}
	if off >= uint64(len(strtab)) {
		return "", &MalformedElfError{Reason: "dynamic string table offset out of range"}
	}
	return cstring(strtab[off:]), nil
}

// SetSoname writes a new DT_SONAME, valid only for ET_DYN (shared
// objects), mirroring ModifyRPath's string-table growth logic.
func (f *File) SetSoname(name string) error {
	if f.Header.Type != ET_DYN {
		return &RequestError{Detail: "--set-soname only applies to shared objects (ET_DYN)"}
	}
	entries, err := f.Dynamic()
	if err != nil {
		return err
	}

	curOff := -1
	var tagIdx = -1
	for i, d := range entries {
		if d.Tag == DT_SONAME {
			curOff = int(d.Val)
			tagIdx = i
			break
		}
	}

	newOff, err := f.replaceOrAppendString(".dynstr", curOff, name, f.dynstrLiveOffsets(entries, DT_SONAME))
	if err != nil {
		return err
	}

	if tagIdx >= 0 {
		entries[tagIdx].Val = uint64(newOff)
		if err := f.SetDynamic(entries); err != nil {
			return err
		}
	} else if err := f.GrowDynamic(DT_SONAME, uint64(newOff)); err != nil {
		return err
	}
	f.MarkChanged()
	return nil
}

// dynstrLiveOffsets lists every .dynstr offset referenced by .dynamic
// string-valued tags other than the one being replaced, used by the
// shared-string check in replaceOrAppendString.
func (f *File) dynstrLiveOffsets(entries []Dyn, exclude DynTag) []uint64 {
	var out []uint64
	for _, d := range entries {
		switch d.Tag {
		case DT_NEEDED, DT_SONAME, DT_RPATH, DT_RUNPATH:
			if d.Tag != exclude {
				out = append(out, d.Val)
			}
		}
	}
	return out
}
