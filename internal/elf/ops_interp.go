package elf

// Interp returns the current interpreter path (.interp minus its
// trailing NUL), or "" with ok=false on a statically linked file.
func (f *File) Interp() (string, bool, error) {
	sh := f.Section(".interp")
	if sh == nil {
		return "", false, nil
	}
	data, err := f.SectionData(".interp")
	if err != nil {
		return "", false, err
	}
	return cstring(data), true, nil
}

// SetInterpreter replaces .interp with path+"\x00".
func (f *File) SetInterpreter(path string) error {
	if f.Section(".interp") == nil {
		return &MissingSectionError{Name: ".interp"}
	}
	buf, err := f.ReplaceSection(".interp", len(path)+1)
	if err != nil {
		return err
	}
	copy(buf, path)
	buf[len(path)] = 0
	f.MarkChanged()
	return nil
}
