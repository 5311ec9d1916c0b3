package elf

// NoDefaultLib sets DF_1_NODEFLIB in DT_FLAGS_1, inserting the tag if it
// doesn't already exist.
func (f *File) NoDefaultLib() error {
	entries, err := f.Dynamic()
	if err != nil {
		return err
	}
	for i, d := range entries {
		if d.Tag == DT_FLAGS_1 {
			entries[i].Val |= DF_1_NODEFLIB
			return f.SetDynamic(entries)
		}
	}
	return f.GrowDynamic(DT_FLAGS_1, DF_1_NODEFLIB)
}

// AddDebugTag ensures a DT_DEBUG entry exists (ignored by static linkers,
// filled in by the dynamic loader at runtime).
func (f *File) AddDebugTag() error {
	entries, err := f.Dynamic()
	if err != nil {
		return err
	}
	for _, d := range entries {
		if d.Tag == DT_DEBUG {
			return nil
		}
	}
	return f.GrowDynamic(DT_DEBUG, 0)
}
