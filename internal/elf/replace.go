package elf

// replacedSections is the pending-edits store:
// an ordered mapping from section name to the new byte contents of that
// section. Operation handlers populate it; the layout engine drains it in
// one pass and clears it after a successful write.
type replacedSections struct {
	order []string
	data  map[string][]byte
}

func newReplacedSections() *replacedSections {
	return &replacedSections{data: make(map[string][]byte)}
}

func (r *replacedSections) have(name string) bool {
	_, ok := r.data[name]
	return ok
}

func (r *replacedSections) get(name string) []byte {
	return r.data[name]
}

func (r *replacedSections) set(name string, b []byte) {
	if !r.have(name) {
		r.order = append(r.order, name)
	}
	r.data[name] = b
}

func (r *replacedSections) delete(name string) {
	if !r.have(name) {
		return
	}
	delete(r.data, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *replacedSections) clear() {
	r.order = nil
	r.data = make(map[string][]byte)
}

func (r *replacedSections) empty() bool {
	return len(r.data) == 0
}

// ReplaceSection returns a mutable byte buffer of exactly newSize for the
// named section. If the name has no pending edit yet, the section's
// current bytes are copied in first and then truncated/zero-extended to
// newSize.
func (f *File) ReplaceSection(name string, newSize int) ([]byte, error) {
	if f.replaced.have(name) {
		buf := f.replaced.get(name)
		buf = resize(buf, newSize)
		f.replaced.set(name, buf)
		return buf, nil
	}

	sh := f.Section(name)
	var orig []byte
	if sh != nil {
		d, err := f.sectionData(sh)
		if err != nil {
			return nil, err
		}
		orig = d
	}
	buf := resize(orig, newSize)
	f.replaced.set(name, buf)
	return buf, nil
}

// HaveReplacedSection reports whether name has a pending edit.
func (f *File) HaveReplacedSection(name string) bool {
	return f.replaced.have(name)
}

func resize(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, b)
	return out
}
