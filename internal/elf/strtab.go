package elf

import "bytes"

// findString returns the offset of s (as a NUL-terminated string) inside
// strtab if it is already present there, i.e. if the bytes at some offset
// equal s+"\x00" exactly. It does not look for s as a suffix of a longer
// string, only for an existing entry with exactly these bytes, matching
// the original tool's narrow in-place-reuse check.
func findString(strtab []byte, s string) (int, bool) {
	needle := append([]byte(s), 0)
	idx := bytes.Index(strtab, needle)
	for idx >= 0 {
		if idx == 0 || strtab[idx-1] == 0 {
			return idx, true
		}
		next := bytes.Index(strtab[idx+1:], needle)
		if next < 0 {
			return -1, false
		}
		idx = idx + 1 + next
	}
	return -1, false
}

// appendString appends s+"\x00" to strtab and returns the new strtab and
// the offset the string was written at.
func appendString(strtab []byte, s string) ([]byte, int) {
	off := len(strtab)
	out := append(strtab, append([]byte(s), 0)...)
	return out, off
}

// countStringRefsEndingAt counts how many of the given byte offsets into
// strtab are implied to reference the same NUL-terminated string as off,
// i.e. their NUL-terminated view ends at the same terminating NUL, whether
// they point inside [off, off+len(s)] or earlier, at a longer string whose
// suffix is the one at off. Before overwriting a string in place, callers use this
// to verify no other structure's reference would be corrupted because it
// happens to share the same trailing NUL.
func countStringRefsEndingAt(strtab []byte, refs []uint64, off int) int {
	// The string at off ends at the next NUL.
	end := off
	for end < len(strtab) && strtab[end] != 0 {
		end++
	}
	count := 0
	for _, r := range refs {
		ri := int(r)
		if ri < 0 || ri > end {
			continue
		}
		// A reference shares this string's storage when its own
		// NUL-terminated view ends at the same offset `end` — whether it
		// starts inside [off, end] or earlier, as a longer string whose
		// suffix is the one at off.
		re := ri
		for re < len(strtab) && strtab[re] != 0 {
			re++
		}
		if re == end {
			count++
		}
	}
	return count
}

// replaceOrAppendString implements the rpath/soname/needed string-growth
// rule: overwrite the string in place if it fits in the
// existing allocation and no other live reference ends at the same NUL,
// otherwise append a fresh copy and let the caller repoint its tag.
//
// refs lists every other currently-known byte offset into strtab that
// must keep resolving to its original string.
func (f *File) replaceOrAppendString(strtabName string, curOff int, newVal string, refs []uint64) (newOff int, err error) {
	strtab, err := f.SectionData(strtabName)
	if err != nil {
		return 0, err
	}

	if curOff >= 0 {
		cur := cstring(strtab[curOff:])
		// refs excludes the entry being rewritten, so a single hit already
		// means another live reference ends at this string's NUL.
		shared := countStringRefsEndingAt(strtab, refs, curOff) > 0
		if len(newVal) <= len(cur) && !shared {
			buf, err := f.ReplaceSection(strtabName, len(strtab))
			if err != nil {
				return 0, err
			}
			copy(buf[curOff:], append([]byte(newVal), 0))
			for i := curOff + len(newVal) + 1; i < curOff+len(cur)+1; i++ {
				buf[i] = 0
			}
			return curOff, nil
		}
	}

	if off, ok := findString(strtab, newVal); ok {
		return off, nil
	}

	grown, off := appendString(append([]byte{}, strtab...), newVal)
	buf, err := f.ReplaceSection(strtabName, len(grown))
	if err != nil {
		return 0, err
	}
	copy(buf, grown)
	return off, nil
}
