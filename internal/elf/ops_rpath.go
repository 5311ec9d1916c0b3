package elf

import (
	"os"
	"path/filepath"
	"strings"
)

// RPathOp selects the action for ModifyRPath.
type RPathOp int

const (
	RPathPrint RPathOp = iota
	RPathSet
	RPathAdd
	RPathRemove
	RPathShrink
)

// rpathTag reports which of DT_RPATH/DT_RUNPATH is present, preferring
// DT_RPATH when DT_RUNPATH is absent.
func rpathTag(entries []Dyn) (tag DynTag, idx int, ok bool) {
	runIdx, rpIdx := -1, -1
	for i, d := range entries {
		switch d.Tag {
		case DT_RUNPATH:
			runIdx = i
		case DT_RPATH:
			rpIdx = i
		}
	}
	if runIdx >= 0 {
		return DT_RUNPATH, runIdx, true
	}
	if rpIdx >= 0 {
		return DT_RPATH, rpIdx, true
	}
	return 0, -1, false
}

// RPath returns the current colon-separated search path, from whichever
// of DT_RUNPATH/DT_RPATH is present.
func (f *File) RPath() (string, bool, error) {
	entries, err := f.Dynamic()
	if err != nil {
		return "", false, err
	}
	_, idx, ok := rpathTag(entries)
	if !ok {
		return "", false, nil
	}
	s, err := f.stringAtDynstrOffset(entries[idx].Val)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// neededLibraries returns the DT_NEEDED soname strings.
func (f *File) neededLibraries() ([]string, error) {
	entries, err := f.Dynamic()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range entries {
		if d.Tag == DT_NEEDED {
			s, err := f.stringAtDynstrOffset(d.Val)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// dirResolvesNeeded reports whether dir contains at least one of the
// given library names with a machine type matching f.Header.Machine.
// A library is skipped if it cannot be opened or parsed: rpath
// shrinking is best-effort and never fails the whole operation because
// a neighbor is unreadable.
func dirResolvesNeeded(dir string, names []string, want Machine) bool {
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if len(data) < 20 {
			continue
		}
		hdr, _, err := parseFileHeader(data)
		if err != nil {
			continue
		}
		if hdr.Machine == want {
			return true
		}
	}
	return false
}

// ModifyRPath implements --set-rpath/--add-rpath/--remove-rpath/
// --shrink-rpath/--print-rpath.
func (f *File) ModifyRPath(op RPathOp, newPath string, allowedPrefixes []string, forceRPath bool) (string, error) {
	entries, err := f.Dynamic()
	if err != nil {
		return "", err
	}
	curTag, curIdx, have := rpathTag(entries)
	var cur string
	if have {
		cur, err = f.stringAtDynstrOffset(entries[curIdx].Val)
		if err != nil {
			return "", err
		}
	}

	switch op {
	case RPathPrint:
		return cur, nil

	case RPathRemove:
		if !have {
			return "", nil
		}
		entries = append(entries[:curIdx], entries[curIdx+1:]...)
		entries = append(entries, Dyn{Tag: DT_NULL})
		if err := f.SetDynamic(entries); err != nil {
			return "", err
		}
		f.MarkChanged()
		return "", nil

	case RPathSet:
		return "", f.writeRPath(entries, curTag, curIdx, have, newPath, forceRPath)

	case RPathAdd:
		final := newPath
		if cur != "" {
			final = cur + ":" + newPath
		}
		return "", f.writeRPath(entries, curTag, curIdx, have, final, forceRPath)

	case RPathShrink:
		if !have {
			return "", nil
		}
		shrunk, err := f.shrinkRPathValue(cur, allowedPrefixes)
		if err != nil {
			return "", err
		}
		if err := f.writeRPath(entries, curTag, curIdx, have, shrunk, forceRPath); err != nil {
			return "", err
		}
		return shrunk, nil
	}
	return "", &RequestError{Detail: "unknown rpath operation"}
}

// shrinkRPathValue keeps every non-absolute entry ($ORIGIN and similar)
// and every absolute entry that still resolves at least one needed
// library of matching machine type, restricted to allowedPrefixes when
// non-empty.
func (f *File) shrinkRPathValue(cur string, allowedPrefixes []string) (string, error) {
	if cur == "" {
		return "", nil
	}
	needed, err := f.neededLibraries()
	if err != nil {
		return "", err
	}
	var kept []string
	for _, dir := range strings.Split(cur, ":") {
		if dir == "" {
			continue
		}
		if !filepath.IsAbs(dir) {
			kept = append(kept, dir)
			continue
		}
		if len(allowedPrefixes) > 0 && !hasAllowedPrefix(dir, allowedPrefixes) {
			continue
		}
		if dirResolvesNeeded(dir, needed, f.Header.Machine) {
			kept = append(kept, dir)
		}
	}
	return strings.Join(kept, ":"), nil
}

func hasAllowedPrefix(dir string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(dir, p) {
			return true
		}
	}
	return false
}

// writeRPath stores newPath under DT_RUNPATH unless forceRPath is set,
// in which case it stores (or keeps) DT_RPATH. Only the entry at curIdx
// is rewritten and retagged; any other DT_RPATH/DT_RUNPATH entry is left
// as it is.
func (f *File) writeRPath(entries []Dyn, curTag DynTag, curIdx int, have bool, newPath string, forceRPath bool) error {
	targetTag := DT_RUNPATH
	if forceRPath {
		targetTag = DT_RPATH
	}

	var curOff = -1
	if have {
		curOff = int(entries[curIdx].Val)
	}
	newOff, err := f.replaceOrAppendString(".dynstr", curOff, newPath, f.dynstrLiveOffsetsExcept(entries, curIdx))
	if err != nil {
		return err
	}

	switch {
	case have && curTag == targetTag:
		entries[curIdx].Val = uint64(newOff)
	case have:
		entries[curIdx].Tag = targetTag
		entries[curIdx].Val = uint64(newOff)
	default:
		return f.growRPathEntry(targetTag, uint64(newOff))
	}
	if err := f.SetDynamic(entries); err != nil {
		return err
	}
	f.MarkChanged()
	return nil
}

func (f *File) growRPathEntry(tag DynTag, val uint64) error {
	return f.GrowDynamic(tag, val)
}

// dynstrLiveOffsetsExcept lists live string-tag offsets excluding the
// entry at excludeIdx (by dynamic-entry index, not tag), used so a
// rewritten RPATH/RUNPATH entry doesn't count itself as a second live
// reference.
func (f *File) dynstrLiveOffsetsExcept(entries []Dyn, excludeIdx int) []uint64 {
	var out []uint64
	for i, d := range entries {
		if i == excludeIdx {
			continue
		}
		switch d.Tag {
		case DT_NEEDED, DT_SONAME, DT_RPATH, DT_RUNPATH:
			out = append(out, d.Val)
		}
	}
	return out
}
