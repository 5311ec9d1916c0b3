package elf

import (
	"bytes"
	"sort"
)

// SectionHeader is the decoded Elf32_Shdr/Elf64_Shdr. Sections are
// addressed by Name throughout the engine — never by slice index, because
// indices are invalidated every time the table is sorted.
type SectionHeader struct {
	Name      string
	nameIndex uint32 // offset into .shstrtab at parse time; informational only
	Type      SecType
	Flags     SecFlag
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64

	// origOffset is the section's sh_offset exactly as parsed, used to
	// re-identify the real .shstrtab after sorting when duplicate section
	// names exist.
	origOffset uint64
}

func parseSectionHeader(b []byte, class Class, en endian) *SectionHeader {
	s := &SectionHeader{}
	if class == Class64 {
		s.nameIndex = en.Uint32(b[0:4])
		s.Type = SecType(en.Uint32(b[4:8]))
		s.Flags = SecFlag(en.Uint64(b[8:16]))
		s.Addr = en.Uint64(b[16:24])
		s.Offset = en.Uint64(b[24:32])
		s.Size = en.Uint64(b[32:40])
		s.Link = en.Uint32(b[40:44])
		s.Info = en.Uint32(b[44:48])
		s.Addralign = en.Uint64(b[48:56])
		s.Entsize = en.Uint64(b[56:64])
	} else {
		s.nameIndex = en.Uint32(b[0:4])
		s.Type = SecType(en.Uint32(b[4:8]))
		s.Flags = SecFlag(en.Uint32(b[8:12]))
		s.Addr = uint64(en.Uint32(b[12:16]))
		s.Offset = uint64(en.Uint32(b[16:20]))
		s.Size = uint64(en.Uint32(b[20:24]))
		s.Link = en.Uint32(b[24:28])
		s.Info = en.Uint32(b[28:32])
		s.Addralign = uint64(en.Uint32(b[32:36]))
		s.Entsize = uint64(en.Uint32(b[36:40]))
	}
	s.origOffset = s.Offset
	return s
}

func (s *SectionHeader) put(b []byte, class Class, en endian) {
	if class == Class64 {
		en.PutUint32(b[0:4], s.nameIndex)
		en.PutUint32(b[4:8], uint32(s.Type))
		en.PutUint64(b[8:16], uint64(s.Flags))
		en.PutUint64(b[16:24], s.Addr)
		en.PutUint64(b[24:32], s.Offset)
		en.PutUint64(b[32:40], s.Size)
		en.PutUint32(b[40:44], s.Link)
		en.PutUint32(b[44:48], s.Info)
		en.PutUint64(b[48:56], s.Addralign)
		en.PutUint64(b[56:64], s.Entsize)
	} else {
		en.PutUint32(b[0:4], s.nameIndex)
		en.PutUint32(b[4:8], uint32(s.Type))
		en.PutUint32(b[8:12], uint32(s.Flags))
		en.PutUint32(b[12:16], uint32(s.Addr))
		en.PutUint32(b[16:20], uint32(s.Offset))
		en.PutUint32(b[20:24], uint32(s.Size))
		en.PutUint32(b[24:28], s.Link)
		en.PutUint32(b[28:32], s.Info)
		en.PutUint32(b[32:36], uint32(s.Addralign))
		en.PutUint32(b[36:40], uint32(s.Entsize))
	}
}

// cstring returns the NUL-terminated string starting at b[0].
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// sortSectionHeaders sorts by file offset, keeping index 0 (the mandatory
// SHT_NULL entry) fixed, and reports the permutation as old-index ->
// new-index so callers can remap sh_link/sh_info/e_shstrndx afterward.
func sortSectionHeaders(shdrs []*SectionHeader) (sorted []*SectionHeader, oldToNew map[int]int) {
	type indexed struct {
		idx int
		sh  *SectionHeader
	}
	rest := make([]indexed, 0, len(shdrs)-1)
	for i := 1; i < len(shdrs); i++ {
		rest = append(rest, indexed{i, shdrs[i]})
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].sh.Offset < rest[j].sh.Offset
	})

	sorted = make([]*SectionHeader, len(shdrs))
	sorted[0] = shdrs[0]
	oldToNew = map[int]int{0: 0}
	for newIdx, r := range rest {
		sorted[newIdx+1] = r.sh
		oldToNew[r.idx] = newIdx + 1
	}
	return sorted, oldToNew
}
