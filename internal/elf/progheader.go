package elf

import "sort"

// ProgramHeader is the decoded Elf32_Phdr/Elf64_Phdr. Unlike sections,
// program headers have no stable identity across an edit: the layout
// engine mutates them positionally and, for PT_PHDR/PT_NOTE/PT_DYNAMIC/
// PT_INTERP, re-synchronizes them to their backing section by type.
type ProgramHeader struct {
	Type   ProgType
	Flags  ProgFlag
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

func parseProgramHeader(b []byte, class Class, en endian) *ProgramHeader {
	p := &ProgramHeader{}
	if class == Class64 {
		p.Type = ProgType(en.Uint32(b[0:4]))
		p.Flags = ProgFlag(en.Uint32(b[4:8]))
		p.Offset = en.Uint64(b[8:16])
		p.Vaddr = en.Uint64(b[16:24])
		p.Paddr = en.Uint64(b[24:32])
		p.Filesz = en.Uint64(b[32:40])
		p.Memsz = en.Uint64(b[40:48])
		p.Align = en.Uint64(b[48:56])
	} else {
		p.Type = ProgType(en.Uint32(b[0:4]))
		p.Offset = uint64(en.Uint32(b[4:8]))
		p.Vaddr = uint64(en.Uint32(b[8:12]))
		p.Paddr = uint64(en.Uint32(b[12:16]))
		p.Filesz = uint64(en.Uint32(b[16:20]))
		p.Memsz = uint64(en.Uint32(b[20:24]))
		p.Flags = ProgFlag(en.Uint32(b[24:28]))
		p.Align = uint64(en.Uint32(b[28:32]))
	}
	return p
}

func (p *ProgramHeader) put(b []byte, class Class, en endian) {
	if class == Class64 {
		en.PutUint32(b[0:4], uint32(p.Type))
		en.PutUint32(b[4:8], uint32(p.Flags))
		en.PutUint64(b[8:16], p.Offset)
		en.PutUint64(b[16:24], p.Vaddr)
		en.PutUint64(b[24:32], p.Paddr)
		en.PutUint64(b[32:40], p.Filesz)
		en.PutUint64(b[40:48], p.Memsz)
		en.PutUint64(b[48:56], p.Align)
	} else {
		en.PutUint32(b[0:4], uint32(p.Type))
		en.PutUint32(b[4:8], uint32(p.Offset))
		en.PutUint32(b[8:12], uint32(p.Vaddr))
		en.PutUint32(b[12:16], uint32(p.Paddr))
		en.PutUint32(b[16:20], uint32(p.Filesz))
		en.PutUint32(b[20:24], uint32(p.Memsz))
		en.PutUint32(b[24:28], uint32(p.Flags))
		en.PutUint32(b[28:32], uint32(p.Align))
	}
}

// sortProgramHeaders sorts in place, keeping PT_PHDR first and the rest
// ordered by p_paddr.
func sortProgramHeaders(phdrs []*ProgramHeader) {
	sort.SliceStable(phdrs, func(i, j int) bool {
		a, b := phdrs[i], phdrs[j]
		if a.Type == PT_PHDR {
			return b.Type != PT_PHDR
		}
		if b.Type == PT_PHDR {
			return false
		}
		return a.Paddr < b.Paddr
	})
}
