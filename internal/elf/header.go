package elf

import "fmt"

// FileHeader is the decoded Elf32_Ehdr/Elf64_Ehdr, independent of class.
type FileHeader struct {
	Class      Class
	Data       Data
	OSABI      OSABI
	ABIVersion byte
	Type       Type
	Machine    Machine
	Version    uint32
	Entry      uint64
	Phoff      uint64
	Shoff      uint64
	Flags      uint32
	Ehsize     uint16
	Phentsize  uint16
	Phnum      uint16
	Shentsize  uint16
	Shnum      uint16
	Shstrndx   uint16
}

func (h *FileHeader) hdrSize() uint64 {
	if h.Class == Class64 {
		return FileHeaderSize64
	}
	return FileHeaderSize32
}

func (h *FileHeader) phdrSize() uint64 {
	if h.Class == Class64 {
		return PhdrSize64
	}
	return PhdrSize32
}

func (h *FileHeader) shdrSize() uint64 {
	if h.Class == Class64 {
		return ShdrSize64
	}
	return ShdrSize32
}

// parseFileHeader decodes e_ident and the rest of the ELF header from the
// first bytes of the file, performing every structural check that must
// pass before anything else in the file is trusted.
func parseFileHeader(raw []byte) (*FileHeader, endian, error) {
	if len(raw) < 20 {
		return nil, endian{}, &MalformedElfError{Reason: "file shorter than minimal ELF header"}
	}
	if [4]byte{raw[0], raw[1], raw[2], raw[3]} != ELFMAG {
		return nil, endian{}, &MalformedElfError{Reason: "bad magic"}
	}

	h := &FileHeader{
		Class:      Class(raw[4]),
		Data:       Data(raw[5]),
		ABIVersion: raw[8],
		OSABI:      OSABI(raw[7]),
	}
	if raw[6] != 1 {
		return nil, endian{}, &MalformedElfError{Reason: "e_ident[EI_VERSION] is not EV_CURRENT"}
	}
	if h.Class != Class32 && h.Class != Class64 {
		return nil, endian{}, &MalformedElfError{Reason: fmt.Sprintf("unsupported ELF class %d", h.Class)}
	}

	en, err := newEndian(h.Data, h.Class)
	if err != nil {
		return nil, endian{}, &MalformedElfError{Reason: err.Error()}
	}

	if uint64(len(raw)) < h.hdrSize() {
		return nil, endian{}, &MalformedElfError{Reason: "file shorter than its own ELF header"}
	}

	b := raw[16:]
	h.Type = Type(en.Uint16(b[0:2]))
	h.Machine = Machine(en.Uint16(b[2:4]))
	h.Version = en.Uint32(b[4:8])

	if h.Class == Class64 {
		h.Entry = en.Uint64(b[8:16])
		h.Phoff = en.Uint64(b[16:24])
		h.Shoff = en.Uint64(b[24:32])
		h.Flags = en.Uint32(b[32:36])
		h.Ehsize = en.Uint16(b[36:38])
		h.Phentsize = en.Uint16(b[38:40])
		h.Phnum = en.Uint16(b[40:42])
		h.Shentsize = en.Uint16(b[42:44])
		h.Shnum = en.Uint16(b[44:46])
		h.Shstrndx = en.Uint16(b[46:48])
	} else {
		h.Entry = uint64(en.Uint32(b[8:12]))
		h.Phoff = uint64(en.Uint32(b[12:16]))
		h.Shoff = uint64(en.Uint32(b[16:20]))
		h.Flags = en.Uint32(b[20:24])
		h.Ehsize = en.Uint16(b[24:26])
		h.Phentsize = en.Uint16(b[26:28])
		h.Phnum = en.Uint16(b[28:30])
		h.Shentsize = en.Uint16(b[30:32])
		h.Shnum = en.Uint16(b[32:34])
		h.Shstrndx = en.Uint16(b[34:36])
	}

	if h.Version != 1 {
		return nil, endian{}, &MalformedElfError{Reason: "e_version is not EV_CURRENT"}
	}
	if h.Type != ET_EXEC && h.Type != ET_DYN {
		return nil, endian{}, &MalformedElfError{Reason: fmt.Sprintf("unsupported e_type %s (only ET_EXEC/ET_DYN are handled)", h.Type)}
	}
	if uint64(h.Phentsize) != h.phdrSize() {
		return nil, endian{}, &MalformedElfError{Reason: "e_phentsize does not match sizeof(Phdr) for this class"}
	}
	if uint64(h.Shentsize) != h.shdrSize() && h.Shnum != 0 {
		return nil, endian{}, &MalformedElfError{Reason: "e_shentsize does not match sizeof(Shdr) for this class"}
	}
	if h.Shnum == 0 {
		return nil, endian{}, &MalformedElfError{Reason: "e_shnum is zero (statically linked self-decompressing binaries are not supported)"}
	}
	if h.Shstrndx >= h.Shnum {
		return nil, endian{}, &MalformedElfError{Reason: "e_shstrndx out of range"}
	}

	return h, en, nil
}

// put writes the header back into buffer, which must be at least
// hdrSize() bytes.
func (h *FileHeader) put(buffer []byte, en endian) {
	copy(buffer[0:4], ELFMAG[:])
	buffer[4] = byte(h.Class)
	buffer[5] = byte(h.Data)
	buffer[6] = 1 // EI_VERSION
	buffer[7] = byte(h.OSABI)
	buffer[8] = h.ABIVersion
	for i := 9; i < 16; i++ {
		buffer[i] = 0
	}

	b := buffer[16:]
	en.PutUint16(b[0:2], uint16(h.Type))
	en.PutUint16(b[2:4], uint16(h.Machine))
	en.PutUint32(b[4:8], h.Version)

	if h.Class == Class64 {
		en.PutUint64(b[8:16], h.Entry)
		en.PutUint64(b[16:24], h.Phoff)
		en.PutUint64(b[24:32], h.Shoff)
		en.PutUint32(b[32:36], h.Flags)
		en.PutUint16(b[36:38], h.Ehsize)
		en.PutUint16(b[38:40], h.Phentsize)
		en.PutUint16(b[40:42], h.Phnum)
		en.PutUint16(b[42:44], h.Shentsize)
		en.PutUint16(b[44:46], h.Shnum)
		en.PutUint16(b[46:48], h.Shstrndx)
	} else {
		en.PutUint32(b[8:12], uint32(h.Entry))
		en.PutUint32(b[12:16], uint32(h.Phoff))
		en.PutUint32(b[16:20], uint32(h.Shoff))
		en.PutUint32(b[20:24], h.Flags)
		en.PutUint16(b[24:26], h.Ehsize)
		en.PutUint16(b[26:28], h.Phentsize)
		en.PutUint16(b[28:30], h.Phnum)
		en.PutUint16(b[30:32], h.Shentsize)
		en.PutUint16(b[32:34], h.Shnum)
		en.PutUint16(b[34:36], h.Shstrndx)
	}
}
