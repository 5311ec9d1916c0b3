package elf

import (
	"fmt"
	"log"
)

// Debug gates verbose diagnostics, set by the CLI from --debug or the
// PATCHELF_DEBUG environment variable.
var Debug bool

func debugf(format string, args ...interface{}) {
	if Debug {
		log.Printf("debug: "+format, args...)
	}
}

// MalformedElfError is returned by the parser when the input is not a
// well-formed ELF32/ELF64 ET_EXEC or ET_DYN file.
type MalformedElfError struct {
	Reason string
}

func (e *MalformedElfError) Error() string {
	return fmt.Sprintf("malformed ELF: %s", e.Reason)
}

// AddressSpaceUnderrunError is returned by the executable layout strategy
// when growing the replaced prefix downward needs more pages than lie
// below its first page in virtual address space.
type AddressSpaceUnderrunError struct {
	Needed    uint64
	Available uint64
}

func (e *AddressSpaceUnderrunError) Error() string {
	return fmt.Sprintf("not enough address space to grow the executable's load segment: need %d pages, only %d available", e.Needed, e.Available)
}

// UnsupportedNoteLayoutError is returned when a PT_NOTE segment and its
// SHT_NOTE sections overlap without one fully covering the other.
type UnsupportedNoteLayoutError struct {
	Detail string
}

func (e *UnsupportedNoteLayoutError) Error() string {
	return fmt.Sprintf("unsupported PT_NOTE/SHT_NOTE layout: %s", e.Detail)
}

// MissingSectionError is returned when an operation requires a section
// (.interp, .dynamic, .dynstr) that a statically linked file doesn't have.
type MissingSectionError struct {
	Name string
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("cannot find section %q (is this a statically linked file?)", e.Name)
}

// RequestError describes a mutation the user asked for that is
// inconsistent with the input, as opposed to a structural ELF problem.
type RequestError struct {
	Detail string
}

func (e *RequestError) Error() string { return e.Detail }
