package elf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValueTruncationError is returned by the endian writer when a host value
// does not round-trip through the destination width.
type ValueTruncationError struct {
	Value interface{}
	Width int
}

func (e *ValueTruncationError) Error() string {
	return fmt.Sprintf("value %v does not fit in %d bytes", e.Value, e.Width)
}

// endian is the only place in the package that is allowed to know byte
// order. Every other file reads and writes fields through it.
type endian struct {
	order binary.ByteOrder
	is64  bool
}

func newEndian(data Data, class Class) (endian, error) {
	e := endian{is64: class == Class64}
	switch data {
	case Data2LSB:
		e.order = binary.LittleEndian
	case Data2MSB:
		e.order = binary.BigEndian
	default:
		return e, fmt.Errorf("unsupported data encoding %d", data)
	}
	return e, nil
}

func (e endian) Uint16(b []byte) uint16 { return e.order.Uint16(b) }
func (e endian) Uint32(b []byte) uint32 { return e.order.Uint32(b) }
func (e endian) Uint64(b []byte) uint64 { return e.order.Uint64(b) }

func (e endian) PutUint16(b []byte, v uint16) { e.order.PutUint16(b, v) }
func (e endian) PutUint32(b []byte, v uint32) { e.order.PutUint32(b, v) }
func (e endian) PutUint64(b []byte, v uint64) { e.order.PutUint64(b, v) }

// rdiWord reads a width-appropriate "natural word" (32-bit on ELF32, 64-bit
// on ELF64) and widens it to uint64.
func (e endian) rdiWord(b []byte) uint64 {
	if e.is64 {
		return e.Uint64(b)
	}
	return uint64(e.Uint32(b))
}

// wriWord writes a uint64 host value into a width-appropriate natural word,
// failing with ValueTruncationError if it doesn't fit in 32 bits on ELF32.
func (e endian) wriWord(b []byte, v uint64) error {
	if e.is64 {
		e.PutUint64(b, v)
		return nil
	}
	if v > math.MaxUint32 {
		return &ValueTruncationError{Value: v, Width: 4}
	}
	e.PutUint32(b, uint32(v))
	return nil
}

// wordSize is sizeof(Elf32_Word) or sizeof(Elf64_Xword).
func (e endian) wordSize() int {
	if e.is64 {
		return 8
	}
	return 4
}
