package elf

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEndianRoundTrip(t *testing.T) {
	e, err := newEndian(Data2LSB, Class64)
	if err != nil {
		t.Fatal(err)
	}
	b := make([]byte, 8)
	e.PutUint64(b, 0x0102030405060708)
	if got := e.Uint64(b); got != 0x0102030405060708 {
		t.Fatalf("got %x", got)
	}

	be, err := newEndian(Data2MSB, Class32)
	if err != nil {
		t.Fatal(err)
	}
	b32 := make([]byte, 4)
	be.PutUint32(b32, 0xdeadbeef)
	if b32[0] != 0xde || b32[3] != 0xef {
		t.Fatalf("unexpected big-endian bytes: %x", b32)
	}
}

func TestWriWordTruncation(t *testing.T) {
	e := endian{order: binary.LittleEndian, is64: false}
	buf := make([]byte, 4)
	if err := e.wriWord(buf, math.MaxUint32); err != nil {
		t.Fatalf("expected no error for max uint32, got %v", err)
	}
	if err := e.wriWord(buf, math.MaxUint32+1); err == nil {
		t.Fatal("expected ValueTruncationError")
	} else if _, ok := err.(*ValueTruncationError); !ok {
		t.Fatalf("expected *ValueTruncationError, got %T", err)
	}
}

func TestNewEndianRejectsUnknownData(t *testing.T) {
	if _, err := newEndian(Data(0), Class64); err == nil {
		t.Fatal("expected error for unknown data encoding")
	}
}
