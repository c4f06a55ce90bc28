// Package archinfo describes the x86 and x86-64 architectures this linker
// targets: word size/byte order (generalized from go-obj/arch.Layout),
// and the relocation/GOT/PLT semantics go-obj never needed because it only
// ever reads already-linked binaries for display.
//
// go-obj depends on golang.org/x/arch for its own architecture decoding;
// this package keeps that dependency and extends the two Arch values it
// defines (AMD64, I386) with the extra tables a linker - rather than a
// browser - needs.
package archinfo

import (
	"encoding/binary"
	"fmt"

	_ "golang.org/x/arch/x86/x86asm" // pulled in for the x86 instruction encodings PLT codegen borrows constants from
)

// Class is the ELF file class (word size discriminator).
type Class uint8

const (
	Class32 Class = 1
	Class64 Class = 2
)

// Machine identifies a target architecture.
type Machine uint8

const (
	MachineX86    Machine = 1
	MachineX86_64 Machine = 2
)

func (m Machine) String() string {
	switch m {
	case MachineX86:
		return "x86"
	case MachineX86_64:
		return "x86-64"
	default:
		return fmt.Sprintf("machine(%d)", uint8(m))
	}
}

// Layout describes the byte order and word size of an architecture. It is
// a direct generalization of go-obj/arch.Layout, which only ever needed to
// decode already-linked integers for display; this adds WriteWord since
// the emitter needs to go the other direction too.
type Layout struct {
	order    uint8 // 0 = little endian (the only order spec.md supports)
	wordSize uint8
}

// NewLayout returns the Layout for class/order. Only little-endian is
// supported (spec §1 "little-endian only"); any other order panics, same
// as go-obj/arch.NewLayout's invariant check.
func NewLayout(class Class, order binary.ByteOrder) Layout {
	if order != binary.LittleEndian {
		panic(fmt.Errorf("archinfo: unsupported byte order %v", order))
	}
	ws := 4
	if class == Class64 {
		ws = 8
	}
	return Layout{order: 0, wordSize: uint8(ws)}
}

func (l Layout) Order() binary.ByteOrder { return binary.LittleEndian }
func (l Layout) WordSize() int           { return int(l.wordSize) }

func (l Layout) Uint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func (l Layout) Uint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func (l Layout) Uint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func (l Layout) PutUint16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func (l Layout) PutUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func (l Layout) PutUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// Word reads a wordSize-sized unsigned integer from b.
func (l Layout) Word(b []byte) uint64 {
	switch l.wordSize {
	case 8:
		return l.Uint64(b)
	case 4:
		return uint64(l.Uint32(b))
	}
	panic("archinfo: unsupported word size")
}

// PutWord writes v as a wordSize-sized unsigned integer into b.
func (l Layout) PutWord(b []byte, v uint64) {
	switch l.wordSize {
	case 8:
		l.PutUint64(b, v)
	case 4:
		l.PutUint32(b, uint32(v))
	default:
		panic("archinfo: unsupported word size")
	}
}

// Env is the environment tuple every input (and the output) must agree on,
// per spec §3.3/§4.2 "Environment check".
type Env struct {
	Class   Class
	Machine Machine
}

func (e Env) Layout() Layout { return NewLayout(e.Class, binary.LittleEndian) }

func (e Env) String() string {
	bits := 32
	if e.Class == Class64 {
		bits = 64
	}
	return fmt.Sprintf("%s-%dbit", e.Machine, bits)
}

// Equal reports whether e and o describe the same environment, the check
// spec §4.2 requires every loaded input to pass against the first.
func (e Env) Equal(o Env) bool { return e == o }

// Arch is a convenience bundle of an Env plus its derived Layout,
// generalizing go-obj/arch.Arch (which additionally carried a GoArch
// string and MinFrameSize irrelevant to a linker).
type Arch struct {
	Env
	Layout Layout
}

var (
	X86    = Arch{Env{Class32, MachineX86}, NewLayout(Class32, binary.LittleEndian)}
	X86_64 = Arch{Env{Class64, MachineX86_64}, NewLayout(Class64, binary.LittleEndian)}
)

// PageSize is the page size used for segment alignment (spec §4.13).
const PageSize = 0x1000

// BaseAddress is the load address of the first allocated segment in a
// PositionDependent executable (spec §4.13).
const BaseAddress = 0x400000
