package archinfo

import "fmt"

// RelocType is the normalized relocation kind described in spec §3.7,
// generalized from go-obj/obj/reloc.go's RelocType (which only ever needed
// to name and size a relocation for display) to also know how to compute
// its value from S/A/P/G/L/GOT and how wide a write it performs.
type RelocType uint8

const (
	Absolute32 RelocType = iota
	AbsoluteSigned32
	Relative32
	PLT32
	GOTRelative32
	GOTIndex32
	GOTLocationRelative32
	OffsetFromGOT32
	FillGotSlot
	FillGotPltSlot
)

// Storage is the number of bytes a relocation of this type writes into its
// target section (spec §3.7 "Storage" column).
func (t RelocType) Storage() int {
	switch t {
	case FillGotSlot, FillGotPltSlot:
		return 8
	default:
		return 4
	}
}

// Signed reports whether out-of-range detection for this relocation
// should treat the 32-bit target as signed.
func (t RelocType) Signed() bool {
	switch t {
	case AbsoluteSigned32, Relative32, PLT32, GOTLocationRelative32:
		return true
	default:
		return false
	}
}

// NeedsGOTEntry reports whether a relocation of this type requires a
// per-symbol slot in .got (spec §4.11 "Relocation analysis").
func (t RelocType) NeedsGOTEntry() bool {
	switch t {
	case GOTRelative32, GOTIndex32:
		return true
	default:
		return false
	}
}

// NeedsGOTPLTEntry reports whether a relocation of this type requires a
// per-symbol slot in .got.plt (and hence a PLT stub).
func (t RelocType) NeedsGOTPLTEntry() bool { return t == PLT32 }

// NeedsGOTSection reports whether a relocation of this type requires .got
// to exist at all, even without a per-symbol entry (OffsetFromGOT32,
// GOTLocationRelative32 per spec §4.11).
func (t RelocType) NeedsGOTSection() bool {
	switch t {
	case OffsetFromGOT32, GOTLocationRelative32, GOTRelative32, GOTIndex32:
		return true
	default:
		return false
	}
}

func (t RelocType) String() string {
	switch t {
	case Absolute32:
		return "Absolute32"
	case AbsoluteSigned32:
		return "AbsoluteSigned32"
	case Relative32:
		return "Relative32"
	case PLT32:
		return "PLT32"
	case GOTRelative32:
		return "GOTRelative32"
	case GOTIndex32:
		return "GOTIndex32"
	case GOTLocationRelative32:
		return "GOTLocationRelative32"
	case OffsetFromGOT32:
		return "OffsetFromGOT32"
	case FillGotSlot:
		return "FillGotSlot"
	case FillGotPltSlot:
		return "FillGotPltSlot"
	default:
		return fmt.Sprintf("RelocType(%d)", uint8(t))
	}
}

// x86RelocTypes and x86_64RelocTypes map the raw ELF r_type values (as
// found in Elf32_Rel/Elf64_Rela entries) onto the normalized RelocType
// set. These mirror the shape of go-obj/obj/elfReloc.go's per-architecture
// maps (elfRelocsX86_64, elfRelocs386), but map onto semantics instead of
// onto a mere byte size.
//
// Raw type numbers follow the System V x86-64/i386 psABI.
const (
	rawX86_64None       = 0
	rawX86_6464         = 1
	rawX86_64PC32       = 2
	rawX86_64GOT32      = 3
	rawX86_64PLT32      = 4
	rawX86_64GlobDat    = 6
	rawX86_64JmpSlot    = 7
	rawX86_64Relative   = 8
	rawX86_64GOTPCRel   = 9
	rawX86_6432         = 10
	rawX86_6432S        = 11

	rawX86None    = 0
	rawX86_32     = 1
	rawX86PC32    = 2
	rawX86GOT32   = 3
	rawX86PLT32   = 4
	rawX86Copy    = 5
	rawX86GlobDat = 6
	rawX86JmpSlot = 7
	rawX86Relative = 8
	rawX86GOTOff  = 9
	rawX86GOTPC   = 10
)

// NormalizeReloc converts a raw ELF relocation type into the normalized
// set, per spec §4.3 step 3 ("converting raw ELF relocation types into the
// normalized set"). Unsupported types are a hard error, matching spec §7's
// "unsupported relocation type" error class.
func NormalizeReloc(machine Machine, raw uint32) (RelocType, error) {
	switch machine {
	case MachineX86_64:
		switch raw {
		case rawX86_6464:
			return Absolute32, nil // narrowed: this linker only emits 32-bit writes (spec scope)
		case rawX86_6432:
			return Absolute32, nil
		case rawX86_6432S:
			return AbsoluteSigned32, nil
		case rawX86_64PC32:
			return Relative32, nil
		case rawX86_64PLT32:
			return PLT32, nil
		case rawX86_64GOTPCRel:
			return GOTLocationRelative32, nil
		case rawX86_64GOT32:
			return GOTIndex32, nil
		case rawX86_64GlobDat:
			return FillGotSlot, nil
		case rawX86_64JmpSlot:
			return FillGotPltSlot, nil
		case rawX86_64Relative:
			return FillGotSlot, nil
		default:
			return 0, fmt.Errorf("archinfo: unsupported x86-64 relocation type %d", raw)
		}
	case MachineX86:
		switch raw {
		case rawX86_32:
			return Absolute32, nil
		case rawX86PC32:
			return Relative32, nil
		case rawX86PLT32:
			return PLT32, nil
		case rawX86GOT32:
			return GOTIndex32, nil
		case rawX86GOTOff:
			return OffsetFromGOT32, nil
		case rawX86GOTPC:
			return GOTLocationRelative32, nil
		case rawX86GlobDat:
			return FillGotSlot, nil
		case rawX86JmpSlot:
			return FillGotPltSlot, nil
		case rawX86Relative:
			return FillGotSlot, nil
		default:
			return 0, fmt.Errorf("archinfo: unsupported x86 relocation type %d", raw)
		}
	default:
		return 0, fmt.Errorf("archinfo: unsupported machine %v", machine)
	}
}
