package archinfo

// PLTEntrySize is the fixed size, in bytes, of the PLT header and of every
// per-symbol PLT stub (spec §4.11 "16-byte header", "16-byte stub", and
// the invariant in spec §8.1 "plt.len() % 16 == 0").
const PLTEntrySize = 16

// PLTHeader returns the bytes of the 16-byte PLT header for machine,
// assuming it will be placed such that got.plt is reachable the way the
// architecture needs (RIP-relative on x86-64, via an ebx-relative
// displacement supplied by the caller on x86; x86's displacement slot is
// left zeroed here and patched by the relocator the same way any other
// PLT32-style fixup is, since computing it requires the final layout).
func PLTHeader(m Machine) []byte {
	switch m {
	case MachineX86_64:
		// push qword [rip+disp32]   ; got.plt[1] (module id)
		// jmp  qword [rip+disp32]   ; got.plt[2] (resolver)
		// nop dword [rax+0]        ; one 4-byte nop as padding
		return []byte{
			0xff, 0x35, 0, 0, 0, 0, // push [rip+disp32]
			0xff, 0x25, 0, 0, 0, 0, // jmp [rip+disp32]
			0x0f, 0x1f, 0x40, 0x00, // nop dword [rax+0] (4-byte nop)
		}
	case MachineX86:
		// push dword [ebx+disp32]
		// jmp  dword [ebx+disp32]
		// nop * 4
		return []byte{
			0xff, 0xb3, 0, 0, 0, 0, // push [ebx+disp32]
			0xff, 0xa3, 0, 0, 0, 0, // jmp [ebx+disp32]
			0x90, 0x90, 0x90, 0x90,
		}
	default:
		panic("archinfo: unsupported machine for PLT header")
	}
}

// PLTStub returns the bytes of a 16-byte per-symbol PLT stub for machine.
// The displacement/index fields are left zeroed; the relocator fills them
// in once the GOT slot address and header offset are known, the same way
// it fills any other PLT32-class relocation.
func PLTStub(m Machine) []byte {
	switch m {
	case MachineX86_64:
		return []byte{
			0xff, 0x25, 0, 0, 0, 0, // jmp [rip+disp32]      -> got.plt[slot]
			0x68, 0, 0, 0, 0, // push imm32             -> relocation index
			0xe9, 0, 0, 0, 0, // jmp rel32              -> PLT header
		}
	case MachineX86:
		return []byte{
			0xff, 0xa3, 0, 0, 0, 0, // jmp [ebx+disp32]
			0x68, 0, 0, 0, 0, // push imm32
			0xe9, 0, 0, 0, 0, // jmp rel32
		}
	default:
		panic("archinfo: unsupported machine for PLT stub")
	}
}

// GOTEntrySize is the size, in bytes, of a single .got or .got.plt slot:
// one architecture word.
func GOTEntrySize(l Layout) int { return l.WordSize() }
