package archinfo

// bucketLadder is the predefined increasing bucket-count ladder from spec
// §4.10: the smallest entry whose threshold is >= N wins.
var bucketLadder = []uint32{
	1, 3, 17, 37, 67, 97, 131, 197, 263, 521, 1031, 2053, 4099, 8209, 16411,
	32771, 65537, 131101, 262147,
}

// HashBuckets picks the SysV hash bucket count for n dynamic symbols.
func HashBuckets(n int) uint32 {
	for _, b := range bucketLadder {
		if uint32(n) <= b {
			return b
		}
	}
	return bucketLadder[len(bucketLadder)-1]
}

// ElfHash is the SysV ELF string hash function (spec §4.10, §8.2). Known
// values: ElfHash("") == 0, ElfHash("printf") == 0x077905a6,
// ElfHash("exit") == 0x0006cf04, ElfHash("syscall") == 0x0b09985c.
func ElfHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = (h << 4) + uint32(name[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
		}
		h &^= 0xf0000000
	}
	return h
}

// SysvHash is the built SysV hash table (§4.10): nbucket buckets plus one
// chain slot per dynamic symbol (including the null symbol at index 0).
type SysvHash struct {
	Buckets []uint32
	Chain   []uint32
}

// BuildSysvHash builds the hash table for an ordered list of dynamic
// symbol names, names[0] being the reserved null symbol (which 	contributes
// a chain entry but is never hashed into a bucket).
func BuildSysvHash(names []string) SysvHash {
	n := len(names)
	nbucket := HashBuckets(n)
	h := SysvHash{
		Buckets: make([]uint32, nbucket),
		Chain:   make([]uint32, n),
	}
	for p := 1; p < n; p++ {
		b := ElfHash(names[p]) % nbucket
		h.Chain[p] = h.Buckets[b]
		h.Buckets[b] = uint32(p)
	}
	return h
}

// Lookup walks the hash table looking for name, returning its dynamic
// symbol index and true, or (0, false) if absent. names must be the same
// slice BuildSysvHash was constructed from.
func (h SysvHash) Lookup(names []string, name string) (uint32, bool) {
	if len(h.Buckets) == 0 {
		return 0, false
	}
	b := ElfHash(name) % uint32(len(h.Buckets))
	for p := h.Buckets[b]; p != 0; p = h.Chain[p] {
		if int(p) < len(names) && names[p] == name {
			return p, true
		}
	}
	return 0, false
}
