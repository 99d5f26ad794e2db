package geardb

// GearId names one gear (entity). Valid ids are 1..65535; the caller
// allocates them. Zero marks absence and is rejected by mutating operations.
type GearId uint16

// maxGearId is the identifier-space ceiling and the location table length.
const maxGearId = 65535

// lookupEntry is one location-table cell: the block and slot currently
// holding a gear's records. slotPlusOne zero means the gear has none.
type lookupEntry struct {
	slotPlusOne uint16
	block       uint16
}

func makeEntry(block, slot uint16) lookupEntry {
	return lookupEntry{slotPlusOne: slot + 1, block: block}
}

func (e lookupEntry) present() bool { return e.slotPlusOne != 0 }

func (e lookupEntry) slot() uint16 { return e.slotPlusOne - 1 }

// locationTable maps every representable gear id to its current (block,
// slot). Preallocated for the whole id range regardless of occupancy: O(1)
// by direct indexing on id-1, no hashing.
type locationTable []lookupEntry

func newLocationTable() locationTable {
	return make(locationTable, maxGearId)
}

func (lt locationTable) entry(id GearId) lookupEntry {
	return lt[int(id)-1]
}

func (lt locationTable) set(id GearId, block, slot uint16) {
	lt[int(id)-1] = makeEntry(block, slot)
}

func (lt locationTable) clear(id GearId) {
	lt[int(id)-1] = lookupEntry{}
}
