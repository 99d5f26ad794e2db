package geardb

import (
	"fmt"
	"strings"
	"unsafe"
)

// blockSize is the fixed byte budget of one arena block.
const blockSize = 32768

const idSize = int(unsafe.Sizeof(GearId(0)))

// dataBlock is one arena holding the records of gears sharing an archetype:
// a gear-id array first, then one contiguous column per record type present
// in the block's mask, ascending by type index. Slots [0, count) of the id
// array and of every column describe the same gears in lock-step.
type dataBlock struct {
	max   uint16
	count uint16
	words []uint64 // backing memory; uint64 so the base is 8-byte aligned
	base  unsafe.Pointer
	cols  [maxRecordTypes]unsafe.Pointer // nil when the type is absent
	sizes [maxRecordTypes]uint16
}

// newBlock lays out a block for the given archetype mask. Capacity is
// floor(blockSize / (sum of present sizes + id size)), lowered only in the
// rare case alignment padding between columns overflows the budget. Panics
// with ErrArchetypeTooLarge when not even one gear fits.
func newBlock(mask uint64, types []recordType) *dataBlock {
	perGear := idSize
	for i := range types {
		if mask&(1<<uint(i)) != 0 {
			perGear += int(types[i].size)
		}
	}

	max := blockSize / perGear
	for max > 0 && layoutEnd(mask, types, max) > blockSize {
		max--
	}
	if max == 0 {
		panic(fmt.Errorf("%w: mask %#x needs %d bytes per gear", ErrArchetypeTooLarge, mask, perGear))
	}

	b := &dataBlock{
		max:   uint16(max),
		words: make([]uint64, blockSize/8),
	}
	b.base = unsafe.Pointer(&b.words[0])

	offset := idSize * max
	for i := range types {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		b.sizes[i] = types[i].size
		if types[i].size == 0 {
			// a zero-size column owns no bytes; parking it at the base keeps
			// the pointer inside the allocation even in a full block
			b.cols[i] = b.base
			continue
		}
		offset = alignUp(offset, int(types[i].align))
		b.cols[i] = unsafe.Add(b.base, offset)
		offset += int(types[i].size) * max
	}
	return b
}

// layoutEnd computes where the last column would end for a candidate
// capacity, with each column base rounded up to its type's alignment.
func layoutEnd(mask uint64, types []recordType, max int) int {
	offset := idSize * max
	for i := range types {
		if mask&(1<<uint(i)) == 0 || types[i].size == 0 {
			continue
		}
		offset = alignUp(offset, int(types[i].align))
		offset += int(types[i].size) * max
	}
	return offset
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// gearIds returns the identifier array over the block's full capacity;
// only [0, count) hold live gears.
func (b *dataBlock) gearIds() []GearId {
	return unsafe.Slice((*GearId)(b.base), int(b.max))
}

func (b *dataBlock) isFull() bool {
	return b.count == b.max
}

// valuePtr addresses the stored value of type index i at slot. Callers
// guarantee the type is present and the slot occupied.
func (b *dataBlock) valuePtr(i int, slot uint16) unsafe.Pointer {
	return unsafe.Add(b.cols[i], uintptr(slot)*uintptr(b.sizes[i]))
}

// valueBytes returns the stored bytes of type index i at slot, or nil when
// the type is absent from the block or the slot is unoccupied. Byte-level
// access goes through here or through the typed Each helpers, nowhere else.
func (b *dataBlock) valueBytes(i int, slot uint16) []byte {
	if b.cols[i] == nil || slot >= b.count {
		return nil
	}
	return unsafe.Slice((*byte)(b.valuePtr(i, slot)), int(b.sizes[i]))
}

// memCopy moves size raw bytes between column slots.
func memCopy(dst, src unsafe.Pointer, size uintptr) {
	copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(src), size))
}

// String dumps occupancy, ids and raw column bytes. The checker prints this
// on verification mismatches.
func (b *dataBlock) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "block (%d/%d) {\n", b.count, b.max)
	fmt.Fprintf(&sb, "\tids: %v\n", b.gearIds()[:b.count])
	for i := range b.cols {
		if b.cols[i] == nil {
			continue
		}
		fmt.Fprintf(&sb, "\tc%d: [", i)
		for slot := uint16(0); slot < b.count; slot++ {
			for _, v := range b.valueBytes(i, slot) {
				fmt.Fprintf(&sb, "%d, ", v)
			}
		}
		sb.WriteString("]\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}
