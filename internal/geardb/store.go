// Package geardb is an archetype-based columnar store: typed plain-data
// records attached to 16-bit gear ids, grouped into fixed-size arena blocks
// by record-type combination for fast bulk iteration.
package geardb

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// Store owns the registry, the arena blocks and the location table. Mutating
// operations (Register, Attach, Detach, RemoveAll) need exclusive access for
// their duration and leave no partially-migrated state behind; queries alone
// may run concurrently with other queries.
type Store struct {
	types      []recordType
	blocks     []*dataBlock
	blockMasks []uint64
	lookup     locationTable

	sugar *zap.SugaredLogger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		lookup: newLocationTable(),
		sugar:  logger.Sugar(),
	}
}

// Attach ensures gear id carries a record of type T, migrating the gear to a
// block of the widened archetype when T is new for it.
//
// Only the first attach of a gear that had no records at all stores the
// supplied value: re-attaching a type the gear already carries changes
// nothing, and attaching a new type onto a gear with existing records
// relocates the existing columns but leaves the new column unwritten.
// Callers wanting update semantics must write through a query. Kept exactly
// as the engine this descends from behaves; pending product-owner
// clarification.
func Attach[T any](s *Store, id GearId, value T) {
	typeIdx := s.mustTypeIndex(typeOf[T]())
	s.checkId(id)

	bit := uint64(1) << uint(typeIdx)
	entry := s.lookup.entry(id)
	if entry.present() {
		mask := s.blockMasks[entry.block]
		if dest := mask | bit; dest != mask {
			s.moveBetweenBlocks(entry.block, entry.slot(), s.ensureBlock(dest))
		}
		return
	}

	destIdx := s.ensureBlock(bit)
	b := s.blocks[destIdx]
	slot := b.count
	*(*T)(b.valuePtr(typeIdx, slot)) = value
	b.gearIds()[slot] = id
	s.lookup.set(id, destIdx, slot)
	b.count++
}

// Detach removes type T's record from gear id. Detaching a type the gear
// does not carry, or from a gear with no records, is a no-op; detaching the
// last remaining record removes the gear entirely.
func Detach[T any](s *Store, id GearId) {
	typeIdx := s.mustTypeIndex(typeOf[T]())
	s.checkId(id)

	entry := s.lookup.entry(id)
	if !entry.present() {
		return
	}
	mask := s.blockMasks[entry.block]
	dest := mask &^ (uint64(1) << uint(typeIdx))
	switch {
	case dest == mask:
		// the gear never carried T; its archetype already matches
	case dest == 0:
		s.removeFromBlock(entry.block, entry.slot())
	default:
		s.moveBetweenBlocks(entry.block, entry.slot(), s.ensureBlock(dest))
	}
}

// RemoveAll discards every record attached to gear id. Attaching afterwards
// behaves as for a brand-new gear.
func (s *Store) RemoveAll(id GearId) {
	s.checkId(id)
	if entry := s.lookup.entry(id); entry.present() {
		s.removeFromBlock(entry.block, entry.slot())
	}
}

// BlockDump renders the block currently holding gear id, for verification
// mismatch reports. Empty when the gear has no records.
func (s *Store) BlockDump(id GearId) string {
	if id == 0 {
		return ""
	}
	entry := s.lookup.entry(id)
	if !entry.present() {
		return ""
	}
	return s.blocks[entry.block].String()
}

// maxBlocks caps the append-only block pool: location entries address blocks
// by uint16 index, so a larger pool would wrap and alias entries.
const maxBlocks = 65536

// ensureBlock returns the index of a block with exactly this mask and a free
// slot, allocating one when none exists. The block pool only ever grows;
// blocks are never freed, merged or rekeyed.
func (s *Store) ensureBlock(mask uint64) uint16 {
	for i, m := range s.blockMasks {
		if m == mask && !s.blocks[i].isFull() {
			return uint16(i)
		}
	}
	if len(s.blocks) >= maxBlocks {
		panic(fmt.Errorf("%w: %d blocks allocated", ErrBlockLimit, len(s.blocks)))
	}
	b := newBlock(mask, s.types)
	s.blocks = append(s.blocks, b)
	s.blockMasks = append(s.blockMasks, mask)
	idx := uint16(len(s.blocks) - 1)
	s.sugar.Debugw("new block", "block", idx, "mask", mask, "maxElements", b.max)
	return idx
}

// removeFromBlock vacates one slot by swap-removal: the last occupied slot's
// bytes land in the vacated slot (skipped when vacating the last slot), the
// relocated gear's location entry is repointed, the vacated gear's entry is
// cleared and the count drops. Slots [0, count) stay dense throughout.
func (s *Store) removeFromBlock(blockIdx, slot uint16) {
	b := s.blocks[blockIdx]
	last := b.count - 1

	if slot < last {
		for i := range b.cols {
			if b.cols[i] != nil && b.sizes[i] != 0 {
				memCopy(b.valuePtr(i, slot), b.valuePtr(i, last), uintptr(b.sizes[i]))
			}
		}
	}

	ids := b.gearIds()
	s.lookup.clear(ids[slot])
	if slot < last {
		relocated := ids[last]
		ids[slot] = relocated
		s.lookup.set(relocated, blockIdx, slot)
	}
	b.count--
}

// moveBetweenBlocks relocates the gear at (src, slot) into a freshly
// appended slot of dest. Every column present in both masks is copied
// forward, so attach migrations carry the whole source mask and detach
// migrations carry exactly the surviving types; the source-side swap-removal
// copy is folded into the same column pass. Source and destination must be
// distinct blocks, which keeps the copies from aliasing.
func (s *Store) moveBetweenBlocks(srcIdx, slot, destIdx uint16) {
	if srcIdx == destIdx {
		panic("geardb: cross-block move within a single block")
	}
	src, dest := s.blocks[srcIdx], s.blocks[destIdx]
	destMask := s.blockMasks[destIdx]

	destSlot := dest.count
	last := src.count - 1
	for i := range src.cols {
		if src.cols[i] == nil || src.sizes[i] == 0 {
			continue
		}
		size := uintptr(src.sizes[i])
		if destMask&(1<<uint(i)) != 0 {
			memCopy(dest.valuePtr(i, destSlot), src.valuePtr(i, slot), size)
		}
		if slot < last {
			memCopy(src.valuePtr(i, slot), src.valuePtr(i, last), size)
		}
	}

	ids := src.gearIds()
	moving := ids[slot]
	if slot < last {
		relocated := ids[last]
		ids[slot] = relocated
		s.lookup.set(relocated, srcIdx, slot)
	}
	src.count--

	dest.gearIds()[destSlot] = moving
	s.lookup.set(moving, destIdx, destSlot)
	dest.count++
}

func (s *Store) mustTypeIndex(t reflect.Type) int {
	idx := s.typeIndex(t)
	if idx < 0 {
		panic(fmt.Errorf("%w: %s", ErrUnregisteredType, t))
	}
	return idx
}

func (s *Store) checkId(id GearId) {
	if id == 0 {
		panic(fmt.Errorf("%w: 0", ErrIdOutOfRange))
	}
}
