package geardb

import (
	"fmt"
	"reflect"
	"unsafe"
)

// AccessMode declares how a query term touches its column.
type AccessMode uint8

const (
	ReadAccess AccessMode = iota
	WriteAccess
)

// Term is one requested record type in a query shape.
type Term struct {
	typ  reflect.Type
	mode AccessMode
}

// Read requests type T with shared access.
func Read[T any]() Term { return Term{typ: typeOf[T](), mode: ReadAccess} }

// Write requests type T with exclusive access.
func Write[T any]() Term { return Term{typ: typeOf[T](), mode: WriteAccess} }

// Query is an ordered list of requested record types, for callers whose
// shapes are only known at run time. The typed Each helpers build theirs
// internally.
type Query struct {
	terms []Term
}

func NewQuery(terms ...Term) Query {
	return Query{terms: terms}
}

// ReadOnly reports whether every term uses ReadAccess. Only read-only
// queries may run concurrently with other queries, and nothing may run
// concurrently with a mutating operation.
func (q Query) ReadOnly() bool {
	for _, t := range q.terms {
		if t.mode != ReadAccess {
			return false
		}
	}
	return true
}

// queryPlan is a query resolved against the registry: per-term type indices
// plus the selector mask a block must cover to match.
type queryPlan struct {
	indices  []int
	selector uint64
}

// plan resolves terms, rejecting unregistered and duplicated types before
// any column is touched.
func (s *Store) plan(terms []Term) queryPlan {
	p := queryPlan{indices: make([]int, len(terms))}
	for k, term := range terms {
		idx := s.typeIndex(term.typ)
		if idx < 0 {
			panic(fmt.Errorf("%w: %s", ErrUnregisteredType, term.typ))
		}
		bit := uint64(1) << uint(idx)
		if p.selector&bit != 0 {
			panic(fmt.Errorf("%w: %s", ErrDuplicateQueryType, term.typ))
		}
		p.indices[k] = idx
		p.selector |= bit
	}
	return p
}

// matchBlocks visits, in creation order, every block whose archetype mask
// covers the selector; the block may carry additional, unrequested types.
func (s *Store) matchBlocks(selector uint64, visit func(*dataBlock)) {
	for i, mask := range s.blockMasks {
		if mask&selector == selector {
			visit(s.blocks[i])
		}
	}
}

// RowView is the per-slot view handed to Scan callbacks. It is valid only
// for the duration of the callback: any mutating operation invalidates the
// pointers behind it.
type RowView struct {
	id    GearId
	ptrs  []unsafe.Pointer
	sizes []uint16
}

// Id returns the gear occupying the row.
func (r RowView) Id() GearId { return r.id }

// Bytes returns the raw stored value of the k-th query term.
func (r RowView) Bytes(k int) []byte {
	return unsafe.Slice((*byte)(r.ptrs[k]), int(r.sizes[k]))
}

// Scan runs a dynamic-shape query: matching blocks in creation order, each
// occupied slot in index order. Slot order is not stable across mutating
// operations, so callers must not assume a gear keeps its position between
// scans.
func (s *Store) Scan(q Query, visit func(RowView)) {
	p := s.plan(q.terms)

	ptrs := make([]unsafe.Pointer, len(q.terms))
	sizes := make([]uint16, len(q.terms))
	for k, idx := range p.indices {
		sizes[k] = s.types[idx].size
	}

	s.matchBlocks(p.selector, func(b *dataBlock) {
		ids := b.gearIds()
		for slot := uint16(0); slot < b.count; slot++ {
			for k, idx := range p.indices {
				ptrs[k] = b.valuePtr(idx, slot)
			}
			visit(RowView{id: ids[slot], ptrs: ptrs, sizes: sizes})
		}
	})
}

// Each1 invokes fn once per gear carrying A. The callback may write through
// the pointers; it must not call mutating store operations, which would
// relocate the memory under it.
func Each1[A any](s *Store, fn func(GearId, *A)) {
	p := s.plan([]Term{Write[A]()})
	i0 := p.indices[0]
	s.matchBlocks(p.selector, func(b *dataBlock) {
		ids := b.gearIds()
		for slot := uint16(0); slot < b.count; slot++ {
			fn(ids[slot], (*A)(b.valuePtr(i0, slot)))
		}
	})
}

// Each2 invokes fn once per gear carrying both A and B.
func Each2[A, B any](s *Store, fn func(GearId, *A, *B)) {
	p := s.plan([]Term{Write[A](), Write[B]()})
	i0, i1 := p.indices[0], p.indices[1]
	s.matchBlocks(p.selector, func(b *dataBlock) {
		ids := b.gearIds()
		for slot := uint16(0); slot < b.count; slot++ {
			fn(ids[slot], (*A)(b.valuePtr(i0, slot)), (*B)(b.valuePtr(i1, slot)))
		}
	})
}

// Each3 invokes fn once per gear carrying A, B and C.
func Each3[A, B, C any](s *Store, fn func(GearId, *A, *B, *C)) {
	p := s.plan([]Term{Write[A](), Write[B](), Write[C]()})
	i0, i1, i2 := p.indices[0], p.indices[1], p.indices[2]
	s.matchBlocks(p.selector, func(b *dataBlock) {
		ids := b.gearIds()
		for slot := uint16(0); slot < b.count; slot++ {
			fn(ids[slot],
				(*A)(b.valuePtr(i0, slot)),
				(*B)(b.valuePtr(i1, slot)),
				(*C)(b.valuePtr(i2, slot)))
		}
	})
}

// Each4 invokes fn once per gear carrying A, B, C and D.
func Each4[A, B, C, D any](s *Store, fn func(GearId, *A, *B, *C, *D)) {
	p := s.plan([]Term{Write[A](), Write[B](), Write[C](), Write[D]()})
	i0, i1, i2, i3 := p.indices[0], p.indices[1], p.indices[2], p.indices[3]
	s.matchBlocks(p.selector, func(b *dataBlock) {
		ids := b.gearIds()
		for slot := uint16(0); slot < b.count; slot++ {
			fn(ids[slot],
				(*A)(b.valuePtr(i0, slot)),
				(*B)(b.valuePtr(i1, slot)),
				(*C)(b.valuePtr(i2, slot)),
				(*D)(b.valuePtr(i3, slot)))
		}
	})
}

// Each5 invokes fn once per gear carrying all five types.
func Each5[A, B, C, D, E any](s *Store, fn func(GearId, *A, *B, *C, *D, *E)) {
	p := s.plan([]Term{Write[A](), Write[B](), Write[C](), Write[D](), Write[E]()})
	i0, i1, i2, i3, i4 := p.indices[0], p.indices[1], p.indices[2], p.indices[3], p.indices[4]
	s.matchBlocks(p.selector, func(b *dataBlock) {
		ids := b.gearIds()
		for slot := uint16(0); slot < b.count; slot++ {
			fn(ids[slot],
				(*A)(b.valuePtr(i0, slot)),
				(*B)(b.valuePtr(i1, slot)),
				(*C)(b.valuePtr(i2, slot)),
				(*D)(b.valuePtr(i3, slot)),
				(*E)(b.valuePtr(i4, slot)))
		}
	})
}
