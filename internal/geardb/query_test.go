package geardb

import (
	"testing"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestQueryRejectsDuplicateTypes(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[datum](s)

	requirePanicIs(t, ErrDuplicateQueryType, func() {
		s.Scan(NewQuery(Read[datum](), Write[datum]()), func(RowView) {})
	})
	requirePanicIs(t, ErrDuplicateQueryType, func() {
		Each2(s, func(GearId, *datum, *datum) {})
	})
}

func TestQueryRejectsUnregisteredTypes(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[datum](s)

	requirePanicIs(t, ErrUnregisteredType, func() {
		s.Scan(NewQuery(Read[tag]()), func(RowView) {})
	})
	requirePanicIs(t, ErrUnregisteredType, func() {
		Each1(s, func(GearId, *counter) {})
	})
}

func TestQueryMatchesSupersetBlocks(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[datum](s)
	Register[tag](s)
	Register[counter](s)

	Attach(s, 1, datum{value: 1})

	Attach(s, 2, datum{value: 2})
	Attach(s, 2, tag{})

	Attach(s, 3, datum{value: 3})
	Attach(s, 3, tag{})
	Attach(s, 3, counter{})

	countOf := func(q Query) int {
		n := 0
		s.Scan(q, func(RowView) { n++ })
		return n
	}
	require.Equal(t, 3, countOf(NewQuery(Read[datum]())))
	require.Equal(t, 2, countOf(NewQuery(Read[datum](), Read[tag]())))
	require.Equal(t, 2, countOf(NewQuery(Read[tag]())))
	require.Equal(t, 1, countOf(NewQuery(Read[counter]())))
	require.Equal(t, 1, countOf(NewQuery(Read[datum](), Read[tag](), Read[counter]())))
}

func TestQueryReadOnly(t *testing.T) {
	require.True(t, NewQuery().ReadOnly())
	require.True(t, NewQuery(Read[datum](), Read[tag]()).ReadOnly())
	require.False(t, NewQuery(Read[datum](), Write[tag]()).ReadOnly())
}

func TestScanRowView(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[datum](s)

	Attach(s, 8, datum{value: 0xDDCCBBAA})

	var ids []GearId
	s.Scan(NewQuery(Read[datum]()), func(row RowView) {
		ids = append(ids, row.Id())
		raw := row.Bytes(0)
		require.Len(t, raw, 4)
		require.Equal(t, uint32(0xDDCCBBAA), *(*uint32)(unsafe.Pointer(&raw[0])))
	})
	require.Equal(t, []GearId{8}, ids)
}

func TestWideArchetypeIteration(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[datum](s)   // index 0
	Register[tag](s)     // index 1
	Register[counter](s) // index 2
	Register[gauge](s)   // index 3
	Register[badge](s)   // index 4

	const gears = 8
	for i := uint32(1); i <= gears; i++ {
		id := GearId(i)
		Attach(s, id, datum{value: i}) // the fresh-gear path stores this one
		Attach(s, id, tag{})
		Attach(s, id, counter{})
		Attach(s, id, gauge{})
		if i%2 == 0 {
			Attach(s, id, badge{})
		}
	}

	// the widened columns arrive unwritten, initialize them in place
	Each1(s, func(id GearId, v *tag) { v.nothing = uint8(id) })
	Each1(s, func(id GearId, v *counter) { v.ticks = uint64(id) * 100 })
	Each1(s, func(id GearId, v *gauge) { v.level = uint16(id) * 3 })
	serials := make(map[GearId]uuid.UUID)
	Each1(s, func(id GearId, v *badge) {
		serials[id] = uuid.New()
		v.serial = serials[id]
	})
	require.Len(t, serials, gears/2)

	visits := 0
	Each3(s, func(id GearId, d *datum, c *counter, g *gauge) {
		require.Equal(t, uint32(id), d.value)
		require.Equal(t, uint64(id)*100, c.ticks)
		require.Equal(t, uint16(id)*3, g.level)
		visits++
	})
	require.Equal(t, gears, visits)

	sum1 := uint32(0)
	sum2 := uint32(0)
	Each3(s, func(_ GearId, d *datum, _ *counter, _ *gauge) { sum1 += d.value })
	Each3(s, func(_ GearId, _ *gauge, d *datum, _ *counter) { sum2 += d.value })
	require.Equal(t, sum1, sum2)

	visits = 0
	Each4(s, func(id GearId, tg *tag, g *gauge, d *datum, c *counter) {
		require.Equal(t, uint8(id), tg.nothing)
		require.Equal(t, uint16(id)*3, g.level)
		require.Equal(t, uint32(id), d.value)
		require.Equal(t, uint64(id)*100, c.ticks)
		visits++
	})
	require.Equal(t, gears, visits)

	visits = 0
	Each5(s, func(id GearId, c *counter, b *badge, g *gauge, d *datum, tg *tag) {
		require.Zero(t, id%2)
		require.Equal(t, uint64(id)*100, c.ticks)
		require.Equal(t, serials[id], b.serial)
		require.Equal(t, uint16(id)*3, g.level)
		require.Equal(t, uint32(id), d.value)
		require.Equal(t, uint8(id), tg.nothing)
		visits++
	})
	require.Equal(t, gears/2, visits)

	requirePanicIs(t, ErrDuplicateQueryType, func() {
		Each5(s, func(GearId, *datum, *tag, *counter, *gauge, *datum) {})
	})
	checkStoreConsistent(t, s)
}

func TestIterationFollowsBlockCreationOrder(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[slab](s)

	const gears = 7 // three per block, so three blocks
	for id := GearId(1); id <= gears; id++ {
		Attach(s, id, slab{})
	}
	require.Len(t, s.blocks, 3)

	var order []GearId
	Each1(s, func(id GearId, _ *slab) { order = append(order, id) })
	require.Equal(t, []GearId{1, 2, 3, 4, 5, 6, 7}, order)
}
