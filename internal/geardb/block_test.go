package geardb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockCapacity(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[datum](s)   // 4 bytes, index 0
	Register[tag](s)     // 1 byte, index 1
	Register[counter](s) // 8 bytes, index 2
	Register[slab](s)    // 10000 bytes, index 3

	cases := []struct {
		name string
		mask uint64
		want uint16
	}{
		{"datum", 1 << 0, 5461},
		{"tag", 1 << 1, 10922},
		// floor(32768/7) = 4681, but padding the 4-byte column costs a slot
		{"datum+tag", 1<<0 | 1<<1, 4680},
		{"counter", 1 << 2, 3276},
		{"datum+tag+counter", 1<<0 | 1<<1 | 1<<2, 2184},
		{"slab", 1 << 3, 3},
		{"counter+slab", 1<<2 | 1<<3, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBlock(tc.mask, s.types)
			require.Equal(t, tc.want, b.max)
			require.LessOrEqual(t, layoutEnd(tc.mask, s.types, int(b.max)), blockSize)
		})
	}
}

func TestColumnBasesAreAligned(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[tag](s)     // 1 byte, index 0
	Register[counter](s) // 8 bytes, index 1

	b := newBlock(1<<0|1<<1, s.types)
	require.Equal(t, uint16(2978), b.max)
	require.Zero(t, (uintptr(b.cols[1])-uintptr(b.base))%8)
}

func TestZeroSizeColumnLayout(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[struct{}](s)

	b := newBlock(1<<0, s.types)
	require.Equal(t, uint16(blockSize/idSize), b.max)
	require.Equal(t, b.base, b.cols[0])
}

func TestArchetypeTooLargePanics(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[[40000]byte](s)

	requirePanicIs(t, ErrArchetypeTooLarge, func() {
		Attach(s, 1, [40000]byte{})
	})
}

func TestValueBytesChecksPresence(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[datum](s)
	Register[tag](s)

	Attach(s, 1, datum{value: 0x01020304})

	b := s.blocks[0]
	require.Len(t, b.valueBytes(0, 0), 4)
	require.Nil(t, b.valueBytes(1, 0), "tag column is absent from this block")
	require.Nil(t, b.valueBytes(0, 1), "slot 1 is unoccupied")
}

func TestBlockDump(t *testing.T) {
	s := NewStore(getTestLogger())
	Register[tag](s)

	Attach(s, 1, tag{nothing: 7})
	Attach(s, 2, tag{nothing: 9})

	dump := s.blocks[0].String()
	require.Contains(t, dump, "block (2/10922)")
	require.Contains(t, dump, "ids: [1 2]")
	require.Contains(t, dump, "c0: [7, 9, ]")

	require.Equal(t, dump, s.BlockDump(1))
	require.Equal(t, dump, s.BlockDump(2))
	require.Empty(t, s.BlockDump(3), "gear 3 has no records")
	require.Empty(t, s.BlockDump(0))
}
