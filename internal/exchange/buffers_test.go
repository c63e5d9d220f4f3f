package exchange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingAllocator fails the allocation with the given index.
type failingAllocator struct {
	*HeapAllocator
	failAt int
	allocs int
	frees  int
}

func (f *failingAllocator) Alloc(size int) ([]byte, error) {
	if f.allocs == f.failAt {
		f.allocs++
		return nil, errors.New("out of memory")
	}
	f.allocs++
	return f.HeapAllocator.Alloc(size)
}

func (f *failingAllocator) Free(buf []byte) error {
	f.frees++
	return f.HeapAllocator.Free(buf)
}

func TestAllocateRollsBackAtEveryIndex(t *testing.T) {
	const n = 8
	for k := 0; k < n; k++ {
		alloc := &failingAllocator{HeapAllocator: NewHeapAllocator(), failAt: k}

		set, err := Allocate(alloc, n, DefaultCapacity)

		require.Nil(t, set)
		require.ErrorIs(t, err, ErrAllocation)
		assert.Equal(t, k, alloc.frees, "failure at %d", k)
		assert.Zero(t, alloc.Outstanding(), "failure at %d", k)
	}
}

func TestAllocateSucceedsWhenNoFailure(t *testing.T) {
	alloc := &failingAllocator{HeapAllocator: NewHeapAllocator(), failAt: -1}

	set, err := Allocate(alloc, 4, DefaultCapacity)
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, DefaultCapacity, set.Capacity())
	assert.Equal(t, 4, alloc.Outstanding())

	require.NoError(t, set.Release())
	assert.Zero(t, alloc.Outstanding())
	assert.Equal(t, 4, alloc.frees)
}

func TestAllocateRejectsInvalidSizes(t *testing.T) {
	_, err := Allocate(NewHeapAllocator(), -1, DefaultCapacity)
	assert.ErrorIs(t, err, ErrAllocation)
	_, err = Allocate(NewHeapAllocator(), 1, 0)
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestReleaseIsIdempotent(t *testing.T) {
	alloc := &failingAllocator{HeapAllocator: NewHeapAllocator(), failAt: -1}
	set, err := Allocate(alloc, 3, DefaultCapacity)
	require.NoError(t, err)

	require.NoError(t, set.Release())
	require.NoError(t, set.Release())
	assert.True(t, set.Released())
	assert.Equal(t, 3, alloc.frees)
}

func TestReleaseFreesBuffersTheEngineCleared(t *testing.T) {
	alloc := NewHeapAllocator()
	set, err := Allocate(alloc, 3, DefaultCapacity)
	require.NoError(t, err)

	set.Slots()[1] = nil
	require.NoError(t, set.Release())
	assert.Zero(t, alloc.Outstanding())
}

func TestHeapAllocatorDetectsDoubleFree(t *testing.T) {
	alloc := NewHeapAllocator()
	buf, err := alloc.Alloc(4)
	require.NoError(t, err)

	require.NoError(t, alloc.Free(buf))
	assert.ErrorIs(t, alloc.Free(buf), ErrDoubleFree)
}

func TestPoolAllocator(t *testing.T) {
	alloc := NewPoolAllocator(DefaultCapacity)
	set, err := Allocate(alloc, 5, DefaultCapacity)
	require.NoError(t, err)
	assert.Equal(t, 5, alloc.Outstanding())

	copy(set.Slots()[0], "STALE")
	require.NoError(t, set.Release())
	assert.Zero(t, alloc.Outstanding())

	again, err := Allocate(alloc, 1, DefaultCapacity)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, DefaultCapacity), again.Slots()[0])
	require.NoError(t, again.Release())

	wider, err := Allocate(alloc, 2, DefaultCapacity+1)
	require.NoError(t, err)
	assert.Len(t, wider.Slots()[1], DefaultCapacity+1)
	require.NoError(t, wider.Release())
	assert.Zero(t, alloc.Outstanding())

	_, err = Allocate(alloc, 1, 0)
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestPoolAllocatorDoubleFreeWithOthersOut(t *testing.T) {
	alloc := NewPoolAllocator(8)
	a, err := alloc.Alloc(8)
	require.NoError(t, err)
	b, err := alloc.Alloc(8)
	require.NoError(t, err)

	require.NoError(t, alloc.Free(a))
	assert.ErrorIs(t, alloc.Free(a), ErrDoubleFree)
	assert.Equal(t, 1, alloc.Outstanding())

	c, err := alloc.Alloc(8)
	require.NoError(t, err)
	d, err := alloc.Alloc(8)
	require.NoError(t, err)
	assert.NotSame(t, &c[0], &d[0])
	assert.NotSame(t, &b[0], &c[0])
	assert.NotSame(t, &b[0], &d[0])
	assert.Equal(t, 3, alloc.Outstanding())

	for _, buf := range [][]byte{b, c, d} {
		require.NoError(t, alloc.Free(buf))
	}
	assert.Zero(t, alloc.Outstanding())
}

func TestHarvest(t *testing.T) {
	set, err := Allocate(NewHeapAllocator(), 5, 8)
	require.NoError(t, err)
	defer set.Release()

	slots := set.Slots()
	copy(slots[0], "AB123\x00")
	slots[1] = nil
	copy(slots[2], []byte{0xff, 0xfe, 0})
	// slot 3 stays zeroed: an empty but decodable string
	copy(slots[4], "IGNORED")

	got := set.Harvest(4)

	assert.Equal(t, []Entry{{Index: 0, Text: "AB123"}, {Index: 3, Text: ""}}, got)
}

func TestHarvestWithoutTerminatorUsesWholeBuffer(t *testing.T) {
	set, err := Allocate(NewHeapAllocator(), 1, 4)
	require.NoError(t, err)
	defer set.Release()

	copy(set.Slots()[0], "WXYZ")
	assert.Equal(t, []Entry{{Index: 0, Text: "WXYZ"}}, set.Harvest(10))
}

func TestWithReleasesOnError(t *testing.T) {
	alloc := NewHeapAllocator()
	boom := errors.New("boom")

	err := With(alloc, 3, DefaultCapacity, func(set *BufferSet) error {
		assert.Equal(t, 3, alloc.Outstanding())
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, alloc.Outstanding())
}
