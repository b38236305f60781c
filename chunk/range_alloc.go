package chunk

import (
	"fmt"
	"sync"
)

// Range is a half-open byte range within a pool buffer.
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) Size() uint64 {
	return r.End - r.Start
}

// AllocationError reports pool exhaustion. It is fatal to the bake attempt
// that hit it; a silently missing range would turn into a stale or
// out-of-bounds draw.
type AllocationError struct {
	Requested uint64
	Free      uint64
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("buffer pool exhausted: requested %d bytes, %d free", e.Requested, e.Free)
}

// RangeAllocator hands out non-overlapping byte ranges from a fixed-size
// pool. Allocate and Release are atomic with respect to each other; a
// single lock guards the free list.
type RangeAllocator struct {
	mu   sync.Mutex
	free []Range // sorted by Start, non-adjacent
	size uint64
}

func NewRangeAllocator(size uint64) *RangeAllocator {
	return &RangeAllocator{
		free: []Range{{Start: 0, End: size}},
		size: size,
	}
}

// Allocate carves the first free range large enough. Zero-size requests
// succeed with an empty range.
func (a *RangeAllocator) Allocate(size uint64) (Range, error) {
	if size == 0 {
		return Range{}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.free {
		if a.free[i].Size() < size {
			continue
		}
		granted := Range{Start: a.free[i].Start, End: a.free[i].Start + size}
		if a.free[i].Size() == size {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i].Start = granted.End
		}
		return granted, nil
	}

	return Range{}, &AllocationError{Requested: size, Free: a.freeCapacityLocked()}
}

// Release returns a range to the pool, merging with adjacent free ranges.
// Releasing an empty range is a no-op.
func (a *RangeAllocator) Release(r Range) {
	if r.Size() == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Insert position by Start.
	i := 0
	for i < len(a.free) && a.free[i].Start < r.Start {
		i++
	}
	a.free = append(a.free, Range{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = r

	// Coalesce with the right neighbor, then the left.
	if i+1 < len(a.free) && a.free[i].End == a.free[i+1].Start {
		a.free[i].End = a.free[i+1].End
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].End == a.free[i].Start {
		a.free[i-1].End = a.free[i].End
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// FreeCapacity is the total of all free ranges.
func (a *RangeAllocator) FreeCapacity() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeCapacityLocked()
}

func (a *RangeAllocator) freeCapacityLocked() uint64 {
	var total uint64
	for _, r := range a.free {
		total += r.Size()
	}
	return total
}
