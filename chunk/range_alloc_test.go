package chunk

import (
	"errors"
	"testing"
)

func TestRangeAllocator_FirstFit(t *testing.T) {
	a := NewRangeAllocator(100)

	r1, err := a.Allocate(40)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if r1.Start != 0 || r1.End != 40 {
		t.Errorf("Expected [0,40), got [%d,%d)", r1.Start, r1.End)
	}

	r2, err := a.Allocate(60)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if r2.Start != 40 || r2.End != 100 {
		t.Errorf("Expected [40,100), got [%d,%d)", r2.Start, r2.End)
	}

	if a.FreeCapacity() != 0 {
		t.Errorf("Expected pool exhausted, %d free", a.FreeCapacity())
	}
}

func TestRangeAllocator_Exhaustion(t *testing.T) {
	a := NewRangeAllocator(10)

	if _, err := a.Allocate(8); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	_, err := a.Allocate(4)
	var allocErr *AllocationError
	if !errors.As(err, &allocErr) {
		t.Fatalf("Expected AllocationError, got %v", err)
	}
	if allocErr.Requested != 4 || allocErr.Free != 2 {
		t.Errorf("Expected requested=4 free=2, got requested=%d free=%d", allocErr.Requested, allocErr.Free)
	}
}

func TestRangeAllocator_ReleaseCoalesces(t *testing.T) {
	a := NewRangeAllocator(100)

	r1, _ := a.Allocate(20)
	r2, _ := a.Allocate(20)
	r3, _ := a.Allocate(20)

	// Free the middle, then the left and right. All three must merge back
	// with the tail so a full-size allocation succeeds again.
	a.Release(r2)
	a.Release(r1)
	a.Release(r3)

	if a.FreeCapacity() != 100 {
		t.Fatalf("Expected 100 free after releases, got %d", a.FreeCapacity())
	}

	full, err := a.Allocate(100)
	if err != nil {
		t.Fatalf("Expected single coalesced range, got %v", err)
	}
	if full.Start != 0 || full.End != 100 {
		t.Errorf("Expected [0,100), got [%d,%d)", full.Start, full.End)
	}
}

func TestRangeAllocator_ReuseAfterRelease(t *testing.T) {
	a := NewRangeAllocator(100)

	r1, _ := a.Allocate(30)
	_, _ = a.Allocate(30)
	a.Release(r1)

	// First fit lands in the freed hole.
	r3, err := a.Allocate(10)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if r3.Start != 0 {
		t.Errorf("Expected reuse at 0, got %d", r3.Start)
	}
}

func TestRangeAllocator_ZeroSize(t *testing.T) {
	a := NewRangeAllocator(10)

	r, err := a.Allocate(0)
	if err != nil {
		t.Fatalf("Zero-size allocate failed: %v", err)
	}
	if r.Size() != 0 {
		t.Errorf("Expected empty range, got size %d", r.Size())
	}

	a.Release(r)
	if a.FreeCapacity() != 10 {
		t.Errorf("Empty release changed capacity: %d", a.FreeCapacity())
	}
}
