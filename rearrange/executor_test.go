package rearrange

import (
	"testing"
	"unsafe"

	"github.com/InfiniTensor/mem-rearrange/layout"
	"github.com/InfiniTensor/mem-rearrange/rearrange/contrib/workerpool"
)

// fillBytes returns a buffer of n bytes with a distinctive, position-dependent pattern.
func fillBytes(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*31 + 7)
	}
	return buf
}

func runLaunch(t *testing.T, p *Plan, pool *workerpool.Pool, dst, src []byte) {
	t.Helper()
	if err := LaunchSlices(p, pool, dst, src); err != nil {
		t.Fatalf("LaunchSlices: %v", err)
	}
}

// TestRoundTrip is invariant 5: copying into a freshly zeroed dst and then
// building and launching the reverse plan reproduces the source exactly,
// for a transpose-shaped (non-broadcasting) rearrangement.
func TestRoundTrip(t *testing.T) {
	const elemSize = 4
	rows, cols := 5, 7

	srcLayout := layout.RowMajor([]int{rows, cols}, elemSize)
	// dst is the transpose: cols becomes the outer axis.
	dstLayout := layout.ColMajor([]int{rows, cols}, elemSize)

	src := fillBytes(rows * cols * elemSize)
	dst := make([]byte, rows*cols*elemSize)

	plan, err := Build(dstLayout, srcLayout, elemSize)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	pool := workerpool.New(4)
	defer pool.Close()

	runLaunch(t, plan, pool, dst, src)

	// Reverse: treat dst as the new source, src buffer as the new
	// destination, and build the swapped-layout plan.
	back := make([]byte, rows*cols*elemSize)
	reversePlan, err := Build(srcLayout, dstLayout, elemSize)
	if err != nil {
		t.Fatalf("Build (reverse): %v", err)
	}
	runLaunch(t, reversePlan, pool, back, dst)

	for i := range src {
		if back[i] != src[i] {
			t.Fatalf("round trip mismatch at byte %d: got %d, want %d", i, back[i], src[i])
		}
	}
}

// TestLaunchNilPoolRunsSequentially checks that Launch falls back to a
// sequential decomposition when no pool is supplied.
func TestLaunchNilPoolRunsSequentially(t *testing.T) {
	const elemSize = 8
	shape := []int{3, 4}

	srcLayout := layout.RowMajor(shape, elemSize)
	dstLayout := layout.ColMajor(shape, elemSize)

	src := fillBytes(3 * 4 * elemSize)
	dst := make([]byte, 3*4*elemSize)

	plan, err := Build(dstLayout, srcLayout, elemSize)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if err := LaunchSlices(plan, nil, dst, src); err != nil {
		t.Fatalf("LaunchSlices: %v", err)
	}

	// Verify against a reference scalar transpose.
	want := make([]byte, len(dst))
	for r := 0; r < shape[0]; r++ {
		for c := 0; c < shape[1]; c++ {
			srcOff := (r*shape[1] + c) * elemSize
			dstOff := (c*shape[0] + r) * elemSize
			copy(want[dstOff:dstOff+elemSize], src[srcOff:srcOff+elemSize])
		}
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("mismatch at byte %d: got %d, want %d", i, dst[i], want[i])
		}
	}
}

// TestLaunchBroadcastSource is invariant 6: every sampled destination tile
// equals the source slice at coordinate 0 along the broadcast axis.
func TestLaunchBroadcastSource(t *testing.T) {
	const elemSize = 4
	rows, cols := 6, 3

	dstLayout := layout.RowMajor([]int{rows, cols}, elemSize)
	srcRow := fillBytes(cols * elemSize)
	// src has the same shape but a zero stride on the row axis: every row
	// reads back the same cols*elemSize bytes.
	srcLayout, err := layout.New([]int{rows, cols}, []int64{0, elemSize}, 0)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}

	dst := make([]byte, rows*cols*elemSize)
	plan, err := Build(dstLayout, srcLayout, elemSize)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	runLaunch(t, plan, nil, dst, srcRow)

	for r := 0; r < rows; r++ {
		got := dst[r*cols*elemSize : (r+1)*cols*elemSize]
		for i := range got {
			if got[i] != srcRow[i] {
				t.Fatalf("row %d byte %d: got %d, want %d", r, i, got[i], srcRow[i])
			}
		}
	}
}

func TestLaunchSlicesRejectsTooSmallBuffer(t *testing.T) {
	const elemSize = 4
	shape := []int{2, 2}
	l := layout.RowMajor(shape, elemSize)

	plan, err := Build(l, l, elemSize)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	dst := make([]byte, 2) // far too small
	src := fillBytes(2 * 2 * elemSize)

	if err := LaunchSlices(plan, nil, dst, src); err == nil {
		t.Fatal("LaunchSlices should have rejected an undersized buffer")
	}
}

func TestLaunchSlicesRejectsOverlap(t *testing.T) {
	const elemSize = 4
	shape := []int{2, 2}
	l := layout.RowMajor(shape, elemSize)

	plan, err := Build(l, l, elemSize)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	buf := fillBytes(2 * 2 * elemSize)
	if err := LaunchSlices(plan, nil, buf, buf); err == nil {
		t.Fatal("LaunchSlices should have rejected overlapping dst/src")
	}
}

func TestCountOneLaunchesDirectly(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	dst := make([]byte, 4)
	Launch(&Plan{raw: []int64{4, 0, 0, 1}}, nil, unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]))
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: got %d, want %d", i, dst[i], src[i])
		}
	}
}
