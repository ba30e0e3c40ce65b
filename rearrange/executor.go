package rearrange

import (
	"fmt"
	"unsafe"

	"github.com/InfiniTensor/mem-rearrange/rearrange/contrib/workerpool"
)

// atomicBatch caps how many elementary copies a single work-stealing grab
// pulls at once, amortizing the atomic fetch-and-add over more than one copy
// (see workerpool.ParallelForAtomicBatched). The same value is used for every
// Plan, whatever its unit.
const atomicBatch = 64

// Launch walks p and performs its count elementary copies from srcBase to
// dstBase. It is an unchecked operation: the caller guarantees that both
// base pointers, offset by p.DstOffset/p.SrcOffset and every reachable
// stride combination, land inside the respective buffer, that the regions
// do not overlap, and that no other goroutine concurrently reads dst or
// writes src during the call.
//
// If pool is non-nil and p.Count() > 1, the copies are dispatched over pool
// via atomic work-stealing and Launch blocks until all of them complete
// (fork-join). If pool is nil, Launch runs the same decomposition
// sequentially in the calling goroutine.
func Launch(p *Plan, pool *workerpool.Pool, dstBase, srcBase unsafe.Pointer) {
	dst := uintptr(dstBase) + uintptr(p.DstOffset())
	src := uintptr(srcBase) + uintptr(p.SrcOffset())
	unit := p.Unit()

	if p.Count() == 1 {
		copyUnit(dst, src, unit)
		return
	}

	idx := p.IdxStrides()
	dstStrides := p.DstStrides()
	srcStrides := p.SrcStrides()
	n := len(idx)

	task := func(r int64) {
		d, s := dst, src
		rem := r
		for i := 0; i < n; i++ {
			k := rem / idx[i]
			rem %= idx[i]
			d += uintptr(k * dstStrides[i])
			s += uintptr(k * srcStrides[i])
		}
		copyUnit(d, s, unit)
	}

	count := p.Count()
	if pool == nil {
		for r := int64(0); r < count; r++ {
			task(r)
		}
		return
	}

	pool.ParallelForAtomicBatched(int(count), atomicBatch, func(start, end int) {
		for r := start; r < end; r++ {
			task(int64(r))
		}
	})
}

// copyUnit copies unit bytes from src to dst, both given as raw addresses.
func copyUnit(dst, src uintptr, unit int64) {
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(dst)), unit)
	srcSlice := unsafe.Slice((*byte)(unsafe.Pointer(src)), unit)
	copy(dstSlice, srcSlice)
}

// LaunchSlices wraps Launch with the bounds and overlap checks the raw
// pointer contract deliberately leaves to the caller. It validates that dst
// and src are long enough to hold every byte the plan can reach, and makes a
// best-effort check that the two computed footprints do not overlap, before
// delegating to Launch.
func LaunchSlices(p *Plan, pool *workerpool.Pool, dst, src []byte) error {
	dstLo, dstHi := footprint(p.DstOffset(), p.Unit(), p.IdxStrides(), p.DstStrides(), p.Count())
	srcLo, srcHi := footprint(p.SrcOffset(), p.Unit(), p.IdxStrides(), p.SrcStrides(), p.Count())

	if dstLo < 0 || dstHi > int64(len(dst)) {
		return fmt.Errorf("%w: dst has %d bytes, plan reaches [%d, %d)", ErrBufferTooSmall, len(dst), dstLo, dstHi)
	}
	if srcLo < 0 || srcHi > int64(len(src)) {
		return fmt.Errorf("%w: src has %d bytes, plan reaches [%d, %d)", ErrBufferTooSmall, len(src), srcLo, srcHi)
	}

	dstBase := uintptr(unsafe.Pointer(&dst[0]))
	srcBase := uintptr(unsafe.Pointer(&src[0]))
	dstAbsLo, dstAbsHi := int64(dstBase)+dstLo, int64(dstBase)+dstHi
	srcAbsLo, srcAbsHi := int64(srcBase)+srcLo, int64(srcBase)+srcHi
	if rangesOverlap(dstAbsLo, dstAbsHi, srcAbsLo, srcAbsHi) {
		return fmt.Errorf("%w: dst [%d, %d) and src [%d, %d)", ErrOverlap, dstLo, dstHi, srcLo, srcHi)
	}

	Launch(p, pool, unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]))
	return nil
}

// footprint returns the inclusive-low, exclusive-high byte range a plan can
// reach on one side (destination or source), given that side's offset and
// per-axis strides.
func footprint(offset, unit int64, idx, strides []int64, count int64) (lo, hi int64) {
	if count == 0 {
		return offset, offset
	}
	lo, hi = offset, offset+unit
	if len(idx) == 0 {
		return lo, hi
	}
	// The extreme coordinate along each axis is either 0 or len-1,
	// depending on the sign of that axis's stride; len[i] = idx[i-1]/idx[i].
	outer := count
	for i := range idx {
		length := outer / idx[i]
		outer = idx[i]
		step := strides[i]
		reach := step * (length - 1)
		if reach < 0 {
			lo += reach
		} else {
			hi += reach
		}
	}
	return lo, hi
}

func rangesOverlap(aLo, aHi, bLo, bHi int64) bool {
	return aLo < bHi && bLo < aHi
}
