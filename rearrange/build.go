package rearrange

import (
	"fmt"

	"github.com/InfiniTensor/mem-rearrange/layout"
)

// Build consumes two layout descriptors and a unit size (bytes per
// elementary copy, or any coarser granularity the caller wants honored) and
// produces a canonicalized rearrangement Plan.
//
// Build returns ErrShapeMismatch if dst and src disagree on dimension count
// or any axis length, and ErrDimReduce if any axis whose length is not one
// (zero-length axes included) has a destination stride of zero. A zero
// source stride is permitted: reading a broadcast axis is a legal fan-out.
func Build(dst, src layout.Layout, unit int64) (*Plan, error) {
	if dst.Ndim() != src.Ndim() {
		return nil, fmt.Errorf("%w: dst has %d axes, src has %d", ErrShapeMismatch, dst.Ndim(), src.Ndim())
	}
	dshape, sshape := dst.Shape(), src.Shape()
	dstrides, sstrides := dst.Strides(), src.Strides()

	dims := make([]dim, 0, len(dshape))
	for i := range dshape {
		if dshape[i] != sshape[i] {
			return nil, fmt.Errorf("%w: axis %d has dst length %d, src length %d", ErrShapeMismatch, i, dshape[i], sshape[i])
		}
		if dshape[i] == 1 {
			// Unit-length axes contribute nothing to the copy and are dropped.
			continue
		}
		if dstrides[i] == 0 {
			return nil, fmt.Errorf("%w: axis %d", ErrDimReduce, i)
		}
		dims = append(dims, dim{len: int64(dshape[i]), dst: dstrides[i], src: sstrides[i]})
	}

	sortDims(dims)

	u := unit
	n := len(dims)
	// Trailing fusion into unit: absorb the innermost axis into the copy
	// granularity as long as both sides are stepping exactly one unit at a
	// time, promoting a fully-contiguous inner tile into a single larger
	// copy primitive.
	for n > 0 && dims[n-1].dst == u && dims[n-1].src == u {
		u *= dims[n-1].len
		n--
	}
	dims = dims[:n]

	// Adjacent fusion: collapse any remaining pair of axes whose stride
	// ratio matches their length ratio into one axis of the product length.
	for i := len(dims) - 1; i >= 1; i-- {
		f := &dims[i-1]
		b := &dims[i]
		if b.dst*b.len == f.dst && b.src*b.len == f.src {
			f.len *= b.len
			f.dst = b.dst
			f.src = b.src
			b.len, b.dst, b.src = 1, 0, 0
			n--
		}
	}

	live := make([]dim, 0, n)
	for _, d := range dims {
		if d.len != 1 {
			live = append(live, d)
		}
	}

	return pack(u, dst.Offset(), src.Offset(), live), nil
}

// pack lays out live axes into a Plan's flat integer buffer, computing index
// strides as a right-to-left prefix product over axis lengths.
func pack(unit, dstOffset, srcOffset int64, live []dim) *Plan {
	n := len(live)
	raw := make([]int64, 4+3*n)
	raw[0] = unit
	raw[1] = dstOffset
	raw[2] = srcOffset

	idxStrides := raw[4 : 4+n]
	dstStrides := raw[4+n : 4+2*n]
	srcStrides := raw[4+2*n : 4+3*n]

	count := int64(1)
	for i := n - 1; i >= 0; i-- {
		idxStrides[i] = count
		count *= live[i].len
		dstStrides[i] = live[i].dst
		srcStrides[i] = live[i].src
	}
	raw[3] = count

	return &Plan{raw: raw}
}
