package rearrange

import "errors"

// ErrShapeMismatch is returned by Build when dst and src disagree on
// dimension count or any axis length.
var ErrShapeMismatch = errors.New("rearrange: dst and src layouts have mismatched shapes")

// ErrDimReduce is returned by Build when an axis of any length other than one
// (a zero-length axis included) has a destination stride of zero, which
// would require write-reduction
// (multiple source elements mapping to the same destination byte).
var ErrDimReduce = errors.New("rearrange: destination layout has a broadcast (zero-stride) axis")

// ErrBufferTooSmall is returned by LaunchSlices when dst or src is not long
// enough to hold every byte the plan can reach.
var ErrBufferTooSmall = errors.New("rearrange: buffer too small for plan")

// ErrOverlap is returned by LaunchSlices when the byte ranges spanned by the
// computed destination and source footprints intersect. Only the bounding
// ranges are compared, so interleaved footprints that share no byte are
// rejected as well.
var ErrOverlap = errors.New("rearrange: destination and source regions overlap")

// ErrInvalidPlan is returned by FromRaw when a packed buffer fails to satisfy
// the Plan invariants (see Plan's doc comment).
var ErrInvalidPlan = errors.New("rearrange: packed buffer does not describe a valid plan")
