package rearrange

import "sort"

// dim is a transient, planner-internal axis: a length paired with the
// per-axis byte stride on each side of the copy. dims are created while
// scanning the input layouts, reordered and merged by Build, and discarded
// once packed into a Plan.
type dim struct {
	len int64
	dst int64
	src int64
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// sortDims orders dims by |dst| descending, then |src| descending, then len
// ascending. This places the most "outer" axis first and maximizes the
// chance that adjacent axes are fusible (see Build). The sort carries no
// structural meaning beyond axis identity, so an unstable sort is fine.
func sortDims(dims []dim) {
	sort.Slice(dims, func(i, j int) bool {
		a, b := dims[i], dims[j]
		if ad, bd := abs64(a.dst), abs64(b.dst); ad != bd {
			return ad > bd
		}
		if as, bs := abs64(a.src), abs64(b.src); as != bs {
			return as > bs
		}
		return a.len < b.len
	})
}
