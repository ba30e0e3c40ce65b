package rearrange

// DistributeUnit rewrites p to use a smaller copy granularity, useful when a
// downstream kernel requires a specific unit (e.g. vector width). candidates
// is an ordered sequence of positive divisors to try; DistributeUnit returns
// the Plan for the first candidate that evenly divides p.Unit(), not
// necessarily the largest — callers are expected to order candidates by
// preference. If no candidate divides the current unit, it returns
// (nil, false). If the first matching candidate equals the current unit, the
// result is a clone of p.
func (p *Plan) DistributeUnit(candidates []int64) (*Plan, bool) {
	for _, u := range candidates {
		if u <= 0 || p.Unit()%u != 0 {
			continue
		}
		if u == p.Unit() {
			return p.Clone(), true
		}
		return splitUnit(p, u), true
	}
	return nil, false
}

// splitUnit appends one new innermost axis of length e = p.Unit()/u with
// dst and src strides both equal to u, rescaling the existing index strides
// to account for the new, finer-grained innermost axis. This is a
// deliberate split and is never merged back.
func splitUnit(p *Plan, u int64) *Plan {
	n := p.NDim()
	e := p.Unit() / u

	raw := make([]int64, 4+3*(n+1))
	raw[0] = u
	raw[1] = p.DstOffset()
	raw[2] = p.SrcOffset()
	raw[3] = p.Count() * e

	oldIdx := p.IdxStrides()
	oldDst := p.DstStrides()
	oldSrc := p.SrcStrides()

	newIdx := raw[4 : 4+n+1]
	newDst := raw[4+n+1 : 4+2*(n+1)]
	newSrc := raw[4+2*(n+1) : 4+3*(n+1)]

	for i := 0; i < n; i++ {
		newIdx[i] = oldIdx[i] * e
		newDst[i] = oldDst[i]
		newSrc[i] = oldSrc[i]
	}
	newIdx[n] = 1
	newDst[n] = u
	newSrc[n] = u

	return &Plan{raw: raw}
}
