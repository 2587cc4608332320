package counter

// Subrange is one contiguous piece of an id range, both bounds
// inclusive, Start >= End.
type Subrange struct {
	Start int
	End   int
}

// Span returns the number of ids the subrange covers.
func (s Subrange) Span() int {
	return s.Start - s.End + 1
}

// Split partitions the inclusive id range [end, start] into at most n
// contiguous, disjoint subranges of ceil(total/n) ids each that
// jointly cover the range exactly. Returns fewer than n pieces when
// the range is too small to give every session work.
func Split(start, end, n int) []Subrange {
	if start < end {
		return nil
	}
	if n < 1 {
		n = 1
	}

	total := start - end + 1
	per := (total + n - 1) / n // ceil

	var subs []Subrange
	hi := start
	for hi >= end {
		lo := hi - per + 1
		if lo < end {
			lo = end
		}
		subs = append(subs, Subrange{Start: hi, End: lo})
		hi = lo - 1
	}

	return subs
}
