// Package page normalizes 1-indexed page requests shared by every list operation.
package page

import "math"

const (
	DefaultSize = 20
	MaxSize     = 500
)

// Request is a 1-indexed page request. Zero values mean "first page, default size".
type Request struct {
	Page int
	Size int
}

// Normalize clamps the request into range.
func (r Request) Normalize() Request {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Size < 1 {
		r.Size = DefaultSize
	}
	if r.Size > MaxSize {
		r.Size = MaxSize
	}
	// Keep (Page-1)*Size representable; such a page is past the end anyway.
	if last := math.MaxInt / r.Size; r.Page > last {
		r.Page = last
	}
	return r
}

// Offset is the number of rows to skip. Call on a normalized request.
func (r Request) Offset() int {
	return (r.Page - 1) * r.Size
}

// TotalPages reports how many pages total rows span. An empty result still has
// one (empty) page so that page=1 is never out of range.
func (r Request) TotalPages(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + r.Size - 1) / r.Size
}

// Window returns the [lo, hi) slice bounds of this page over n items, empty when
// the page is past the end.
func (r Request) Window(n int) (lo, hi int) {
	lo = r.Offset()
	if lo >= n {
		return n, n
	}
	hi = lo + r.Size
	if hi > n {
		hi = n
	}
	return lo, hi
}
