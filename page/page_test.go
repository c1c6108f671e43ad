package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Request{Page: 1, Size: DefaultSize}, Request{}.Normalize())
	assert.Equal(t, Request{Page: 3, Size: MaxSize}, Request{Page: 3, Size: 10_000}.Normalize())
	assert.Equal(t, Request{Page: 1, Size: 5}, Request{Page: -2, Size: 5}.Normalize())
}

func TestTotalPages(t *testing.T) {
	r := Request{Page: 1, Size: 20}
	assert.Equal(t, 1, r.TotalPages(0))
	assert.Equal(t, 1, r.TotalPages(3))
	assert.Equal(t, 1, r.TotalPages(20))
	assert.Equal(t, 2, r.TotalPages(21))
}

func TestWindow_PastTheEnd(t *testing.T) {
	lo, hi := Request{Page: 5, Size: 20}.Window(3)
	assert.Equal(t, 3, lo)
	assert.Equal(t, 3, hi)

	lo, hi = Request{Page: 2, Size: 2}.Window(3)
	assert.Equal(t, 2, lo)
	assert.Equal(t, 3, hi)
}

func TestNormalize_HugePageDoesNotOverflow(t *testing.T) {
	// GIVEN a page number whose offset would overflow int
	r := Request{Page: 1<<62 + 1, Size: 20}.Normalize()

	// THEN the offset stays positive and the window is empty
	assert.Greater(t, r.Offset(), 0)
	lo, hi := r.Window(3)
	assert.Equal(t, 3, lo)
	assert.Equal(t, 3, hi)

	lo, hi = Request{Page: 1<<62 + 1, Size: MaxSize}.Normalize().Window(3)
	assert.Equal(t, 3, lo)
	assert.Equal(t, 3, hi)
}
