package pagination

import (
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned for cursors with a negative offset or a
// non-positive page size.
var ErrInvalidCursor = errors.New("invalid page cursor")

// Cursor is the (offset, page size) pair that determines the next browse request.
type Cursor struct {
	Offset   int
	PageSize int
}

// NewCursor returns a cursor at offset 0.
func NewCursor(pageSize int) (Cursor, error) {
	c := Cursor{PageSize: pageSize}
	if err := c.Validate(); err != nil {
		return Cursor{}, err
	}
	return c, nil
}

// Validate checks the cursor invariants.
func (c Cursor) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive (got %d)", ErrInvalidCursor, c.PageSize)
	}
	if c.Offset < 0 {
		return fmt.Errorf("%w: offset must be non-negative (got %d)", ErrInvalidCursor, c.Offset)
	}
	if c.Offset%c.PageSize != 0 {
		return fmt.Errorf("%w: offset %d is not a multiple of page size %d", ErrInvalidCursor, c.Offset, c.PageSize)
	}
	return nil
}

// Next returns the cursor for the following page.
func (c Cursor) Next() Cursor {
	c.Offset += c.PageSize
	return c
}

// Reset returns the cursor rewound to the first page.
func (c Cursor) Reset() Cursor {
	c.Offset = 0
	return c
}

// Page returns the zero-based page index.
func (c Cursor) Page() int {
	if c.PageSize <= 0 {
		return 0
	}
	return c.Offset / c.PageSize
}

// String implements fmt.Stringer.
func (c Cursor) String() string {
	return fmt.Sprintf("skip=%d limit=%d", c.Offset, c.PageSize)
}
