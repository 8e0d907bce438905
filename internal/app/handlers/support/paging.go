package support

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page clamps client paging to sane bounds.
func Page(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return offset, limit
}

// Window returns the [start, end) bounds of a page over total items.
func Window(total, offset, limit int) (int, int) {
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return offset, end
}
