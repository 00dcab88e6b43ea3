package calendar

// Page describes one page of items.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
	Total    int  `json:"total"`
}

const DefaultPageSize = 20

// PageOffset turns a 1-based page number into limit/offset, applying defaults.
func PageOffset(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}

// NewPage builds page metadata for items fetched with PageOffset and a known total.
func NewPage[T any](items []T, page, pageSize int, total int64) Page[T] {
	limit, offset := PageOffset(page, pageSize)
	if page <= 0 {
		page = 1
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: limit,
		HasPrev:  page > 1,
		HasNext:  int64(offset+len(items)) < total,
		Total:    int(total),
	}
}

// Paginate slices an in-memory list. page is 1-based; invalid values fall back to defaults.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)
	limit, start := PageOffset(page, pageSize)
	if page <= 0 {
		page = 1
	}
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: limit,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}
