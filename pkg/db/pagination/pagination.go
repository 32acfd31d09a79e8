package pagination

// Pagination is the page-number model used by every list endpoint. The
// desktop clients render classic pagers, so offsets with a total count beat
// opaque cursors here.
type Pagination struct {
	Page     int `form:"page,default=1" validate:"gte=1"`
	PageSize int `form:"page_size,default=50" validate:"gte=1,lte=250"` // Min 1, Max 250
}

type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// Normalize clamps the request to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 50
	}
	if p.PageSize > 250 {
		p.PageSize = 250
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.Normalize().PageSize
}

// BuildPageInfo assembles pager metadata for a total row count.
func BuildPageInfo(p Pagination, total int64) PageInfo {
	p = p.Normalize()
	pages := int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	if pages < 1 {
		pages = 1
	}
	return PageInfo{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: total,
		TotalPages: pages,
	}
}
