package dto

import "math"

const (
	// DefaultPageSize applies when page_size is omitted.
	DefaultPageSize = 20
	// MaxPageSize caps page_size.
	MaxPageSize = 100
	// MaxPage keeps Offset within int range for any page size.
	MaxPage = math.MaxInt / MaxPageSize
)

// PageQuery captures page/page_size query parameters.
type PageQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// Normalize clamps the query to valid bounds.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset returns the row offset for the normalized page.
func (q PageQuery) Offset() int {
	n := q.Normalize()
	return (n.Page - 1) * n.PageSize
}
