package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// Params holds pagination parameters extracted from a request.
// Page is 1-based; PageSize is always within [1, MaxPageSize].
type Params struct {
	Page     int
	PageSize int
}

// FromContext extracts pagination parameters from the echo context,
// clamping them to valid bounds. An absent page_size gets DefaultPageSize;
// an explicit zero or negative one clamps to 1.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	raw := c.QueryParam("page_size")
	size := DefaultPageSize
	if raw != "" {
		size, _ = strconv.Atoi(raw)
	}
	return Clamp(page, size)
}

// Clamp normalizes a raw page/page_size pair: page is forced to >= 1,
// page_size to [1, MaxPageSize].
func Clamp(page, pageSize int) Params {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Params{Page: page, PageSize: pageSize}
}

// Offset returns the 0-based offset of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.PageSize < total
}

// PageResult wraps one page of results plus the total count of the whole
// collection. Items is never nil so consumers always see a JSON array.
type PageResult[T any] struct {
	Items    []T `json:"items"`
	PageNum  int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// NewPage builds a PageResult, substituting an empty slice for nil items.
func NewPage[T any](items []T, params Params, total int) *PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PageResult[T]{
		Items:    items,
		PageNum:  params.Page,
		PageSize: params.PageSize,
		Total:    total,
	}
}
