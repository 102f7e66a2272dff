package model

import "strings"

// Page is one page of a larger result set.  Number is zero-based.
type Page[T any] struct {
	Items  []T   `json:"content"`
	Total  int64 `json:"total_elements"`
	Number int   `json:"page"`
	Size   int   `json:"size"`
}

// TotalPages returns how many pages of Size hold Total items.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest selects a page and an optional sort order.  SortField is
// the JSON-facing field name (e.g. "purchaseTimestamp"); the store maps
// it onto a column and ignores names it does not know.
type PageRequest struct {
	Number    int
	Size      int
	SortField string
	SortDesc  bool
}

// NewPageRequest normalizes paging input.  sort has the form
// "field,ASC" or "field,DESC"; anything else means unsorted.
func NewPageRequest(number, size int, sort string) PageRequest {
	if number < 0 {
		number = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	pr := PageRequest{Number: number, Size: size}
	parts := strings.Split(sort, ",")
	if len(parts) == 2 {
		if field := strings.TrimSpace(parts[0]); field != "" {
			pr.SortField = field
			pr.SortDesc = strings.EqualFold(strings.TrimSpace(parts[1]), "DESC")
		}
	}
	return pr
}

// Offset is the number of rows to skip for this page.
func (p PageRequest) Offset() int { return p.Number * p.Size }

// Unpaged requests everything in a single page, unsorted.
func Unpaged() PageRequest { return PageRequest{Number: 0, Size: 0} }
