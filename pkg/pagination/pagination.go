// Package pagination pages in-memory listings from page/per_page query
// parameters.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page with DefaultPerPage items.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// FromRequest reads page and per_page. Non-numeric or out-of-range values
// fall back to the defaults; per_page is capped at MaxPerPage.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 {
		p.PerPage = min(v, MaxPerPage)
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

// Result is one page of a listing.
type Result[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Slice returns the page of items selected by p. A page past the end is
// empty, never nil, so it encodes as [].
func Slice[T any](items []T, p Params) Result[T] {
	if p.PerPage <= 0 {
		p = DefaultParams()
	}
	total := len(items)
	totalPages := (total + p.PerPage - 1) / p.PerPage

	start := min(p.Offset, total)
	end := min(start+p.PerPage, total)
	page := make([]T, end-start)
	copy(page, items[start:end])

	return Result[T]{
		Items:      page,
		TotalCount: total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

// Reverse returns a reversed copy of items, for newest-first listings kept
// oldest-first.
func Reverse[T any](items []T) []T {
	out := make([]T, len(items))
	for i, v := range items {
		out[len(items)-1-i] = v
	}
	return out
}
