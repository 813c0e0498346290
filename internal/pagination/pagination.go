package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params carries normalized page/limit values plus the derived SQL offset.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Meta is the pagination envelope returned alongside paginated collections.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Parse reads page and limit from a query string. Missing or malformed values
// fall back to defaults; limit is capped at MaxLimit. It returns nil when the
// client sent neither parameter, which callers treat as "no pagination".
func Parse(query url.Values) *Params {
	if query.Get("page") == "" && query.Get("limit") == "" {
		return nil
	}

	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page < 1 {
		page = DefaultPage
	}

	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return &Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// BuildMeta derives the response metadata for a total row count.
func BuildMeta(total int, p Params) Meta {
	totalPages := total / p.Limit
	if total%p.Limit != 0 {
		totalPages++
	}

	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
