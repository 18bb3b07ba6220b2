package request

import (
	"net/http"
	"strconv"
)

// Pagination holds parsed list parameters.
type Pagination struct {
	Limit int
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ParsePagination extracts limit from query parameters. Missing or invalid
// values fall back to DefaultLimit; larger values are capped at MaxLimit.
func ParsePagination(r *http.Request) Pagination {
	p := Pagination{Limit: DefaultLimit}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			p.Limit = limit
		}
	}

	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	return p
}
