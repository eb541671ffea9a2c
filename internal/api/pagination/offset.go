// Package pagination implements page/limit offset pagination shared by every
// list endpoint.
package pagination

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// MaxLimit caps any requested page size.
const MaxLimit = 100

type Params struct {
	Page  int
	Limit int
}

// Meta is serialized as the "pagination" object of list responses.
type Meta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Parse reads page and limit from query values. Missing or unparseable values
// fall back to page 1 and defaultLimit; limit is capped at MaxLimit.
func Parse(values url.Values, defaultLimit int) Params {
	p := Params{Page: 1, Limit: defaultLimit}
	if page, err := strconv.Atoi(strings.TrimSpace(values.Get("page"))); err == nil && page > 0 {
		p.Page = page
	}
	if limit, err := strconv.Atoi(strings.TrimSpace(values.Get("limit"))); err == nil && limit > 0 {
		p.Limit = limit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset saturates at math.MaxInt instead of overflowing, so an absurd page
// still reads as "past the end" rather than a negative OFFSET.
func (p Params) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// MetaFor computes pages as ceil(total/limit).
func (p Params) MetaFor(total int) Meta {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Meta{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

type SortOrder string

const (
	Asc  SortOrder = "ASC"
	Desc SortOrder = "DESC"
)

// ParseSortOrder accepts asc/desc in any case; anything else yields fallback.
func ParseSortOrder(value string, fallback SortOrder) SortOrder {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(Asc):
		return Asc
	case string(Desc):
		return Desc
	default:
		return fallback
	}
}
