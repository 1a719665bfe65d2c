package params

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Pagination holds the requested page and, after ComputeMeta, the page metadata.
//
//	/v1/payments?page=2&limit=30 → Pagination{Limit:30, Page:2, Offset:30}
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"-"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination parses ?limit=...&page=... and never fails: bad values fall back to the
// defaults. Keys are case sensitive.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{
		Limit: defaultLimit,
		Page:  1,
	}

	if limitStr := strings.TrimSpace(q.Get("limit")); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			switch {
			case limit <= 0:
				p.Limit = defaultLimit
			case limit > maxLimit:
				p.Limit = maxLimit
			default:
				p.Limit = limit
			}
		}
	}

	if pageStr := strings.TrimSpace(q.Get("page")); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			p.Page = page
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta updates pagination after fetching total count.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = (p.Page * p.Limit) < total
}

// PaymentFilter is the query of GET /v1/payments.
type PaymentFilter struct {
	Status   string
	Provider string
	Since    *time.Time
	Pagination
}

var validStatus = map[string]bool{"PENDING": true, "SUCCESS": true, "FAILED": true}

// ParsePaymentFilter parses ?status=&provider=&since=&page=&limit=. A malformed status or
// since is an error.
func ParsePaymentFilter(q url.Values) (PaymentFilter, error) {
	f := PaymentFilter{Pagination: ParsePagination(q)}

	if s := strings.ToUpper(strings.TrimSpace(q.Get("status"))); s != "" {
		if !validStatus[s] {
			return f, fmt.Errorf("invalid status %q", s)
		}
		f.Status = s
	}
	f.Provider = strings.ToLower(strings.TrimSpace(q.Get("provider")))

	if s := strings.TrimSpace(q.Get("since")); s != "" {
		t, err := cast.ToTimeE(s)
		if err != nil {
			return f, fmt.Errorf("invalid since %q: %w", s, err)
		}
		f.Since = &t
	}
	return f, nil
}
