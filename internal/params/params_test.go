package params

import (
	"net/url"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantPage   int
		wantOffset int
	}{
		{"", 20, 1, 0},
		{"page=2&limit=30", 30, 2, 30},
		{"limit=0", 20, 1, 0},
		{"limit=500", 100, 1, 0},
		{"page=-1&limit=abc", 20, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p := ParsePagination(q)
			if p.Limit != tt.wantLimit || p.Page != tt.wantPage || p.Offset != tt.wantOffset {
				t.Errorf("got %+v", p)
			}
		})
	}
}

func TestComputeMeta(t *testing.T) {
	p := Pagination{Limit: 20, Page: 2}
	p.ComputeMeta(45)
	if p.TotalPages != 3 || !p.HasNext || !p.HasPrev {
		t.Errorf("got %+v", p)
	}
	p = Pagination{Limit: 20, Page: 3}
	p.ComputeMeta(45)
	if p.HasNext {
		t.Error("last page reports has_next")
	}
}

func TestParsePaymentFilter(t *testing.T) {
	q, _ := url.ParseQuery("status=pending&provider=OPay&since=2024-03-01T00:00:00Z&limit=5")
	f, err := ParsePaymentFilter(q)
	if err != nil {
		t.Fatalf("ParsePaymentFilter: %v", err)
	}
	if f.Status != "PENDING" || f.Provider != "opay" || f.Limit != 5 {
		t.Errorf("got %+v", f)
	}
	if f.Since == nil || f.Since.Day() != 1 {
		t.Errorf("since = %v", f.Since)
	}

	for _, bad := range []string{"status=DONE", "since=yesterday-ish"} {
		q, _ := url.ParseQuery(bad)
		if _, err := ParsePaymentFilter(q); err == nil {
			t.Errorf("%s: want error", bad)
		}
	}
}
