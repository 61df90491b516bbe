// Package pager presents the upload list as filtered, fixed-size pages.
// It is pure state: no I/O, no goroutines.
package pager

import (
	"strings"

	"github.com/dmitrijs2005/vaultcli/internal/client/models"
)

// PageSize is the number of records per page.
const PageSize = 5

// Window is the page-number affordance for the current page: at most the
// current and the next page, with ellipsis markers when pages exist before
// or after. Numbers are zero-based.
type Window struct {
	Numbers []int
	Before  bool
	After   bool
}

// Paginator holds the records, the filter and the current page. The page
// is clamped into [0, TotalPages()-1] after every change.
type Paginator struct {
	records  []models.UploadRecord
	filter   string
	filtered []models.UploadRecord
	page     int
}

func New() *Paginator {
	return &Paginator{}
}

// SetRecords replaces the list, keeping the filter and the page (clamped).
func (p *Paginator) SetRecords(records []models.UploadRecord) {
	p.records = append([]models.UploadRecord(nil), records...)
	p.recompute()
}

// SetFilter sets the case-insensitive name filter and resets to page 0.
// Surrounding whitespace is ignored; an empty filter keeps everything.
func (p *Paginator) SetFilter(f string) {
	p.filter = strings.TrimSpace(f)
	p.page = 0
	p.recompute()
}

func (p *Paginator) Filter() string { return p.filter }

// SetPage selects page idx, clamped to the valid range.
func (p *Paginator) SetPage(idx int) {
	p.page = idx
	p.clamp()
}

// Shift moves one page forward or back; it is a no-op at the boundaries.
func (p *Paginator) Shift(forward bool) {
	if forward {
		p.SetPage(p.page + 1)
	} else {
		p.SetPage(p.page - 1)
	}
}

func (p *Paginator) Page() int { return p.page }

// TotalPages is never less than 1, so an empty list still has one page.
func (p *Paginator) TotalPages() int {
	return max(1, (len(p.filtered)+PageSize-1)/PageSize)
}

// Filtered returns every record matching the filter.
func (p *Paginator) Filtered() []models.UploadRecord {
	return append([]models.UploadRecord(nil), p.filtered...)
}

// Visible returns the records on the current page.
func (p *Paginator) Visible() []models.UploadRecord {
	start := p.page * PageSize
	if start >= len(p.filtered) {
		return nil
	}
	end := min(len(p.filtered), start+PageSize)
	return append([]models.UploadRecord(nil), p.filtered[start:end]...)
}

// Empty reports whether there are no records at all, before filtering.
func (p *Paginator) Empty() bool { return len(p.records) == 0 }

func (p *Paginator) Window() Window {
	last := p.TotalPages() - 1
	w := Window{Before: p.page != 0, After: p.page != last}
	if p.page == last {
		w.Numbers = []int{p.page}
	} else {
		w.Numbers = []int{p.page, p.page + 1}
	}
	return w
}

func (p *Paginator) recompute() {
	if p.filter == "" {
		p.filtered = p.records
	} else {
		needle := strings.ToLower(p.filter)
		p.filtered = nil
		for _, r := range p.records {
			if strings.Contains(strings.ToLower(r.FileName), needle) {
				p.filtered = append(p.filtered, r)
			}
		}
	}
	p.clamp()
}

func (p *Paginator) clamp() {
	p.page = max(0, min(p.page, p.TotalPages()-1))
}
