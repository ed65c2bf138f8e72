// Package view filters, sorts and paginates record collections.
package view

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/ledgeradmin/internal/model"
)

// PageSizes are the preset page sizes offered by list screens.
var PageSizes = []int{5, 10, 25, 50}

// DefaultPageSize is used when no valid size is configured.
const DefaultPageSize = 10

// Record is the accessor set the engine needs from a collection element.
type Record interface {
	SearchFields() []string
	Created() time.Time
	Popularity() int
}

// Page is one slice of a filtered, sorted collection.
type Page[T Record] struct {
	Items      []T
	Total      int
	TotalPages int
	PageIndex  int
}

// Params are the view parameters owned by a screen.
type Params struct {
	Search    string
	Sort      model.SortKey
	PageIndex int
	PageSize  int
}

// NewParams returns params on the first page with the given size.
func NewParams(pageSize int) Params {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Params{PageSize: pageSize}
}

// SetSearch replaces the search text and returns to the first page.
func (p *Params) SetSearch(s string) {
	p.Search = s
	p.PageIndex = 0
}

// SetPageSize replaces the page size and returns to the first page.
// Non-positive sizes are ignored.
func (p *Params) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	p.PageSize = n
	p.PageIndex = 0
}

// SetSort replaces the sort key and returns to the first page.
func (p *Params) SetSort(k model.SortKey) {
	p.Sort = k
	p.PageIndex = 0
}

// SetPage moves to page i without touching anything else.
func (p *Params) SetPage(i int) {
	if i < 0 {
		i = 0
	}
	p.PageIndex = i
}

// ApplyCustomPageSize parses a typed page size. Non-numeric or
// non-positive input is rejected and the previous size stays active.
func (p *Params) ApplyCustomPageSize(input string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n <= 0 {
		return false
	}
	p.SetPageSize(n)
	return true
}

// NextPage advances one page if another page exists.
func (p *Params) NextPage(totalPages int) {
	if p.PageIndex+1 < totalPages {
		p.PageIndex++
	}
}

// PrevPage goes back one page, stopping at the first.
func (p *Params) PrevPage() {
	if p.PageIndex > 0 {
		p.PageIndex--
	}
}

// NextSort cycles newest, oldest, popularity.
func NextSort(k model.SortKey) model.SortKey {
	switch k {
	case model.SortNewest:
		return model.SortOldest
	case model.SortOldest:
		return model.SortPopularity
	default:
		return model.SortNewest
	}
}

// ParseSort maps a flag value to a sort key. An empty string means input order.
func ParseSort(s string) (model.SortKey, error) {
	switch k := model.SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case model.SortNone, model.SortNewest, model.SortOldest, model.SortPopularity:
		return k, nil
	default:
		return model.SortNone, fmt.Errorf("unknown sort %q (want newest, oldest or popularity)", s)
	}
}

// Apply filters, sorts and paginates items. The input slice is not modified.
func Apply[T Record](items []T, p Params) Page[T] {
	filtered := Filter(items, p.Search)
	Sort(filtered, p.Sort)
	pageItems, totalPages := Paginate(filtered, p.PageIndex, p.PageSize)
	return Page[T]{
		Items:      pageItems,
		Total:      len(filtered),
		TotalPages: totalPages,
		PageIndex:  p.PageIndex,
	}
}

// Filter returns the items with a search field containing search,
// ignoring case. An empty search keeps everything.
func Filter[T Record](items []T, search string) []T {
	needle := strings.ToLower(search)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if needle == "" || matches(it, needle) {
			out = append(out, it)
		}
	}
	return out
}

func matches(r Record, needle string) bool {
	for _, f := range r.SearchFields() {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Sort orders items in place, keeping the relative order of ties.
// SortNone leaves items as they are.
func Sort[T Record](items []T, key model.SortKey) {
	var less func(a, b T) bool
	switch key {
	case model.SortNewest:
		less = func(a, b T) bool { return a.Created().After(b.Created()) }
	case model.SortOldest:
		less = func(a, b T) bool { return a.Created().Before(b.Created()) }
	case model.SortPopularity:
		less = func(a, b T) bool { return a.Popularity() > b.Popularity() }
	default:
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

// Paginate returns the slice [index*size, index*size+size) and the page count.
// Out-of-range pages are empty.
func Paginate[T any](items []T, index, size int) ([]T, int) {
	if size <= 0 {
		return []T{}, 0
	}
	total := len(items)
	totalPages := (total + size - 1) / size
	if index < 0 || index >= totalPages {
		return []T{}, totalPages
	}
	start := index * size
	end := minInt(start+size, total)
	return items[start:end], totalPages
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
