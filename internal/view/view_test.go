package view

import (
	"math"
	"testing"
	"time"

	"github.com/verte-zerg/ledgeradmin/internal/model"
)

type rec struct {
	id      int
	fields  []string
	created time.Time
	members int
}

func (r rec) SearchFields() []string { return r.fields }
func (r rec) Created() time.Time     { return r.created }
func (r rec) Popularity() int        { return r.members }

func numbered(n int) []rec {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]rec, n)
	for i := range out {
		out[i] = rec{id: i, created: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func ids(items []rec) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func strPtr(s string) *string { return &s }

func TestFilterBooksByCreatorName(t *testing.T) {
	books := []model.Book{
		{ID: "1", Name: strPtr("Groceries"), Creator: &model.Creator{Name: strPtr("Asha")}},
		{ID: "2", Name: strPtr("Rent"), Creator: &model.Creator{Name: strPtr("Ravi")}},
		{ID: "3", BookName: strPtr("Trip"), Creator: nil},
	}
	page := Apply(books, Params{Search: "ASH", PageSize: 10})
	if page.Total != 1 || page.Items[0].ID != "1" {
		t.Fatalf("expected only book 1, got %+v", page.Items)
	}
}

func TestFilterAbsentFieldsNeverMatch(t *testing.T) {
	users := []model.User{
		{ID: "1"},
		{ID: "2", Email: strPtr("unknown@example.com")},
	}
	page := Apply(users, Params{Search: "unknown", PageSize: 10})
	if page.Total != 1 || page.Items[0].ID != "2" {
		t.Fatalf("missing name must not match its display default, got %+v", page.Items)
	}
}

func TestEmptySearchMatchesAll(t *testing.T) {
	items := numbered(7)
	if got := Filter(items, ""); len(got) != 7 {
		t.Fatalf("expected all items, got %d", len(got))
	}
}

func TestSearchWhitespaceIsLiteral(t *testing.T) {
	users := []model.User{
		{ID: "1", Name: strPtr("Ann Lee")},
		{ID: "2", Name: strPtr("Bob")},
	}
	cases := []struct {
		search string
		want   []string
	}{
		{" ", []string{"1"}},
		{"bob ", nil},
		{"ann l", []string{"1"}},
	}
	for _, tc := range cases {
		page := Apply(users, Params{Search: tc.search, PageSize: 10})
		if page.Total != len(tc.want) {
			t.Fatalf("search %q: got %d matches, want %d", tc.search, page.Total, len(tc.want))
		}
		for i, id := range tc.want {
			if page.Items[i].ID != id {
				t.Fatalf("search %q: got %s at %d, want %s", tc.search, page.Items[i].ID, i, id)
			}
		}
	}
}

func TestSortNewestAndOldestAreReverses(t *testing.T) {
	items := numbered(5)
	newest := Apply(items, Params{Sort: model.SortNewest, PageSize: 10})
	oldest := Apply(items, Params{Sort: model.SortOldest, PageSize: 10})
	if !equalInts(ids(newest.Items), []int{4, 3, 2, 1, 0}) {
		t.Fatalf("unexpected newest order %v", ids(newest.Items))
	}
	if !equalInts(ids(oldest.Items), []int{0, 1, 2, 3, 4}) {
		t.Fatalf("unexpected oldest order %v", ids(oldest.Items))
	}
}

func TestSortIsStable(t *testing.T) {
	same := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []rec{{id: 0, created: same, members: 2}, {id: 1, created: same, members: 5}, {id: 2, created: same, members: 2}}
	if got := ids(Apply(items, Params{Sort: model.SortNewest, PageSize: 10}).Items); !equalInts(got, []int{0, 1, 2}) {
		t.Fatalf("ties must keep input order, got %v", got)
	}
	if got := ids(Apply(items, Params{Sort: model.SortPopularity, PageSize: 10}).Items); !equalInts(got, []int{1, 0, 2}) {
		t.Fatalf("unexpected popularity order %v", got)
	}
}

func TestSortNoneKeepsInputOrder(t *testing.T) {
	items := []rec{{id: 3}, {id: 1}, {id: 2}}
	if got := ids(Apply(items, Params{PageSize: 10}).Items); !equalInts(got, []int{3, 1, 2}) {
		t.Fatalf("expected input order, got %v", got)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	items := numbered(4)
	_ = Apply(items, Params{Sort: model.SortNewest, PageSize: 2})
	if !equalInts(ids(items), []int{0, 1, 2, 3}) {
		t.Fatalf("input reordered: %v", ids(items))
	}
}

func TestPaginateBounds(t *testing.T) {
	items := numbered(25)
	cases := []struct {
		name      string
		index     int
		size      int
		wantLen   int
		wantPages int
	}{
		{"first", 0, 10, 10, 3},
		{"last partial", 2, 10, 5, 3},
		{"out of range", 3, 10, 0, 3},
		{"negative", -1, 10, 0, 3},
		{"exact", 4, 5, 5, 5},
		{"single page", 0, 50, 25, 1},
		{"overflow to negative", math.MaxInt/10 + 1, 10, 0, 3},
		{"overflow to small", math.MaxInt/5 + 1, 10, 0, 3},
		{"max index", math.MaxInt, 10, 0, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, pages := Paginate(items, tc.index, tc.size)
			if len(got) != tc.wantLen || pages != tc.wantPages {
				t.Fatalf("index %d size %d: got len %d pages %d", tc.index, tc.size, len(got), pages)
			}
		})
	}
}

func TestPageLengthProperty(t *testing.T) {
	for total := 0; total <= 23; total++ {
		items := numbered(total)
		for _, size := range []int{1, 3, 5, 10} {
			for index := 0; index <= total/size+1; index++ {
				got, _ := Paginate(items, index, size)
				want := total - index*size
				if want < 0 {
					want = 0
				}
				want = minInt(want, size)
				if len(got) != want {
					t.Fatalf("total %d size %d index %d: got %d want %d", total, size, index, len(got), want)
				}
			}
		}
	}
}

func TestEmptyCollectionHasNoPages(t *testing.T) {
	page := Apply([]rec{}, NewParams(10))
	if page.Total != 0 || page.TotalPages != 0 || len(page.Items) != 0 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestSetPageSizeResetsPage(t *testing.T) {
	items := numbered(25)
	p := NewParams(10)
	p.SetPage(2)
	if got := ids(Apply(items, p).Items); !equalInts(got, []int{20, 21, 22, 23, 24}) {
		t.Fatalf("unexpected third page %v", got)
	}
	p.SetPageSize(5)
	if p.PageIndex != 0 {
		t.Fatalf("expected page index reset, got %d", p.PageIndex)
	}
	if got := ids(Apply(items, p).Items); !equalInts(got, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("unexpected first page %v", got)
	}
}

func TestSetSearchAndSortResetPage(t *testing.T) {
	p := NewParams(10)
	p.SetPage(3)
	p.SetSearch("a")
	if p.PageIndex != 0 {
		t.Fatalf("search must reset page")
	}
	p.SetPage(3)
	p.SetSort(model.SortOldest)
	if p.PageIndex != 0 {
		t.Fatalf("sort must reset page")
	}
}

func TestSetPageKeepsOtherParams(t *testing.T) {
	p := Params{Search: "x", Sort: model.SortNewest, PageSize: 25}
	p.SetPage(4)
	if p.Search != "x" || p.Sort != model.SortNewest || p.PageSize != 25 || p.PageIndex != 4 {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestApplyCustomPageSize(t *testing.T) {
	p := NewParams(10)
	p.SetPage(2)
	for _, bad := range []string{"", "abc", "0", "-5", "3.5"} {
		if p.ApplyCustomPageSize(bad) {
			t.Fatalf("expected %q rejected", bad)
		}
		if p.PageSize != 10 || p.PageIndex != 2 {
			t.Fatalf("rejected input %q changed params %+v", bad, p)
		}
	}
	if !p.ApplyCustomPageSize(" 7 ") {
		t.Fatalf("expected 7 accepted")
	}
	if p.PageSize != 7 || p.PageIndex != 0 {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestNextPrevPageClamp(t *testing.T) {
	p := NewParams(10)
	p.PrevPage()
	if p.PageIndex != 0 {
		t.Fatalf("prev must stop at 0")
	}
	p.NextPage(2)
	p.NextPage(2)
	if p.PageIndex != 1 {
		t.Fatalf("next must stop at last page, got %d", p.PageIndex)
	}
	p.NextPage(0)
	if p.PageIndex != 1 {
		t.Fatalf("next with no pages must not move")
	}
}

func TestNextSortCycle(t *testing.T) {
	k := model.SortNone
	want := []model.SortKey{model.SortNewest, model.SortOldest, model.SortPopularity, model.SortNewest}
	for _, w := range want {
		k = NextSort(k)
		if k != w {
			t.Fatalf("expected %s, got %s", w, k)
		}
	}
}

func TestParseSort(t *testing.T) {
	if k, err := ParseSort("Newest"); err != nil || k != model.SortNewest {
		t.Fatalf("unexpected %v %v", k, err)
	}
	if k, err := ParseSort(""); err != nil || k != model.SortNone {
		t.Fatalf("unexpected %v %v", k, err)
	}
	if _, err := ParseSort("alphabetical"); err == nil {
		t.Fatalf("expected error")
	}
}
