// Package query filters and orders an in-memory catalog. It is pure: the same
// products and State always produce the same sequence, and the input slice is
// never modified.
package query

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"jetroc/internal/domain"
)

type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortPriceAsc   SortKey = "price-asc"
	SortPriceDesc  SortKey = "price-desc"
	SortRatingDesc SortKey = "rating-desc"
)

var SortKeys = []SortKey{SortNewest, SortPriceAsc, SortPriceDesc, SortRatingDesc}

// AllCategories disables category filtering.
const AllCategories = "all"

type State struct {
	Search   string
	Category string // a domain.Category value or AllCategories
	Sort     SortKey
}

// Default is the reset state of the browsing view.
func Default() State {
	return State{Category: AllCategories, Sort: SortNewest}
}

// ParseState normalises raw request input. Unknown categories and sort keys
// fall back to the defaults instead of failing.
func ParseState(search, category, sort string) State {
	st := Default()
	st.Search = strings.TrimSpace(search)
	if c, err := domain.ParseCategory(category); err == nil {
		st.Category = string(c)
	}
	for _, k := range SortKeys {
		if string(k) == sort {
			st.Sort = k
		}
	}
	return st
}

func (s State) IsDefault() bool { return s == Default() }

// Apply filters by search term and category, then stable-sorts by s.Sort.
func Apply(products []domain.Product, s State) []domain.Product {
	folder := cases.Fold()
	term := folder.String(s.Search)

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !matchesCategory(p, s.Category) {
			continue
		}
		if term != "" && !strings.Contains(folder.String(p.Name), term) &&
			!strings.Contains(folder.String(p.Description), term) {
			continue
		}
		out = append(out, p)
	}

	slices.SortStableFunc(out, comparator(s.Sort))
	return out
}

func matchesCategory(p domain.Product, category string) bool {
	return category == "" || category == AllCategories || string(p.Category) == category
}

func comparator(k SortKey) func(a, b domain.Product) int {
	switch k {
	case SortPriceAsc:
		return func(a, b domain.Product) int { return cmp.Compare(a.Price, b.Price) }
	case SortPriceDesc:
		return func(a, b domain.Product) int { return cmp.Compare(b.Price, a.Price) }
	case SortRatingDesc:
		return func(a, b domain.Product) int { return cmp.Compare(b.Rating, a.Rating) }
	default:
		return func(a, b domain.Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}
