package domain

import (
	"fmt"
	"strings"
)

// SortOption orders a product listing.
type SortOption string

const (
	SortPopular     SortOption = "POPULAR"
	SortLowPrice    SortOption = "LOW_PRICE"
	SortNewProduct  SortOption = "NEW_PRODUCT"
	SortBestSellers SortOption = "BEST_SELLERS"
)

// Season and person categories understood by the catalog.
const (
	CategoryMain     = "MAIN"
	CategoryAll      = "ALL"
	CategorySummer   = "SUMMER"
	CategoryWinter   = "WINTER"
	CategoryMen      = "MEN"
	CategoryWomen    = "WOMEN"
	CategoryChildren = "CHILDREN"
)

// Filter identifies the product subset a feed paginates over.
// An empty Query means no keyword. Person categories carry a product
// category after a slash, e.g. "MEN/SNEAKERS".
type Filter struct {
	Category string     `json:"category"`
	Query    string     `json:"query,omitempty"`
	Sort     SortOption `json:"sort,omitempty"`
}

func (f Filter) String() string {
	if f.Query == "" {
		return fmt.Sprintf("%s[%s]", f.Category, f.sortOrDefault())
	}
	return fmt.Sprintf("%s[%s] q=%q", f.Category, f.sortOrDefault(), f.Query)
}

func (f Filter) sortOrDefault() SortOption {
	if f.Sort == "" {
		return SortPopular
	}
	return f.Sort
}

// Normalize upper-cases the category and sort and trims the query.
func (f Filter) Normalize() Filter {
	return Filter{
		Category: strings.ToUpper(strings.TrimSpace(f.Category)),
		Query:    strings.TrimSpace(f.Query),
		Sort:     SortOption(strings.ToUpper(strings.TrimSpace(string(f.Sort)))),
	}
}

// Validate reports whether the filter names a known category and sort option.
func (f Filter) Validate() error {
	switch f.Sort {
	case "", SortPopular, SortLowPrice, SortNewProduct, SortBestSellers:
	default:
		return fmt.Errorf("%w: sort %q", ErrUnknownCategory, f.Sort)
	}

	head, product, nested := strings.Cut(f.Category, "/")
	switch head {
	case CategoryMain, CategoryAll, CategorySummer, CategoryWinter:
		if nested {
			return fmt.Errorf("%w: %q takes no product category", ErrUnknownCategory, f.Category)
		}
		return nil
	case CategoryMen, CategoryWomen, CategoryChildren:
		if !nested || product == "" {
			return fmt.Errorf("%w: %q needs a product category", ErrUnknownCategory, f.Category)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCategory, f.Category)
	}
}
