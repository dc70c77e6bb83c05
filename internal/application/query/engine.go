// Package query filters and orders listing collections and derives canonical cache keys for listing queries.
package query

import (
	"sort"

	"realty-backend/internal/domain"
)

// Apply returns the listings of the given scope that match req, in the requested order.
// The input slice is never modified; equal sort keys keep their input order.
func Apply(listings []domain.Listing, scope Scope, req FilterRequest) []domain.Listing {
	req = req.Normalize()
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if scope.allows(l) && req.Matches(l) {
			out = append(out, l)
		}
	}
	sortListings(out, req.Sort())
	return out
}

func sortListings(listings []domain.Listing, by SortBy) {
	newer := func(i, j int) bool {
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	}
	switch by {
	case SortPriceAsc:
		sort.SliceStable(listings, func(i, j int) bool {
			if listings[i].Price != listings[j].Price {
				return listings[i].Price < listings[j].Price
			}
			return newer(i, j)
		})
	case SortPriceDesc:
		sort.SliceStable(listings, func(i, j int) bool {
			if listings[i].Price != listings[j].Price {
				return listings[i].Price > listings[j].Price
			}
			return newer(i, j)
		})
	default:
		sort.SliceStable(listings, newer)
	}
}
