package query

import (
	"strings"

	"realty-backend/internal/domain"

	"github.com/google/uuid"
)

type SortBy string

const (
	SortNewest    SortBy = "newest"
	SortPriceAsc  SortBy = "price_asc"
	SortPriceDesc SortBy = "price_desc"
)

func (s SortBy) Valid() bool {
	switch s {
	case SortNewest, SortPriceAsc, SortPriceDesc:
		return true
	}
	return false
}

// allValue is what filter forms send for "no constraint" on enum fields.
const allValue = "all"

// FilterRequest is a partially specified listing query. A nil field is no constraint.
type FilterRequest struct {
	City         *string               `json:"city,omitempty"`
	Status       *domain.ListingStatus `json:"status,omitempty"`
	PropertyType *domain.PropertyType  `json:"propertyType,omitempty"`
	MinPrice     *float64              `json:"minPrice,omitempty"`
	MaxPrice     *float64              `json:"maxPrice,omitempty"`
	MinBeds      *int                  `json:"minBeds,omitempty"`
	SortBy       SortBy                `json:"sortBy,omitempty"`
}

// Normalize returns a copy where blank strings and "all" are absent and the default sort is implicit.
func (r FilterRequest) Normalize() FilterRequest {
	out := r
	if r.City != nil {
		city := strings.TrimSpace(*r.City)
		if city == "" {
			out.City = nil
		} else {
			out.City = &city
		}
	}
	if r.Status != nil && (*r.Status == "" || *r.Status == allValue) {
		out.Status = nil
	}
	if r.PropertyType != nil && (*r.PropertyType == "" || *r.PropertyType == allValue) {
		out.PropertyType = nil
	}
	if r.SortBy == SortNewest {
		out.SortBy = ""
	}
	return out
}

// Sort returns the effective ordering.
func (r FilterRequest) Sort() SortBy {
	if r.SortBy == "" {
		return SortNewest
	}
	return r.SortBy
}

// Matches reports whether l satisfies every present predicate. r must be normalized.
func (r FilterRequest) Matches(l domain.Listing) bool {
	if r.City != nil && !strings.Contains(strings.ToLower(l.City), strings.ToLower(*r.City)) {
		return false
	}
	if r.Status != nil && l.Status != *r.Status {
		return false
	}
	if r.PropertyType != nil && l.PropertyType != *r.PropertyType {
		return false
	}
	if r.MinPrice != nil && l.Price < *r.MinPrice {
		return false
	}
	if r.MaxPrice != nil && l.Price > *r.MaxPrice {
		return false
	}
	if r.MinBeds != nil && (l.Beds == nil || *l.Beds < *r.MinBeds) {
		return false
	}
	return true
}

// Scope selects the surface a query runs on. A nil OwnerID is the public surface.
type Scope struct {
	OwnerID *uuid.UUID
}

func PublicScope() Scope {
	return Scope{}
}

func OwnerScope(ownerID uuid.UUID) Scope {
	return Scope{OwnerID: &ownerID}
}

func (s Scope) IsPublic() bool {
	return s.OwnerID == nil
}

func (s Scope) allows(l domain.Listing) bool {
	if s.OwnerID == nil {
		return l.Published
	}
	return l.OwnerID == *s.OwnerID
}
