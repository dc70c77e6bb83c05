package query

import (
	"strings"

	"realty-backend/internal/domain"
	"realty-backend/internal/pkg/validation"
)

// ParseFilter validates raw query parameters into a FilterRequest. Blank values are treated as absent.
// Any malformed value rejects the whole request.
func ParseFilter(params map[string]string) (FilterRequest, error) {
	var req FilterRequest
	get := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(params[k]); v != "" {
				return v
			}
		}
		return ""
	}

	if city := get("city"); city != "" {
		req.City = &city
	}
	if s := get("status"); s != "" && s != allValue {
		status := domain.ListingStatus(s)
		if !status.Valid() {
			return FilterRequest{}, validation.Errorf("status", "unknown status %q", s)
		}
		req.Status = &status
	}
	if s := get("propertyType", "property_type"); s != "" && s != allValue {
		pt := domain.PropertyType(s)
		if !pt.Valid() {
			return FilterRequest{}, validation.Errorf("propertyType", "unknown property type %q", s)
		}
		req.PropertyType = &pt
	}
	if s := get("minPrice", "min_price"); s != "" {
		v, err := validation.ParseNonNegativeFloat("minPrice", s)
		if err != nil {
			return FilterRequest{}, err
		}
		req.MinPrice = &v
	}
	if s := get("maxPrice", "max_price"); s != "" {
		v, err := validation.ParseNonNegativeFloat("maxPrice", s)
		if err != nil {
			return FilterRequest{}, err
		}
		req.MaxPrice = &v
	}
	if s := get("minBeds", "min_beds"); s != "" {
		v, err := validation.ParseNonNegativeInt("minBeds", s)
		if err != nil {
			return FilterRequest{}, err
		}
		req.MinBeds = &v
	}
	if s := get("sortBy", "sort_by"); s != "" {
		sortBy := SortBy(s)
		if !sortBy.Valid() {
			return FilterRequest{}, validation.Errorf("sortBy", "unknown sort %q", s)
		}
		req.SortBy = sortBy
	}
	return req.Normalize(), nil
}
