package query

import (
	"net/url"
	"strconv"
)

// CacheKey returns the canonical form of req: present fields only, sorted by name, so that
// equal requests map to the same key regardless of how they were built.
func CacheKey(req FilterRequest) string {
	req = req.Normalize()
	v := url.Values{}
	if req.City != nil {
		v.Set("city", *req.City)
	}
	if req.Status != nil {
		v.Set("status", string(*req.Status))
	}
	if req.PropertyType != nil {
		v.Set("propertyType", string(*req.PropertyType))
	}
	if req.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*req.MinPrice, 'f', -1, 64))
	}
	if req.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*req.MaxPrice, 'f', -1, 64))
	}
	if req.MinBeds != nil {
		v.Set("minBeds", strconv.Itoa(*req.MinBeds))
	}
	if req.SortBy != "" {
		v.Set("sortBy", string(req.SortBy))
	}
	return v.Encode()
}
