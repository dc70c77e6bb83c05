package querycache

import (
	"sort"

	"github.com/google/uuid"
)

const (
	PublicQueryPrefix = "listings:public:"
	ownerQueryRoot    = "listings:owner:"
	slugRoot          = "listings:slug:"
)

// PublicQueryKey is the key of a public listing query with canonical filter canon.
func PublicQueryKey(canon string) string {
	return PublicQueryPrefix + canon
}

// OwnerQueryPrefix covers every admin query scoped to owner.
func OwnerQueryPrefix(owner uuid.UUID) string {
	return ownerQueryRoot + owner.String() + ":"
}

func OwnerQueryKey(owner uuid.UUID, canon string) string {
	return OwnerQueryPrefix(owner) + canon
}

// SlugKey is the key of the single-listing lookup by slug.
func SlugKey(slug string) string {
	return slugRoot + slug
}

// Invalidation lists the cache entries a mutation affected: whole prefixes and exact keys.
type Invalidation struct {
	Prefixes []string `json:"prefixes"`
	Keys     []string `json:"keys"`
}

func (inv Invalidation) Empty() bool {
	return len(inv.Prefixes) == 0 && len(inv.Keys) == 0
}

// Merge returns the union of inv and other, deduplicated and sorted.
func (inv Invalidation) Merge(other Invalidation) Invalidation {
	return Invalidation{
		Prefixes: union(inv.Prefixes, other.Prefixes),
		Keys:     union(inv.Keys, other.Keys),
	}
}

// ListingChanged describes a mutation of a listing owned by owner whose slug went from oldSlug to newSlug.
// Either slug may be empty (create has no old slug, delete has no new one).
func ListingChanged(owner uuid.UUID, oldSlug, newSlug string) Invalidation {
	inv := Invalidation{Prefixes: []string{OwnerQueryPrefix(owner), PublicQueryPrefix}}
	var keys []string
	if oldSlug != "" {
		keys = append(keys, SlugKey(oldSlug))
	}
	if newSlug != "" {
		keys = append(keys, SlugKey(newSlug))
	}
	return inv.Merge(Invalidation{Keys: keys})
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
