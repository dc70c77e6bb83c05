// Package analytics computes engagement views over the event log.
//
// The aggregation functions are pure: they read the supplied events and nothing else, and identical input
// always yields identical output, ties included.
package analytics

import (
	"math"
	"net/url"
	"sort"
	"strings"

	"realty-backend/internal/domain"

	"github.com/google/uuid"
)

const (
	DefaultTop = 5
	// DirectKey groups events without a usable referrer.
	DirectKey = "Direct"
)

// Bucket is one group of a grouped count.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type DeviceCounts struct {
	Mobile  int `json:"mobile"`
	Desktop int `json:"desktop"`
}

type ListingViews struct {
	ListingID uuid.UUID `json:"listing_id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Views     int       `json:"views"`
}

func CountByType(events []domain.Event, t domain.EventType) int {
	n := 0
	for _, e := range events {
		if e.EventType == t {
			n++
		}
	}
	return n
}

// ConversionRate is (contact clicks + showing requests) per page view, as a percentage with one decimal.
// It is 0 when there are no page views.
func ConversionRate(events []domain.Event) float64 {
	views := CountByType(events, domain.EventPageView)
	if views == 0 {
		return 0
	}
	conversions := CountByType(events, domain.EventContactClick) + CountByType(events, domain.EventScheduleShowing)
	return math.Round(float64(conversions)/float64(views)*1000) / 10
}

// TopListingsByViews ranks listings by page views, ties broken by title then id. n <= 0 means DefaultTop.
// Views of listings not in listings are ignored.
func TopListingsByViews(events []domain.Event, listings []domain.Listing, n int) []ListingViews {
	if n <= 0 {
		n = DefaultTop
	}
	byID := make(map[uuid.UUID]domain.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	counts := make(map[uuid.UUID]int)
	for _, e := range events {
		if e.EventType != domain.EventPageView || e.ListingID == nil {
			continue
		}
		if _, ok := byID[*e.ListingID]; ok {
			counts[*e.ListingID]++
		}
	}

	out := make([]ListingViews, 0, len(counts))
	for id, c := range counts {
		l := byID[id]
		out = append(out, ListingViews{ListingID: id, Title: l.Title, Slug: l.Slug, Views: c})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Views != b.Views {
			return a.Views > b.Views
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ListingID.String() < b.ListingID.String()
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ReferrerHost returns the grouping key for a referrer: its lowercased hostname without a leading "www.",
// or DirectKey when the referrer is missing or not an absolute URL.
func ReferrerHost(referrer *string) string {
	if referrer == nil {
		return DirectKey
	}
	u, err := url.Parse(strings.TrimSpace(*referrer))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return DirectKey
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return DirectKey
	}
	return host
}

func GroupByReferrerHost(events []domain.Event) []Bucket {
	counts := make(map[string]int)
	for _, e := range events {
		counts[ReferrerHost(e.Referrer)]++
	}
	return topBuckets(counts, DefaultTop)
}

// GroupByUtmSource counts events by utm_source. Events without one are left out.
func GroupByUtmSource(events []domain.Event) []Bucket {
	counts := make(map[string]int)
	for _, e := range events {
		if src := strings.TrimSpace(e.UTM.Data().Source); src != "" {
			counts[src]++
		}
	}
	return topBuckets(counts, DefaultTop)
}

// GroupByDeviceType counts mobile and desktop events. Anything else is not counted.
func GroupByDeviceType(events []domain.Event) DeviceCounts {
	var dc DeviceCounts
	for _, e := range events {
		switch e.Device.Data().DeviceType {
		case domain.DeviceMobile:
			dc.Mobile++
		case domain.DeviceDesktop:
			dc.Desktop++
		}
	}
	return dc
}

// topBuckets orders by count descending then key ascending and keeps the first n.
func topBuckets(counts map[string]int, n int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for k, c := range counts {
		out = append(out, Bucket{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ListingEngagement is the per-listing breakdown shown on the dashboard.
type ListingEngagement struct {
	ListingID       uuid.UUID `json:"listing_id"`
	Views           int       `json:"views"`
	ContactClicks   int       `json:"contact_clicks"`
	ShowingRequests int       `json:"showing_requests"`
	OutboundClicks  int       `json:"outbound_clicks"`
	ConversionRate  float64   `json:"conversion_rate"`
}

func ListingStats(events []domain.Event, listingID uuid.UUID) ListingEngagement {
	var own []domain.Event
	for _, e := range events {
		if e.ListingID != nil && *e.ListingID == listingID {
			own = append(own, e)
		}
	}
	return ListingEngagement{
		ListingID:       listingID,
		Views:           CountByType(own, domain.EventPageView),
		ContactClicks:   CountByType(own, domain.EventContactClick),
		ShowingRequests: CountByType(own, domain.EventScheduleShowing),
		OutboundClicks:  CountByType(own, domain.EventOutboundClick),
		ConversionRate:  ConversionRate(own),
	}
}
