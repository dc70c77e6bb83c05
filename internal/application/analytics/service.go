package analytics

import (
	"context"
	"sort"
	"time"

	"realty-backend/internal/application/query"
	"realty-backend/internal/domain"
	"realty-backend/internal/pkg/validation"

	"github.com/google/uuid"
)

const (
	maxDays = 365
	maxTop  = 50
)

// ListingSource lists the listings of an owner.
type ListingSource interface {
	FetchOwned(ctx context.Context, ownerID uuid.UUID, req query.FilterRequest) ([]domain.Listing, error)
}

// EventSource reads the event log.
type EventSource interface {
	FetchByListingIDs(ctx context.Context, ids []uuid.UUID, since time.Time) ([]domain.Event, error)
	FetchSiteWide(ctx context.Context, since time.Time) ([]domain.Event, error)
}

type Service struct {
	Listings ListingSource
	Events   EventSource
	Now      func() time.Time
}

// DashboardRequest limits the dashboard to the last Days days (0 for all time) and Top entries per ranking.
type DashboardRequest struct {
	Days int
	Top  int
}

type Dashboard struct {
	Since           *time.Time          `json:"since"`
	TotalEvents     int                 `json:"total_events"`
	PageViews       int                 `json:"page_views"`
	ContactClicks   int                 `json:"contact_clicks"`
	ShowingRequests int                 `json:"showing_requests"`
	OutboundClicks  int                 `json:"outbound_clicks"`
	ConversionRate  float64             `json:"conversion_rate"`
	TopListings     []ListingViews      `json:"top_listings"`
	Referrers       []Bucket            `json:"referrers"`
	UTMSources      []Bucket            `json:"utm_sources"`
	Devices         DeviceCounts        `json:"devices"`
	Listings        []ListingEngagement `json:"listings"`
}

// Dashboard aggregates the events of ownerID's listings together with site-wide events.
func (s *Service) Dashboard(ctx context.Context, ownerID uuid.UUID, req DashboardRequest) (*Dashboard, error) {
	if req.Days < 0 || req.Days > maxDays {
		return nil, validation.Errorf("days", "must be between 0 and %d", maxDays)
	}
	if req.Top < 0 || req.Top > maxTop {
		return nil, validation.Errorf("top", "must be between 0 and %d", maxTop)
	}

	var since time.Time
	if req.Days > 0 {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		since = now().AddDate(0, 0, -req.Days)
	}

	listings, err := s.Listings.FetchOwned(ctx, ownerID, query.FilterRequest{})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	listingEvents, err := s.Events.FetchByListingIDs(ctx, ids, since)
	if err != nil {
		return nil, err
	}
	siteEvents, err := s.Events.FetchSiteWide(ctx, since)
	if err != nil {
		return nil, err
	}
	events := append(append(make([]domain.Event, 0, len(listingEvents)+len(siteEvents)), listingEvents...), siteEvents...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })

	d := &Dashboard{
		TotalEvents:     len(events),
		PageViews:       CountByType(events, domain.EventPageView),
		ContactClicks:   CountByType(events, domain.EventContactClick),
		ShowingRequests: CountByType(events, domain.EventScheduleShowing),
		OutboundClicks:  CountByType(events, domain.EventOutboundClick),
		ConversionRate:  ConversionRate(events),
		TopListings:     TopListingsByViews(events, listings, req.Top),
		Referrers:       GroupByReferrerHost(events),
		UTMSources:      GroupByUtmSource(events),
		Devices:         GroupByDeviceType(events),
		Listings:        make([]ListingEngagement, len(listings)),
	}
	if !since.IsZero() {
		d.Since = &since
	}
	for i, l := range listings {
		d.Listings[i] = ListingStats(listingEvents, l.ID)
	}
	return d, nil
}
