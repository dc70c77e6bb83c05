package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"realty-backend/internal/domain"
	"realty-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxSessionIDLen = 128

var ErrListingNotFound = errors.New("Listing not found")

type Service struct {
	DB *gorm.DB
}

// RecordInput is one tracked visitor interaction as sent by the site.
type RecordInput struct {
	EventType domain.EventType  `json:"event_type"`
	ListingID *uuid.UUID        `json:"listing_id"`
	SessionID string            `json:"session_id"`
	Referrer  *string           `json:"referrer"`
	UTM       domain.UTMParams  `json:"utm_params"`
	Device    domain.DeviceInfo `json:"device_info"`
	PagePath  string            `json:"page_path"`
}

func (in *RecordInput) normalize() error {
	if !in.EventType.Valid() {
		return validation.Errorf("event_type", "unknown event type %q", in.EventType)
	}
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return validation.Errorf("session_id", "is required")
	}
	if len(in.SessionID) > maxSessionIDLen {
		return validation.Errorf("session_id", "must be at most %d characters", maxSessionIDLen)
	}
	in.PagePath = strings.TrimSpace(in.PagePath)
	if !strings.HasPrefix(in.PagePath, "/") {
		return validation.Errorf("page_path", "must start with /")
	}
	switch in.Device.DeviceType {
	case "", domain.DeviceMobile, domain.DeviceDesktop:
	default:
		return validation.Errorf("device_type", "must be mobile or desktop")
	}
	if in.Referrer != nil && strings.TrimSpace(*in.Referrer) == "" {
		in.Referrer = nil
	}
	if in.ListingID != nil && *in.ListingID == uuid.Nil {
		in.ListingID = nil
	}
	return nil
}

// Record appends an event. Events are never updated or deleted.
func (s *Service) Record(ctx context.Context, in RecordInput) (*domain.Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if in.ListingID != nil {
		var count int64
		if err := db.Model(&domain.Listing{}).Where("id = ?", *in.ListingID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("Failed to check listing: %w", err)
		}
		if count == 0 {
			return nil, ErrListingNotFound
		}
	}
	event := &domain.Event{
		EventType: in.EventType,
		ListingID: in.ListingID,
		SessionID: in.SessionID,
		Referrer:  in.Referrer,
		UTM:       datatypes.NewJSONType(in.UTM),
		Device:    datatypes.NewJSONType(in.Device),
		PagePath:  in.PagePath,
	}
	if err := db.Create(event).Error; err != nil {
		return nil, fmt.Errorf("Failed to record event: %w", err)
	}
	return event, nil
}

// FetchByListingIDs returns the events of the given listings, oldest first. A zero since means no lower bound.
func (s *Service) FetchByListingIDs(ctx context.Context, ids []uuid.UUID, since time.Time) ([]domain.Event, error) {
	if len(ids) == 0 {
		return []domain.Event{}, nil
	}
	return s.find(s.DB.WithContext(ctx).Where("listing_id IN ?", ids), since)
}

// FetchSiteWide returns events not tied to any listing, oldest first.
func (s *Service) FetchSiteWide(ctx context.Context, since time.Time) ([]domain.Event, error) {
	return s.find(s.DB.WithContext(ctx).Where("listing_id IS NULL"), since)
}

func (s *Service) find(db *gorm.DB, since time.Time) ([]domain.Event, error) {
	if !since.IsZero() {
		db = db.Where("created_at >= ?", since)
	}
	events := []domain.Event{}
	if err := db.Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch events: %w", err)
	}
	return events, nil
}

// DeviceFromUserAgent classifies a User-Agent header. Empty input yields an empty type.
func DeviceFromUserAgent(ua string) domain.DeviceType {
	if ua == "" {
		return ""
	}
	l := strings.ToLower(ua)
	for _, marker := range []string{"mobi", "android", "iphone", "ipad", "ipod"} {
		if strings.Contains(l, marker) {
			return domain.DeviceMobile
		}
	}
	return domain.DeviceDesktop
}
