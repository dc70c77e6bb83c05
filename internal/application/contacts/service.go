package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"realty-backend/internal/application/emails"
	"realty-backend/internal/domain"
	"realty-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	maxNameLen    = 200
	maxMessageLen = 5000
)

var (
	ErrContactNotFound = errors.New("Contact request not found")
	ErrListingNotFound = errors.New("Listing not found")
	ErrForbidden       = errors.New("Contact request belongs to another agent's listing")
)

// Service stores leads. Mailer, NotifyEmail and SiteURL are optional; without them no email is sent.
type Service struct {
	DB          *gorm.DB
	Mailer      emails.Sender
	NotifyEmail string
	SiteURL     string
}

type CreateInput struct {
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone"`
	Message   *string    `json:"message"`
	ListingID *uuid.UUID `json:"listing_id"`
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (in *CreateInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = trimOptional(in.Phone)
	in.Message = trimOptional(in.Message)
	if in.Name == "" {
		return validation.Errorf("name", "is required")
	}
	if len(in.Name) > maxNameLen {
		return validation.Errorf("name", "must be at most %d characters", maxNameLen)
	}
	if !validation.IsValidEmail(in.Email) {
		return validation.Errorf("email", "must be a valid email address")
	}
	if in.Message != nil && len(*in.Message) > maxMessageLen {
		return validation.Errorf("message", "must be at most %d characters", maxMessageLen)
	}
	if in.ListingID != nil && *in.ListingID == uuid.Nil {
		in.ListingID = nil
	}
	return nil
}

// Create stores a new lead with status new and notifies the agent. A failed notification is logged only.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.ContactRequest, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	var listing *domain.Listing
	if in.ListingID != nil {
		var l domain.Listing
		if err := db.Where("id = ? AND published = ?", *in.ListingID, true).First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrListingNotFound
			}
			return nil, fmt.Errorf("Failed to check listing: %w", err)
		}
		listing = &l
	}

	cr := &domain.ContactRequest{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Message:   in.Message,
		ListingID: in.ListingID,
		Status:    domain.ContactNew,
	}
	if err := db.Create(cr).Error; err != nil {
		return nil, fmt.Errorf("Failed to create contact request: %w", err)
	}

	s.notify(ctx, cr, listing)
	return cr, nil
}

func (s *Service) notify(ctx context.Context, cr *domain.ContactRequest, listing *domain.Listing) {
	if s.Mailer == nil || s.NotifyEmail == "" {
		return
	}
	lead := emails.Lead{Name: cr.Name, Email: cr.Email}
	if cr.Phone != nil {
		lead.Phone = *cr.Phone
	}
	if cr.Message != nil {
		lead.Message = *cr.Message
	}
	if listing != nil {
		lead.ListingTitle = listing.Title
		if s.SiteURL != "" {
			lead.ListingURL = strings.TrimRight(s.SiteURL, "/") + "/listings/" + listing.Slug
		}
	}
	if err := s.Mailer.SendNewLead(ctx, s.NotifyEmail, lead); err != nil {
		log.Warn().Err(err).Str("contact_request_id", cr.ID.String()).Msg("new lead email failed")
	}
}

// ListForOwner returns leads on ownerID's listings plus general leads, newest first.
// An empty status returns every status.
func (s *Service) ListForOwner(ctx context.Context, ownerID uuid.UUID, status domain.ContactStatus) ([]domain.ContactRequest, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("Owner not found in session")
	}
	if status != "" && !status.Valid() {
		return nil, validation.Errorf("status", "unknown status %q", status)
	}
	owned := s.DB.Model(&domain.Listing{}).Select("id").Where("owner_id = ?", ownerID)
	q := s.DB.WithContext(ctx).Where("listing_id IS NULL OR listing_id IN (?)", owned)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	out := []domain.ContactRequest{}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch contact requests: %w", err)
	}
	return out, nil
}

// UpdateStatus moves lead id to status. Leads on another agent's listing are off limits.
func (s *Service) UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, status domain.ContactStatus) (*domain.ContactRequest, error) {
	if !status.Valid() {
		return nil, validation.Errorf("status", "unknown status %q", status)
	}
	db := s.DB.WithContext(ctx)
	var cr domain.ContactRequest
	if err := db.Where("id = ?", id).First(&cr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("Failed to fetch contact request: %w", err)
	}
	if cr.ListingID != nil {
		var l domain.Listing
		err := db.Select("owner_id").Where("id = ?", *cr.ListingID).First(&l).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("Failed to fetch listing: %w", err)
		}
		if err == nil && l.OwnerID != ownerID {
			return nil, ErrForbidden
		}
	}
	if err := db.Model(&cr).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("Failed to update contact request: %w", err)
	}
	cr.Status = status
	return &cr, nil
}
