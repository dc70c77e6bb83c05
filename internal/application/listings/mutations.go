package listings

import (
	"context"
	"errors"
	"fmt"

	"realty-backend/internal/application/geocoding"
	"realty-backend/internal/application/querycache"
	"realty-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxSlugAttempts bounds how often Create regenerates a slug lost to a concurrent insert.
const maxSlugAttempts = 3

// Create stores a new listing owned by ownerID and purges the cache entries it affects.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in ListingInput) (*domain.Listing, querycache.Invalidation, error) {
	if ownerID == uuid.Nil {
		return nil, querycache.Invalidation{}, errors.New("Owner not found in session")
	}
	if err := in.validateCreate(); err != nil {
		return nil, querycache.Invalidation{}, err
	}

	listing := &domain.Listing{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		PropertyType: domain.PropertyHouse,
		Status:       domain.StatusForSale,
		Source:       domain.SourceManual,
		Features:     []string{},
		OpenHouses:   []domain.OpenHouse{},
	}
	in.apply(listing)
	if !in.hasCoordinates() {
		s.geocode(ctx, listing)
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.resolveSlug(ctx, tx, in.Slug, listing); err != nil {
				return err
			}
			if err := tx.Omit(clause.Associations).Create(listing).Error; err != nil {
				return fmt.Errorf("Failed to create listing: %w", err)
			}
			if in.Images != nil {
				return replaceImages(tx, listing.ID, *in.Images)
			}
			return nil
		})
		// A concurrent create can take a generated slug between the check and the insert.
		if !isDuplicateKey(err) || in.Slug != nil || attempt == maxSlugAttempts {
			break
		}
		log.Warn().Str("slug", listing.Slug).Int("attempt", attempt).Msg("generated slug taken concurrently, retrying")
		listing.Slug = ""
	}
	if isDuplicateKey(err) && in.Slug != nil {
		err = slugInUse(*in.Slug)
	}
	if err != nil {
		return nil, querycache.Invalidation{}, err
	}

	inv := querycache.ListingChanged(ownerID, "", listing.Slug)
	s.invalidate(ctx, inv)
	created, err := s.FetchOwnedByID(ctx, ownerID, listing.ID)
	if err != nil {
		return nil, inv, err
	}
	return created, inv, nil
}

// Update applies in to listing id. Only the owner may update it.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, in ListingInput) (*domain.Listing, querycache.Invalidation, error) {
	if err := in.validate(); err != nil {
		return nil, querycache.Invalidation{}, err
	}

	current, err := s.loadOwned(s.DB.WithContext(ctx), ownerID, id)
	if err != nil {
		return nil, querycache.Invalidation{}, err
	}

	// Geocoding runs before the transaction so no connection is held across the outbound call.
	regeocode := false
	var geocoded domain.Listing
	if !in.hasCoordinates() {
		geocoded = *current
		in.apply(&geocoded)
		if addressOf(&geocoded) != addressOf(current) {
			regeocode = true
			geocoded.Latitude, geocoded.Longitude = nil, nil
			s.geocode(ctx, &geocoded)
		}
	}

	var oldSlug string
	var listing *domain.Listing
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		listing, err = s.loadOwned(tx, ownerID, id)
		if err != nil {
			return err
		}
		oldSlug = listing.Slug

		in.apply(listing)
		if in.Slug != nil && *in.Slug != oldSlug {
			if err := s.resolveSlug(ctx, tx, in.Slug, listing); err != nil {
				return err
			}
			if err := retireSlug(tx, oldSlug, listing.ID); err != nil {
				return err
			}
		}
		if regeocode {
			listing.Latitude, listing.Longitude = geocoded.Latitude, geocoded.Longitude
			// The address moved again while geocoding; those coordinates belong to neither.
			if addressOf(listing) != addressOf(&geocoded) {
				listing.Latitude, listing.Longitude = nil, nil
			}
		}

		if err := tx.Omit(clause.Associations).Save(listing).Error; err != nil {
			return fmt.Errorf("Failed to update listing: %w", err)
		}
		if in.Images != nil {
			return replaceImages(tx, listing.ID, *in.Images)
		}
		return nil
	})
	if isDuplicateKey(err) && in.Slug != nil {
		err = slugInUse(*in.Slug)
	}
	if err != nil {
		return nil, querycache.Invalidation{}, err
	}

	inv := querycache.ListingChanged(ownerID, oldSlug, listing.Slug)
	s.invalidate(ctx, inv)
	updated, err := s.FetchOwnedByID(ctx, ownerID, id)
	if err != nil {
		return nil, inv, err
	}
	return updated, inv, nil
}

// Delete removes listing id and its images. Only the owner may delete it.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) (*domain.Listing, querycache.Invalidation, error) {
	var listing *domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		listing, err = s.loadOwned(tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", id).Delete(&domain.ListingImage{}).Error; err != nil {
			return fmt.Errorf("Failed to delete listing images: %w", err)
		}
		if err := tx.Delete(&domain.Listing{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("Failed to delete listing: %w", err)
		}
		return retireSlug(tx, listing.Slug, listing.ID)
	})
	if err != nil {
		return nil, querycache.Invalidation{}, err
	}

	inv := querycache.ListingChanged(ownerID, listing.Slug, "")
	s.invalidate(ctx, inv)
	return listing, inv, nil
}

func replaceImages(tx *gorm.DB, listingID uuid.UUID, urls []string) error {
	if err := tx.Where("listing_id = ?", listingID).Delete(&domain.ListingImage{}).Error; err != nil {
		return fmt.Errorf("Failed to replace listing images: %w", err)
	}
	if len(urls) == 0 {
		return nil
	}
	images := make([]domain.ListingImage, len(urls))
	for i, u := range urls {
		images[i] = domain.ListingImage{ListingID: listingID, ImageURL: u, SortOrder: i}
	}
	if err := tx.Create(&images).Error; err != nil {
		return fmt.Errorf("Failed to replace listing images: %w", err)
	}
	return nil
}

// invalidate runs after commit. A failed purge is logged; the entries still expire with the cache TTL.
func (s *Service) invalidate(ctx context.Context, inv querycache.Invalidation) {
	if err := s.Cache.Invalidate(ctx, inv); err != nil {
		log.Error().Err(err).Strs("prefixes", inv.Prefixes).Strs("keys", inv.Keys).Msg("listing cache invalidation failed")
	}
}

func addressOf(l *domain.Listing) geocoding.Address {
	return geocoding.Address{Street: l.Address, City: l.City, State: l.State, Zip: l.Zip}
}

// geocode fills the coordinates of l. Failure leaves them empty.
func (s *Service) geocode(ctx context.Context, l *domain.Listing) {
	if s.Geocoder == nil {
		return
	}
	coords, err := s.Geocoder.Geocode(ctx, addressOf(l))
	if err != nil {
		if errors.Is(err, geocoding.ErrNotFound) {
			log.Info().Str("address", addressOf(l).Query()).Msg("no geocoding match for listing address")
		} else {
			log.Warn().Err(err).Str("address", addressOf(l).Query()).Msg("geocoding failed")
		}
		return
	}
	l.Latitude, l.Longitude = &coords.Latitude, &coords.Longitude
}
