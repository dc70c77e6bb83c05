package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"realty-backend/internal/application/geocoding"
	"realty-backend/internal/application/query"
	"realty-backend/internal/application/querycache"
	"realty-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrListingNotFound = errors.New("Listing not found")
	ErrForbidden       = errors.New("Listing belongs to another agent")
)

// Service is the listings data source. Cache and Geocoder are optional.
type Service struct {
	DB       *gorm.DB
	Cache    *querycache.Cache
	Geocoder geocoding.Geocoder
}

// ListPublished runs req against published listings through the query cache.
func (s *Service) ListPublished(ctx context.Context, req query.FilterRequest) ([]domain.Listing, error) {
	req = req.Normalize()
	key := querycache.PublicQueryKey(query.CacheKey(req))
	return querycache.Fetch(ctx, s.Cache, key, func(ctx context.Context) ([]domain.Listing, error) {
		return s.FetchPublished(ctx, req)
	})
}

// ListOwned runs req against every listing of ownerID, published or not, through the query cache.
func (s *Service) ListOwned(ctx context.Context, ownerID uuid.UUID, req query.FilterRequest) ([]domain.Listing, error) {
	req = req.Normalize()
	key := querycache.OwnerQueryKey(ownerID, query.CacheKey(req))
	return querycache.Fetch(ctx, s.Cache, key, func(ctx context.Context) ([]domain.Listing, error) {
		return s.FetchOwned(ctx, ownerID, req)
	})
}

func (s *Service) GetPublishedBySlug(ctx context.Context, slug string) (*domain.Listing, error) {
	return querycache.Fetch(ctx, s.Cache, querycache.SlugKey(slug), func(ctx context.Context) (*domain.Listing, error) {
		return s.FetchBySlug(ctx, slug)
	})
}

func (s *Service) FetchPublished(ctx context.Context, req query.FilterRequest) ([]domain.Listing, error) {
	db := s.DB.WithContext(ctx).Where("published = ?", true)
	return s.fetch(db, query.PublicScope(), req)
}

func (s *Service) FetchOwned(ctx context.Context, ownerID uuid.UUID, req query.FilterRequest) ([]domain.Listing, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("Owner not found in session")
	}
	db := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID)
	return s.fetch(db, query.OwnerScope(ownerID), req)
}

// fetch narrows rows in SQL and lets the engine decide. The SQL predicates only ever return a superset of
// what the engine keeps, so the engine result is authoritative.
func (s *Service) fetch(db *gorm.DB, scope query.Scope, req query.FilterRequest) ([]domain.Listing, error) {
	req = req.Normalize()
	db = prefilter(db, req)
	var rows []domain.Listing
	if err := db.Order("created_at DESC").Order("slug ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch listings: %w", err)
	}
	return query.Apply(rows, scope, req), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func prefilter(db *gorm.DB, req query.FilterRequest) *gorm.DB {
	if req.City != nil && isASCII(*req.City) {
		db = db.Where(`LOWER(city) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToLower(*req.City))+"%")
	}
	if req.Status != nil {
		db = db.Where("status = ?", *req.Status)
	}
	if req.PropertyType != nil {
		db = db.Where("property_type = ?", *req.PropertyType)
	}
	if req.MinPrice != nil {
		db = db.Where("price >= ?", *req.MinPrice)
	}
	if req.MaxPrice != nil {
		db = db.Where("price <= ?", *req.MaxPrice)
	}
	if req.MinBeds != nil {
		db = db.Where("beds IS NOT NULL AND beds >= ?", *req.MinBeds)
	}
	return db
}

// SQL LOWER folds ASCII only on some drivers; non-ASCII city filters are left to the engine.
func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func withOrderedImages(db *gorm.DB) *gorm.DB {
	return db.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	})
}

// FetchBySlug returns the published listing with slug, images included.
func (s *Service) FetchBySlug(ctx context.Context, slug string) (*domain.Listing, error) {
	var listing domain.Listing
	err := withOrderedImages(s.DB.WithContext(ctx)).
		Where("slug = ? AND published = ?", slug, true).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("Failed to fetch listing: %w", err)
	}
	return &listing, nil
}

// FetchOwnedByID returns listing id if ownerID owns it.
func (s *Service) FetchOwnedByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Listing, error) {
	return s.loadOwned(s.DB.WithContext(ctx), ownerID, id)
}

func (s *Service) loadOwned(db *gorm.DB, ownerID, id uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	if err := withOrderedImages(db).Where("id = ?", id).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("Failed to fetch listing: %w", err)
	}
	if listing.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return &listing, nil
}
