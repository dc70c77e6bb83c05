package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"realty-backend/internal/domain"
	"realty-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxSlugLen = 80

// Slugify lowercases s, drops accents and joins alphanumeric runs with single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r >= 0x300 && r <= 0x36f:
			// combining mark left over from NFD
		default:
			pendingHyphen = true
		}
	}
	out := b.String()
	if len(out) > maxSlugLen {
		out = strings.TrimRight(out[:maxSlugLen], "-")
	}
	return out
}

// uniqueSlug returns base, or base-N with the smallest N >= 2 not taken by another listing or retired.
func uniqueSlug(db *gorm.DB, base string, exclude uuid.UUID) (string, error) {
	if base == "" {
		base = "listing"
	}
	var live, retired []string
	err := db.Model(&domain.Listing{}).
		Where("id <> ?", exclude).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &live).Error
	if err == nil {
		err = db.Model(&domain.RetiredSlug{}).
			Where("listing_id <> ?", exclude).
			Where("slug = ? OR slug LIKE ?", base, base+"-%").
			Pluck("slug", &retired).Error
	}
	if err != nil {
		return "", fmt.Errorf("Failed to check slug: %w", err)
	}
	used := make(map[string]struct{}, len(live)+len(retired))
	for _, s := range append(live, retired...) {
		used[s] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base, nil
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, ok := used[candidate]; !ok {
			return candidate, nil
		}
	}
}

// claimSlug checks an explicitly requested slug against every other listing and every slug retired by one.
// A listing may take back a slug it retired itself.
func claimSlug(db *gorm.DB, slug string, exclude uuid.UUID) error {
	var live, retired int64
	if err := db.Model(&domain.Listing{}).Where("slug = ? AND id <> ?", slug, exclude).Count(&live).Error; err != nil {
		return fmt.Errorf("Failed to check slug: %w", err)
	}
	if err := db.Model(&domain.RetiredSlug{}).Where("slug = ? AND listing_id <> ?", slug, exclude).Count(&retired).Error; err != nil {
		return fmt.Errorf("Failed to check slug: %w", err)
	}
	if live+retired > 0 {
		return slugInUse(slug)
	}
	return nil
}

func slugInUse(slug string) error {
	return validation.Errorf("slug", "%q is already in use", slug)
}

// retireSlug keeps slug reserved after listingID stops using it.
func retireSlug(tx *gorm.DB, slug string, listingID uuid.UUID) error {
	if slug == "" {
		return nil
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.RetiredSlug{Slug: slug, ListingID: listingID}).Error
	if err != nil {
		return fmt.Errorf("Failed to retire slug: %w", err)
	}
	return nil
}

// isDuplicateKey reports a unique index rejection. It relies on gorm's TranslateError.
func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func (s *Service) resolveSlug(ctx context.Context, db *gorm.DB, requested *string, l *domain.Listing) error {
	if requested != nil {
		if err := claimSlug(db.WithContext(ctx), *requested, l.ID); err != nil {
			return err
		}
		l.Slug = *requested
		return nil
	}
	if l.Slug != "" {
		return nil
	}
	slug, err := uniqueSlug(db.WithContext(ctx), Slugify(l.Title+" "+l.City), l.ID)
	if err != nil {
		return err
	}
	l.Slug = slug
	return nil
}
