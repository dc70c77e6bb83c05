package listings

import (
	"math"
	"strings"
	"time"

	"realty-backend/internal/domain"
	"realty-backend/internal/pkg/validation"
)

// ListingInput is the body of a create or update. On update a nil field is left unchanged.
type ListingInput struct {
	Slug         *string               `json:"slug"`
	PropertyType *domain.PropertyType  `json:"property_type"`
	Status       *domain.ListingStatus `json:"status"`
	Source       *domain.ListingSource `json:"source"`
	Title        *string               `json:"title"`
	Address      *string               `json:"address"`
	City         *string               `json:"city"`
	State        *string               `json:"state"`
	Zip          *string               `json:"zip"`
	Price        *float64              `json:"price"`
	Beds         *int                  `json:"beds"`
	Baths        *float64              `json:"baths"`
	Sqft         *int                  `json:"sqft"`
	LotSize      *string               `json:"lot_size"`
	Description  *string               `json:"description"`
	Features     *[]string             `json:"features"`
	CoverImage   *string               `json:"cover_image"`
	Latitude     *float64              `json:"latitude"`
	Longitude    *float64              `json:"longitude"`
	OpenHouses   *[]domain.OpenHouse   `json:"open_houses"`
	Published    *bool                 `json:"published"`
	// Images is the full ordered set of image URLs; supplying it replaces the existing set.
	Images *[]string `json:"images"`
}

func requireText(field string, v *string) error {
	if v == nil || strings.TrimSpace(*v) == "" {
		return validation.Errorf(field, "is required")
	}
	return nil
}

type namedField struct {
	name  string
	value *string
}

func (in ListingInput) textFields() []namedField {
	return []namedField{{"title", in.Title}, {"address", in.Address}, {"city", in.City}}
}

func (in ListingInput) validateCreate() error {
	for _, f := range in.textFields() {
		if err := requireText(f.name, f.value); err != nil {
			return err
		}
	}
	if in.Price == nil {
		return validation.Errorf("price", "is required")
	}
	return in.validate()
}

// validate checks every supplied field.
func (in ListingInput) validate() error {
	if in.Slug != nil && !validation.IsValidSlug(*in.Slug) {
		return validation.Errorf("slug", "must be lowercase letters, digits and single hyphens")
	}
	if in.PropertyType != nil && !in.PropertyType.Valid() {
		return validation.Errorf("property_type", "unknown property type %q", *in.PropertyType)
	}
	if in.Status != nil && !in.Status.Valid() {
		return validation.Errorf("status", "unknown status %q", *in.Status)
	}
	if in.Source != nil && !in.Source.Valid() {
		return validation.Errorf("source", "unknown source %q", *in.Source)
	}
	for _, f := range in.textFields() {
		if f.value != nil {
			if err := requireText(f.name, f.value); err != nil {
				return err
			}
		}
	}
	if in.Price != nil && !nonNegative(*in.Price) {
		return validation.Errorf("price", "must be a number >= 0")
	}
	if in.Beds != nil && *in.Beds < 0 {
		return validation.Errorf("beds", "must not be negative")
	}
	if in.Baths != nil && !nonNegative(*in.Baths) {
		return validation.Errorf("baths", "must be a number >= 0")
	}
	if in.Sqft != nil && *in.Sqft < 0 {
		return validation.Errorf("sqft", "must not be negative")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return validation.Errorf("latitude", "latitude and longitude must be given together")
	}
	if in.Latitude != nil && (math.IsNaN(*in.Latitude) || *in.Latitude < -90 || *in.Latitude > 90) {
		return validation.Errorf("latitude", "must be between -90 and 90")
	}
	if in.Longitude != nil && (math.IsNaN(*in.Longitude) || *in.Longitude < -180 || *in.Longitude > 180) {
		return validation.Errorf("longitude", "must be between -180 and 180")
	}
	if in.OpenHouses != nil {
		for _, oh := range *in.OpenHouses {
			if err := validateOpenHouse(oh); err != nil {
				return err
			}
		}
	}
	if in.Images != nil {
		for _, u := range *in.Images {
			if strings.TrimSpace(u) == "" {
				return validation.Errorf("images", "image url must not be empty")
			}
		}
	}
	return nil
}

func nonNegative(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

func validateOpenHouse(oh domain.OpenHouse) error {
	if _, err := time.Parse("2006-01-02", oh.Date); err != nil {
		return validation.Errorf("open_houses", "date %q must be YYYY-MM-DD", oh.Date)
	}
	start, err := time.Parse("15:04", oh.StartTime)
	if err != nil {
		return validation.Errorf("open_houses", "start_time %q must be HH:MM", oh.StartTime)
	}
	end, err := time.Parse("15:04", oh.EndTime)
	if err != nil {
		return validation.Errorf("open_houses", "end_time %q must be HH:MM", oh.EndTime)
	}
	if !end.After(start) {
		return validation.Errorf("open_houses", "end_time must be after start_time")
	}
	return nil
}

func cleanFeatures(in []string) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// apply copies every supplied field onto l.
func (in ListingInput) apply(l *domain.Listing) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	if in.PropertyType != nil {
		l.PropertyType = *in.PropertyType
	}
	if in.Status != nil {
		l.Status = *in.Status
	}
	if in.Source != nil {
		l.Source = *in.Source
	}
	setString(&l.Title, in.Title)
	setString(&l.Address, in.Address)
	setString(&l.City, in.City)
	setString(&l.State, in.State)
	setString(&l.Zip, in.Zip)
	setString(&l.LotSize, in.LotSize)
	setString(&l.Description, in.Description)
	setString(&l.CoverImage, in.CoverImage)
	if in.Price != nil {
		l.Price = *in.Price
	}
	if in.Beds != nil {
		l.Beds = in.Beds
	}
	if in.Baths != nil {
		l.Baths = in.Baths
	}
	if in.Sqft != nil {
		l.Sqft = in.Sqft
	}
	if in.Features != nil {
		l.Features = cleanFeatures(*in.Features)
	}
	if in.OpenHouses != nil {
		l.OpenHouses = append([]domain.OpenHouse{}, (*in.OpenHouses)...)
	}
	if in.Latitude != nil {
		l.Latitude, l.Longitude = in.Latitude, in.Longitude
	}
	if in.Published != nil {
		l.Published = *in.Published
	}
}

func (in ListingInput) hasCoordinates() bool {
	return in.Latitude != nil && in.Longitude != nil
}
