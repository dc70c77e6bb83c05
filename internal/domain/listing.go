package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PropertyType string

const (
	PropertyHouse       PropertyType = "house"
	PropertyCondo       PropertyType = "condo"
	PropertyTownhouse   PropertyType = "townhouse"
	PropertyLand        PropertyType = "land"
	PropertyMultiFamily PropertyType = "multi_family"
	PropertyCommercial  PropertyType = "commercial"
	PropertyOther       PropertyType = "other"
)

func (p PropertyType) Valid() bool {
	switch p {
	case PropertyHouse, PropertyCondo, PropertyTownhouse, PropertyLand, PropertyMultiFamily, PropertyCommercial, PropertyOther:
		return true
	}
	return false
}

type ListingStatus string

const (
	StatusForSale ListingStatus = "for_sale"
	StatusForRent ListingStatus = "for_rent"
	StatusSold    ListingStatus = "sold"
	StatusPending ListingStatus = "pending"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case StatusForSale, StatusForRent, StatusSold, StatusPending:
		return true
	}
	return false
}

type ListingSource string

const (
	SourceManual ListingSource = "manual"
	SourceIDX    ListingSource = "idx"
	SourceCSV    ListingSource = "csv"
)

func (s ListingSource) Valid() bool {
	switch s {
	case SourceManual, SourceIDX, SourceCSV:
		return true
	}
	return false
}

// OpenHouse is one entry of a listing's open-house schedule. Date is YYYY-MM-DD, times are HH:MM.
type OpenHouse struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Notes     string `json:"notes,omitempty"`
}

// Listing is a property record. Only published listings are visible on the public surface.
type Listing struct {
	ID           uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Slug         string                        `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	OwnerID      uuid.UUID                     `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	PropertyType PropertyType                  `gorm:"column:property_type;type:varchar(20);not null" json:"property_type"`
	Status       ListingStatus                 `gorm:"column:status;type:varchar(20);not null;default:'for_sale'" json:"status"`
	Source       ListingSource                 `gorm:"column:source;type:varchar(10);not null;default:'manual'" json:"source"`
	Title        string                        `gorm:"column:title;not null" json:"title"`
	Address      string                        `gorm:"column:address;not null" json:"address"`
	City         string                        `gorm:"column:city;not null;index" json:"city"`
	State        string                        `gorm:"column:state" json:"state"`
	Zip          string                        `gorm:"column:zip" json:"zip"`
	Price        float64                       `gorm:"column:price;type:decimal(14,2);not null" json:"price"`
	Beds         *int                          `gorm:"column:beds" json:"beds"`
	Baths        *float64                      `gorm:"column:baths" json:"baths"`
	Sqft         *int                          `gorm:"column:sqft" json:"sqft"`
	LotSize      string                        `gorm:"column:lot_size" json:"lot_size"`
	Description  string                        `gorm:"column:description;type:text" json:"description"`
	Features     datatypes.JSONSlice[string]   `gorm:"column:features" json:"features"`
	CoverImage   string                        `gorm:"column:cover_image" json:"cover_image"`
	Latitude     *float64                      `gorm:"column:latitude" json:"latitude"`
	Longitude    *float64                      `gorm:"column:longitude" json:"longitude"`
	OpenHouses   datatypes.JSONSlice[OpenHouse] `gorm:"column:open_houses" json:"open_houses"`
	Published    bool                          `gorm:"column:published;not null;default:false;index" json:"published"`
	Images       []ListingImage                `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"images"`
	CreatedAt    time.Time                     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time                     `gorm:"column:updated_at" json:"updated_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate sets the id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ListingImage belongs to exactly one listing; SortOrder is unique within the listing.
type ListingImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null;uniqueIndex:idx_listing_image_order" json:"listing_id"`
	ImageURL  string    `gorm:"column:image_url;not null" json:"image_url"`
	SortOrder int       `gorm:"column:sort_order;not null;uniqueIndex:idx_listing_image_order" json:"sort_order"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ListingImage) TableName() string {
	return "listing_images"
}

func (i *ListingImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// RetiredSlug records a slug a listing gave up through a rename or deletion. Retired slugs are never handed
// to another listing.
type RetiredSlug struct {
	Slug      string    `gorm:"column:slug;primaryKey" json:"slug"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	RetiredAt time.Time `gorm:"column:retired_at;autoCreateTime" json:"retired_at"`
}

func (RetiredSlug) TableName() string {
	return "retired_slugs"
}
