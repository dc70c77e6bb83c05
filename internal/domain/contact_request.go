package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContactStatus string

const (
	ContactNew       ContactStatus = "new"
	ContactContacted ContactStatus = "contacted"
	ContactClosed    ContactStatus = "closed"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactContacted, ContactClosed:
		return true
	}
	return false
}

// ContactRequest is a lead submitted from the public site. Only the owning agent changes its status.
type ContactRequest struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string        `gorm:"column:name;not null" json:"name"`
	Email     string        `gorm:"column:email;not null" json:"email"`
	Phone     *string       `gorm:"column:phone" json:"phone"`
	Message   *string       `gorm:"column:message;type:text" json:"message"`
	ListingID *uuid.UUID    `gorm:"column:listing_id;type:uuid;index" json:"listing_id"`
	Status    ContactStatus `gorm:"column:status;type:varchar(20);not null;default:'new'" json:"status"`
	CreatedAt time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (ContactRequest) TableName() string {
	return "contact_requests"
}

func (c *ContactRequest) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
