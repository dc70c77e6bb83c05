package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	EventPageView        EventType = "page_view"
	EventContactClick    EventType = "contact_click"
	EventScheduleShowing EventType = "schedule_showing"
	EventOutboundClick   EventType = "outbound_click"
)

func (t EventType) Valid() bool {
	switch t {
	case EventPageView, EventContactClick, EventScheduleShowing, EventOutboundClick:
		return true
	}
	return false
}

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
)

// UTMParams holds the campaign parameters captured with an event. Empty fields were not present.
type UTMParams struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// DeviceInfo describes the visitor's device. DeviceType is empty when it could not be classified.
type DeviceInfo struct {
	DeviceType DeviceType `json:"device_type,omitempty"`
	Browser    string     `json:"browser,omitempty"`
	OS         string     `json:"os,omitempty"`
	Screen     string     `json:"screen,omitempty"`
}

// Event is an immutable visitor interaction. Rows are only ever inserted.
type Event struct {
	ID        uuid.UUID                       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventType EventType                       `gorm:"column:event_type;type:varchar(30);not null;index" json:"event_type"`
	ListingID *uuid.UUID                      `gorm:"column:listing_id;type:uuid;index" json:"listing_id"`
	SessionID string                          `gorm:"column:session_id;not null" json:"session_id"`
	Referrer  *string                         `gorm:"column:referrer" json:"referrer"`
	UTM       datatypes.JSONType[UTMParams]   `gorm:"column:utm_params" json:"utm_params"`
	Device    datatypes.JSONType[DeviceInfo]  `gorm:"column:device_info" json:"device_info"`
	PagePath  string                          `gorm:"column:page_path;not null" json:"page_path"`
	CreatedAt time.Time                       `gorm:"column:created_at;index" json:"created_at"`
}

func (Event) TableName() string {
	return "events"
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
