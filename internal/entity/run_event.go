package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunEvent is a bookable club run.
type RunEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"size:150;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"size:255" json:"location"`
	EventDate   time.Time `gorm:"not null;index" json:"event_date"`
	Price       int64     `gorm:"not null;default:0" json:"price"` // minor units
	Currency    string    `gorm:"size:3;not null;default:INR" json:"currency"`
	Capacity    int       `gorm:"not null;default:0" json:"capacity"` // 0 means unlimited
	ImageURL    *string   `gorm:"type:text" json:"image_url,omitempty"`
	CreatedBy   uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *RunEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
