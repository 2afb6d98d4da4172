package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Booking is a paid registration. Legacy rows may carry no status.
type Booking struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	EventID   *uuid.UUID `gorm:"type:uuid;index" json:"event_id,omitempty"`
	Status    *string    `gorm:"size:20" json:"status,omitempty"`
	EventDate time.Time  `json:"event_date"`
	Amount    int64      `gorm:"not null" json:"amount"`
	Currency  string     `gorm:"size:3;not null;default:INR" json:"currency"`
	PaymentID string     `gorm:"size:100;uniqueIndex;not null" json:"payment_id"`
	OrderID   string     `gorm:"size:100;index" json:"order_id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`

	User  *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Event *RunEvent `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
