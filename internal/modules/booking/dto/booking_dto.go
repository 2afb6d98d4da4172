package dto

import (
	"time"

	commonDto "anoa.com/runclub/pkg/dto"
	"github.com/google/uuid"
)

// RecordBookingInput is what a verified payment carries into a booking.
type RecordBookingInput struct {
	UserID    uuid.UUID
	EventID   *uuid.UUID
	PaymentID string
	OrderID   string
	Amount    int64
	Currency  string
}

type BookingFilter struct {
	commonDto.PageQuery
	EventID string `form:"event_id" binding:"omitempty,uuid"`
	UserID  string `form:"user_id" binding:"omitempty,uuid"`
	Status  string `form:"status" binding:"omitempty,oneof=confirmed completed cancelled"`
}

type BookingResponse struct {
	ID         uuid.UUID                 `json:"id"`
	UserID     uuid.UUID                 `json:"user_id"`
	User       *commonDto.AuthorResponse `json:"user,omitempty"`
	EventID    *uuid.UUID                `json:"event_id,omitempty"`
	EventTitle string                    `json:"event_title,omitempty"`
	Status     *string                   `json:"status"`
	EventDate  time.Time                 `json:"event_date"`
	Amount     int64                     `json:"amount"`
	Currency   string                    `json:"currency"`
	PaymentID  string                    `json:"payment_id"`
	OrderID    string                    `json:"order_id"`
	CreatedAt  time.Time                 `json:"created_at"`
}

type PaginatedBookingResponse struct {
	Data []BookingResponse        `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}
