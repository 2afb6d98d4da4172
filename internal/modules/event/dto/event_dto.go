package dto

import (
	"time"

	commonDto "anoa.com/runclub/pkg/dto"
	"github.com/google/uuid"
)

type EventFilter struct {
	commonDto.PageQuery
	Upcoming bool `form:"upcoming"`
}

type CreateEventRequest struct {
	Title       string    `form:"title" json:"title" binding:"required,min=3,max=150"`
	Description string    `form:"description" json:"description" binding:"max=5000"`
	Location    string    `form:"location" json:"location" binding:"max=255"`
	EventDate   time.Time `form:"event_date" json:"event_date" time_format:"2006-01-02T15:04:05Z07:00" binding:"required"`
	Price       int64     `form:"price" json:"price" binding:"min=0"`
	Currency    string    `form:"currency" json:"currency" binding:"omitempty,len=3"`
	Capacity    int       `form:"capacity" json:"capacity" binding:"min=0"`
}

type UpdateEventRequest struct {
	Title       *string    `form:"title" json:"title" binding:"omitempty,min=3,max=150"`
	Description *string    `form:"description" json:"description" binding:"omitempty,max=5000"`
	Location    *string    `form:"location" json:"location" binding:"omitempty,max=255"`
	EventDate   *time.Time `form:"event_date" json:"event_date" time_format:"2006-01-02T15:04:05Z07:00"`
	Price       *int64     `form:"price" json:"price" binding:"omitempty,min=0"`
	Capacity    *int       `form:"capacity" json:"capacity" binding:"omitempty,min=0"`
}

type EventResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	EventDate   time.Time `json:"event_date"`
	Price       int64     `json:"price"`
	Currency    string    `json:"currency"`
	Capacity    int       `json:"capacity"`
	Booked      int64     `json:"booked"`
	SpotsLeft   *int64    `json:"spots_left"`
	ImageURL    *string   `json:"image_url"`
}

type PaginatedEventResponse struct {
	Data []EventResponse          `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}
