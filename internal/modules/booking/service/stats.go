package service

import (
	"context"

	"anoa.com/runclub/internal/entity"
	"github.com/google/uuid"
)

// DistancePerRun is the nominal distance credited for each counted booking.
const DistancePerRun = 2

type Stats struct {
	TotalRuns     int `json:"total_runs"`
	TotalDistance int `json:"total_distance"`
}

func NewStats(runs int) Stats {
	return Stats{TotalRuns: runs, TotalDistance: runs * DistancePerRun}
}

type BookingLister interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]entity.Booking, error)
	FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]entity.Booking, error)
}

// StatCalculator derives running stats from a member's bookings. Results are
// never cached.
type StatCalculator struct {
	bookings       BookingLister
	legacyFallback bool
}

// NewStatCalculator builds a calculator. With legacyFallback a member whose
// bookings all carry non-counting statuses is credited for every booking.
func NewStatCalculator(bookings BookingLister, legacyFallback bool) *StatCalculator {
	return &StatCalculator{bookings: bookings, legacyFallback: legacyFallback}
}

// Calculate returns zero stats together with the error when the store fails.
func (c *StatCalculator) Calculate(ctx context.Context, userID uuid.UUID) (Stats, error) {
	bookings, err := c.bookings.FindByUserID(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	return NewStats(CountRuns(bookings, c.legacyFallback)), nil
}

// CalculateMany computes stats for every id in one query. Ids without
// bookings map to zero stats.
func (c *StatCalculator) CalculateMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]Stats, error) {
	bookings, err := c.bookings.FindByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	byUser := make(map[uuid.UUID][]entity.Booking, len(userIDs))
	for _, b := range bookings {
		byUser[b.UserID] = append(byUser[b.UserID], b)
	}

	out := make(map[uuid.UUID]Stats, len(userIDs))
	for _, id := range userIDs {
		out[id] = NewStats(CountRuns(byUser[id], c.legacyFallback))
	}
	return out, nil
}

// Countable reports whether a booking counts as a run: no status, completed
// or confirmed.
func Countable(b entity.Booking) bool {
	if b.Status == nil {
		return true
	}
	switch *b.Status {
	case entity.BookingStatusCompleted, entity.BookingStatusConfirmed:
		return true
	}
	return false
}

func CountRuns(bookings []entity.Booking, legacyFallback bool) int {
	runs := 0
	for _, b := range bookings {
		if Countable(b) {
			runs++
		}
	}
	if runs == 0 && legacyFallback {
		return len(bookings)
	}
	return runs
}
