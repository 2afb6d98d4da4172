package service

import (
	"context"
	"errors"
	"testing"

	"anoa.com/runclub/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(s string) *string { return &s }

type listerFunc struct {
	byUser map[uuid.UUID][]entity.Booking
	err    error
}

func (l listerFunc) FindByUserID(_ context.Context, id uuid.UUID) ([]entity.Booking, error) {
	return l.byUser[id], l.err
}

func (l listerFunc) FindByUserIDs(_ context.Context, ids []uuid.UUID) ([]entity.Booking, error) {
	if l.err != nil {
		return nil, l.err
	}
	var out []entity.Booking
	for _, id := range ids {
		out = append(out, l.byUser[id]...)
	}
	return out, nil
}

func TestCountRuns(t *testing.T) {
	cases := []struct {
		name     string
		bookings []entity.Booking
		fallback bool
		want     int
	}{
		{"empty", nil, false, 0},
		{"empty with fallback", nil, true, 0},
		{"confirmed and cancelled", []entity.Booking{{Status: status("confirmed")}, {Status: status("cancelled")}}, false, 1},
		{"missing status counts", []entity.Booking{{}, {Status: status("completed")}}, false, 2},
		{"only cancelled", []entity.Booking{{Status: status("cancelled")}, {Status: status("pending")}}, false, 0},
		{"only cancelled with fallback", []entity.Booking{{Status: status("cancelled")}, {Status: status("pending")}}, true, 2},
		{"fallback unused when something counts", []entity.Booking{{Status: status("confirmed")}, {Status: status("cancelled")}}, true, 1},
		{"status is case sensitive", []entity.Booking{{Status: status("Confirmed")}}, false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CountRuns(tc.bookings, tc.fallback))
		})
	}
}

func TestDistanceIsTwicePerRun(t *testing.T) {
	for runs := 0; runs < 10; runs++ {
		s := NewStats(runs)
		assert.Equal(t, runs*DistancePerRun, s.TotalDistance)
	}
}

func TestCalculate(t *testing.T) {
	user := uuid.New()
	calc := NewStatCalculator(listerFunc{byUser: map[uuid.UUID][]entity.Booking{
		user: {{Status: status("confirmed")}, {Status: status("completed")}, {}},
	}}, false)

	got, err := calc.Calculate(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalRuns: 3, TotalDistance: 6}, got)

	none, err := calc.Calculate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, none)
}

func TestCalculateStoreFailureReturnsZero(t *testing.T) {
	calc := NewStatCalculator(listerFunc{err: errors.New("store unavailable")}, false)

	got, err := calc.Calculate(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.Equal(t, Stats{}, got)
}

func TestCalculateMany(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	calc := NewStatCalculator(listerFunc{byUser: map[uuid.UUID][]entity.Booking{
		a: {{UserID: a, Status: status("confirmed")}, {UserID: a}},
		b: {{UserID: b, Status: status("cancelled")}},
	}}, false)

	got, err := calc.CalculateMany(context.Background(), []uuid.UUID{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalRuns: 2, TotalDistance: 4}, got[a])
	assert.Equal(t, Stats{}, got[b])
	assert.Equal(t, Stats{}, got[c])
}
