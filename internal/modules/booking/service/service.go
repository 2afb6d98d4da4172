package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/booking/dto"
	"anoa.com/runclub/internal/modules/booking/repository"
	emailDto "anoa.com/runclub/internal/modules/email/dto"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/changefeed"
	commonDto "anoa.com/runclub/pkg/dto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type EventLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.RunEvent, error)
}

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
}

type Mailer interface {
	SendBookingConfirmation(ctx context.Context, msg emailDto.BookingConfirmation) error
}

type BookingService interface {
	// Record stores the booking for a verified payment. Replaying the same
	// payment returns the stored booking with created=false.
	Record(ctx context.Context, input dto.RecordBookingInput) (*entity.Booking, bool, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]dto.BookingResponse, error)
	ListAll(ctx context.Context, filter dto.BookingFilter) (*dto.PaginatedBookingResponse, error)
	Stats(ctx context.Context, userID uuid.UUID) (Stats, error)
	Totals(ctx context.Context) (count int64, revenue int64, err error)
}

type Deps struct {
	Repo   repository.BookingRepository
	Events EventLookup
	Users  UserLookup
	Mailer Mailer
	Feed   changefeed.Publisher
	Calc   *StatCalculator
	Log    logrus.FieldLogger
}

type bookingService struct {
	Deps
	async func(func())
	now   func() time.Time
}

func NewBookingService(deps Deps) BookingService {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &bookingService{
		Deps:  deps,
		async: func(f func()) { go f() },
		now:   time.Now,
	}
}

func (s *bookingService) Record(ctx context.Context, input dto.RecordBookingInput) (*entity.Booking, bool, error) {
	if input.UserID == uuid.Nil {
		return nil, false, apperror.Invalid("booking requires a user")
	}
	if strings.TrimSpace(input.PaymentID) == "" {
		return nil, false, apperror.Invalid("booking requires a payment id")
	}

	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = "INR"
	}

	status := entity.BookingStatusConfirmed
	booking := &entity.Booking{
		UserID:    input.UserID,
		EventID:   input.EventID,
		Status:    &status,
		EventDate: s.now(),
		Amount:    input.Amount,
		Currency:  currency,
		PaymentID: input.PaymentID,
		OrderID:   input.OrderID,
	}

	var event *entity.RunEvent
	if input.EventID != nil && s.Events != nil {
		var err error
		event, err = s.Events.FindByID(ctx, *input.EventID)
		if err != nil {
			return nil, false, fmt.Errorf("load event %s: %w", input.EventID, err)
		}
		booking.EventDate = event.EventDate
	}

	stored, created, err := s.Repo.CreateIfAbsent(ctx, booking)
	if err != nil {
		return nil, false, err
	}
	if !created {
		s.Log.WithField("payment_id", input.PaymentID).Info("booking already recorded for payment")
		return stored, false, nil
	}

	s.publish(ctx, stored)
	s.async(func() { s.afterCreate(context.Background(), stored, event) })

	return stored, true, nil
}

func (s *bookingService) publish(ctx context.Context, b *entity.Booking) {
	if s.Feed == nil {
		return
	}
	ev, err := changefeed.NewEvent("bookings", changefeed.Created, b.ID.String(), map[string]string{
		"user_id": b.UserID.String(),
	})
	if err == nil {
		err = s.Feed.Publish(ctx, changefeed.TopicBookings, ev)
	}
	if err != nil {
		s.Log.WithError(err).WithField("booking_id", b.ID).Warn("failed to publish booking change")
	}
}

// afterCreate sends the confirmation email. Failures are logged and never
// undo the booking.
func (s *bookingService) afterCreate(ctx context.Context, b *entity.Booking, event *entity.RunEvent) {
	title := "your run"
	if event != nil {
		title = event.Title
	}

	if s.Mailer == nil || s.Users == nil {
		return
	}

	user, err := s.Users.FindByID(ctx, b.UserID.String())
	if err != nil {
		s.Log.WithError(err).WithField("booking_id", b.ID).Warn("failed to load user for confirmation email")
		return
	}
	if user.Email == nil || *user.Email == "" {
		return
	}

	err = s.Mailer.SendBookingConfirmation(ctx, emailDto.BookingConfirmation{
		ToEmail:    *user.Email,
		ToName:     user.DisplayName,
		EventTitle: title,
		EventDate:  b.EventDate,
		Amount:     b.Amount,
		Currency:   b.Currency,
		PaymentID:  b.PaymentID,
		BookingID:  b.ID.String(),
	})
	if err != nil {
		s.Log.WithError(err).WithField("booking_id", b.ID).Warn("failed to send confirmation email")
	}
}

func (s *bookingService) ListMine(ctx context.Context, userID uuid.UUID) ([]dto.BookingResponse, error) {
	bookings, err := s.Repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toResponse(&bookings[i]))
	}
	return out, nil
}

func (s *bookingService) ListAll(ctx context.Context, filter dto.BookingFilter) (*dto.PaginatedBookingResponse, error) {
	offset := filter.Normalize()

	repoFilter := repository.Filter{Status: filter.Status}
	if filter.EventID != "" {
		id, err := uuid.Parse(filter.EventID)
		if err != nil {
			return nil, apperror.Invalid("invalid event_id")
		}
		repoFilter.EventID = &id
	}
	if filter.UserID != "" {
		id, err := uuid.Parse(filter.UserID)
		if err != nil {
			return nil, apperror.Invalid("invalid user_id")
		}
		repoFilter.UserID = &id
	}

	bookings, total, err := s.Repo.FindAll(ctx, repoFilter, offset, filter.Limit)
	if err != nil {
		return nil, err
	}

	data := make([]dto.BookingResponse, 0, len(bookings))
	for i := range bookings {
		data = append(data, toResponse(&bookings[i]))
	}

	return &dto.PaginatedBookingResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(filter.PageQuery, total),
	}, nil
}

func (s *bookingService) Stats(ctx context.Context, userID uuid.UUID) (Stats, error) {
	stats, err := s.Calc.Calculate(ctx, userID)
	if err != nil {
		s.Log.WithError(err).WithField("user_id", userID).Warn("stat calculation failed, returning zero stats")
		return Stats{}, nil
	}
	return stats, nil
}

func (s *bookingService) Totals(ctx context.Context) (int64, int64, error) {
	return s.Repo.Totals(ctx)
}

func toResponse(b *entity.Booking) dto.BookingResponse {
	resp := dto.BookingResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		EventID:   b.EventID,
		Status:    b.Status,
		EventDate: b.EventDate,
		Amount:    b.Amount,
		Currency:  b.Currency,
		PaymentID: b.PaymentID,
		OrderID:   b.OrderID,
		CreatedAt: b.CreatedAt,
	}
	if b.Event != nil {
		resp.EventTitle = b.Event.Title
	}
	if b.User != nil {
		resp.User = &commonDto.AuthorResponse{
			ID:          b.User.ID.String(),
			DisplayName: b.User.DisplayName,
			PhotoURL:    b.User.PhotoURL,
		}
	}
	return resp
}
