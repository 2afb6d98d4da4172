package repository

import (
	"context"
	"errors"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository interface {
	// CreateIfAbsent inserts unless a booking with the same payment id exists.
	// The stored booking is returned either way.
	CreateIfAbsent(ctx context.Context, booking *entity.Booking) (*entity.Booking, bool, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]entity.Booking, error)
	FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]entity.Booking, error)
	FindAll(ctx context.Context, filter Filter, offset, limit int) ([]entity.Booking, int64, error)
	CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
	Totals(ctx context.Context) (count int64, revenue int64, err error)
}

type Filter struct {
	EventID *uuid.UUID
	UserID  *uuid.UUID
	Status  string
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) CreateIfAbsent(ctx context.Context, booking *entity.Booking) (*entity.Booking, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payment_id"}}, DoNothing: true}).
		Create(booking)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return booking, true, nil
	}

	existing, err := r.FindByPaymentID(ctx, booking.PaymentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *bookingRepository) FindByPaymentID(ctx context.Context, paymentID string) (*entity.Booking, error) {
	var booking entity.Booking
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := r.db.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("event_date DESC").
		Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]entity.Booking, error) {
	var bookings []entity.Booking
	if len(userIDs) == 0 {
		return bookings, nil
	}
	err := r.db.WithContext(ctx).
		Select("id", "user_id", "status").
		Where("user_id IN ?", userIDs).
		Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) FindAll(ctx context.Context, filter Filter, offset, limit int) ([]entity.Booking, int64, error) {
	var bookings []entity.Booking
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Booking{})
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "display_name", "phone", "email")
		}).
		Preload("Event").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *bookingRepository) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Booking{}).
		Where("event_id = ? AND (status IS NULL OR status <> ?)", eventID, entity.BookingStatusCancelled).
		Count(&count).Error
	return count, err
}

func (r *bookingRepository) Totals(ctx context.Context) (int64, int64, error) {
	var row struct {
		Count   int64
		Revenue int64
	}
	err := r.db.WithContext(ctx).Model(&entity.Booking{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS revenue").
		Where("status IS NULL OR status <> ?", entity.BookingStatusCancelled).
		Scan(&row).Error
	return row.Count, row.Revenue, err
}
