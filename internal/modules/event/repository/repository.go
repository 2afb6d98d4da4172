package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventRepository interface {
	Create(ctx context.Context, event *entity.RunEvent) error
	Update(ctx context.Context, event *entity.RunEvent) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.RunEvent, error)
	FindAll(ctx context.Context, from *time.Time, offset, limit int) ([]entity.RunEvent, int64, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *entity.RunEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) Update(ctx context.Context, event *entity.RunEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&entity.RunEvent{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.RunEvent, error) {
	var event entity.RunEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindAll lists events by date; from limits to events on or after it.
func (r *eventRepository) FindAll(ctx context.Context, from *time.Time, offset, limit int) ([]entity.RunEvent, int64, error) {
	var events []entity.RunEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.RunEvent{})
	if from != nil {
		query = query.Where("event_date >= ?", *from)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("event_date ASC").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
