package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/event/dto"
	"anoa.com/runclub/internal/modules/event/repository"
	"anoa.com/runclub/pkg/apperror"
	commonDto "anoa.com/runclub/pkg/dto"
	"anoa.com/runclub/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type BookingCounter interface {
	CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

type EventService interface {
	List(ctx context.Context, filter dto.EventFilter) (*dto.PaginatedEventResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.EventResponse, error)
	Create(ctx context.Context, creatorID uuid.UUID, req dto.CreateEventRequest, banner *commonDto.UploadFile) (*dto.EventResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateEventRequest, banner *commonDto.UploadFile) (*dto.EventResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// EnsureBookable returns the event when it exists, has not passed and has room.
	EnsureBookable(ctx context.Context, id uuid.UUID) (*entity.RunEvent, error)
}

type eventService struct {
	repo         repository.EventRepository
	bookings     BookingCounter
	imageStorage storage.ImageStorage
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewEventService(repo repository.EventRepository, bookings BookingCounter, imageStorage storage.ImageStorage, log logrus.FieldLogger) EventService {
	return &eventService{
		repo:         repo,
		bookings:     bookings,
		imageStorage: imageStorage,
		log:          log,
		now:          time.Now,
	}
}

func (s *eventService) List(ctx context.Context, filter dto.EventFilter) (*dto.PaginatedEventResponse, error) {
	offset := filter.Normalize()

	var from *time.Time
	if filter.Upcoming {
		now := s.now()
		from = &now
	}

	events, total, err := s.repo.FindAll(ctx, from, offset, filter.Limit)
	if err != nil {
		return nil, err
	}

	data := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp, err := s.toResponse(ctx, &events[i])
		if err != nil {
			return nil, err
		}
		data = append(data, *resp)
	}

	return &dto.PaginatedEventResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(filter.PageQuery, total),
	}, nil
}

func (s *eventService) Get(ctx context.Context, id uuid.UUID) (*dto.EventResponse, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, event)
}

func (s *eventService) Create(ctx context.Context, creatorID uuid.UUID, req dto.CreateEventRequest, banner *commonDto.UploadFile) (*dto.EventResponse, error) {
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "INR"
	}

	event := &entity.RunEvent{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		EventDate:   req.EventDate,
		Price:       req.Price,
		Currency:    currency,
		Capacity:    req.Capacity,
		CreatedBy:   creatorID,
	}

	if banner != nil {
		url, err := s.imageStorage.UploadImage(ctx, banner.Reader, "events", banner.FileName)
		if err != nil {
			return nil, err
		}
		event.ImageURL = &url
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	return s.toResponse(ctx, event)
}

func (s *eventService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateEventRequest, banner *commonDto.UploadFile) (*dto.EventResponse, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		event.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.EventDate != nil {
		event.EventDate = *req.EventDate
	}
	if req.Price != nil {
		event.Price = *req.Price
	}
	if req.Capacity != nil {
		event.Capacity = *req.Capacity
	}

	var oldImage *string
	if banner != nil {
		url, err := s.imageStorage.UploadImage(ctx, banner.Reader, "events", banner.FileName)
		if err != nil {
			return nil, err
		}
		oldImage = event.ImageURL
		event.ImageURL = &url
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, err
	}

	if oldImage != nil {
		if err := s.imageStorage.DeleteImage(ctx, *oldImage); err != nil {
			s.log.WithError(err).WithField("event_id", id).Warn("failed to delete old event banner")
		}
	}

	return s.toResponse(ctx, event)
}

func (s *eventService) Delete(ctx context.Context, id uuid.UUID) error {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	booked, err := s.bookings.CountByEvent(ctx, id)
	if err != nil {
		return err
	}
	if booked > 0 {
		return apperror.New(http.StatusConflict, "event already has bookings", apperror.ErrConflict)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if event.ImageURL != nil {
		if err := s.imageStorage.DeleteImage(ctx, *event.ImageURL); err != nil {
			s.log.WithError(err).WithField("event_id", id).Warn("failed to delete event banner")
		}
	}
	return nil
}

func (s *eventService) EnsureBookable(ctx context.Context, id uuid.UUID) (*entity.RunEvent, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if event.EventDate.Before(s.now()) {
		return nil, apperror.Invalid("event has already started")
	}

	if event.Capacity > 0 {
		booked, err := s.bookings.CountByEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		if booked >= int64(event.Capacity) {
			return nil, apperror.New(http.StatusConflict, "event is full", apperror.ErrConflict)
		}
	}

	return event, nil
}

func (s *eventService) toResponse(ctx context.Context, event *entity.RunEvent) (*dto.EventResponse, error) {
	booked, err := s.bookings.CountByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	resp := &dto.EventResponse{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		EventDate:   event.EventDate,
		Price:       event.Price,
		Currency:    event.Currency,
		Capacity:    event.Capacity,
		Booked:      booked,
		ImageURL:    event.ImageURL,
	}
	if event.Capacity > 0 {
		left := int64(event.Capacity) - booked
		if left < 0 {
			left = 0
		}
		resp.SpotsLeft = &left
	}
	return resp, nil
}
