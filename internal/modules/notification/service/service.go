package service

import (
	"context"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/notification/dto"
	notifRepo "anoa.com/runclub/internal/modules/notification/repository"
	"anoa.com/runclub/pkg/changefeed"
	commonDto "anoa.com/runclub/pkg/dto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type NotificationService interface {
	CreateNotification(ctx context.Context, notification *entity.Notification) error
	GetNotifications(ctx context.Context, userID uuid.UUID, query dto.NotificationListQuery) (*dto.PaginatedNotificationResponse, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	// PruneRead deletes read notifications older than the retention window.
	PruneRead(ctx context.Context, retention time.Duration) (int64, error)
}

type notificationService struct {
	repo notifRepo.NotificationRepository
	feed changefeed.Publisher
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewNotificationService(repo notifRepo.NotificationRepository, feed changefeed.Publisher, log logrus.FieldLogger) NotificationService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &notificationService{
		repo: repo,
		feed: feed,
		log:  log,
		now:  time.Now,
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	if s.feed != nil {
		ev, err := changefeed.NewEvent("notifications", changefeed.Created, notification.ID.String(), notification)
		if err == nil {
			err = s.feed.Publish(ctx, changefeed.NotificationsTopic(notification.UserID.String()), ev)
		}
		if err != nil {
			s.log.WithError(err).WithField("notification_id", notification.ID).Warn("failed to publish notification")
		}
	}

	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, query dto.NotificationListQuery) (*dto.PaginatedNotificationResponse, error) {
	offset := query.Normalize()

	notifications, total, err := s.repo.GetByUserID(ctx, userID, query.Limit, offset)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []entity.Notification{}
	}

	return &dto.PaginatedNotificationResponse{
		Data: notifications,
		Meta: commonDto.NewPaginationMeta(query.PageQuery, total),
	}, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) PruneRead(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteReadBefore(ctx, s.now().Add(-retention))
}
