package dto

import (
	"anoa.com/runclub/internal/entity"
	commonDto "anoa.com/runclub/pkg/dto"
)

type NotificationListQuery struct {
	commonDto.PageQuery
}

type PaginatedNotificationResponse struct {
	Data []entity.Notification    `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}
