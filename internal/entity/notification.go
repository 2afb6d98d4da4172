package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notifications are only ever raised for mentions.
const NotificationTypeMention = "mention"

type Notification struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"` // recipient
	ActorID   *uuid.UUID `gorm:"type:uuid" json:"actor_id,omitempty"`
	Type      string     `gorm:"size:30;not null" json:"type"`
	Title     string     `gorm:"size:150;not null" json:"title"`
	Message   string     `gorm:"type:text" json:"message"`
	PostID    *uuid.UUID `gorm:"type:uuid" json:"post_id,omitempty"`
	CommentID *uuid.UUID `gorm:"type:uuid" json:"comment_id,omitempty"`
	IsRead    bool       `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`

	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
