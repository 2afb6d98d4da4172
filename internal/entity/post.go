package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Post struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User           User           `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	Content        string         `gorm:"type:text" json:"content"`
	ImageURL       *string        `gorm:"type:text" json:"image_url,omitempty"`
	Likes          int            `gorm:"not null;default:0" json:"likes"`
	LikedBy        pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"liked_by"`
	Comments       int            `gorm:"not null;default:0" json:"comments"`
	MentionUserIDs pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"mention_user_ids"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.LikedBy == nil {
		p.LikedBy = pq.StringArray{}
	}
	if p.MentionUserIDs == nil {
		p.MentionUserIDs = pq.StringArray{}
	}
	return nil
}

func (p *Post) LikedByUser(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

type Comment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PostID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"post_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null" json:"user_id"`
	User           User           `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	Text           string         `gorm:"type:text;not null" json:"text"`
	MentionUserIDs pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"mention_user_ids"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.MentionUserIDs == nil {
		c.MentionUserIDs = pq.StringArray{}
	}
	return nil
}
