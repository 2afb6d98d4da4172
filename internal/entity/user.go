package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is a club member. DisplayName doubles as the @mention handle.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName  string    `gorm:"size:50;uniqueIndex;not null" json:"display_name"`
	Phone        *string   `gorm:"size:20;uniqueIndex" json:"phone,omitempty"`
	Email        *string   `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	RoleID       *uint     `json:"role_id"`
	Role         Role      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"role"`
	PhotoURL     *string   `gorm:"type:text" json:"photo_url,omitempty"`
	GoogleID     *string   `gorm:"size:100;uniqueIndex" json:"google_id,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role.Name == RoleAdmin
}
