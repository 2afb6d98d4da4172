package dto

import "time"

type RegisterInput struct {
	DisplayName string `json:"display_name" binding:"required,min=2,max=30"`
	Phone       string `json:"phone" binding:"required,min=8,max=20"`
	Email       string `json:"email" binding:"omitempty,email"`
	Password    string `json:"password" binding:"required,min=6"`
}

type LoginInput struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileInput struct {
	DisplayName *string `form:"display_name" json:"display_name" binding:"omitempty,min=2,max=30"`
	Email       *string `form:"email" json:"email" binding:"omitempty,email"`
}

type UserResponse struct {
	ID          string    `json:"id" copier:"-"`
	DisplayName string    `json:"display_name"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
	PhotoURL    *string   `json:"photo_url"`
	Role        string    `json:"role" copier:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	User        *UserResponse `json:"user"`
}

// RosterEntry is the public view of a member used for mention lookup.
type RosterEntry struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}
