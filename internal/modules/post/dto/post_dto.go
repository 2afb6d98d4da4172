package dto

import (
	"time"

	"anoa.com/runclub/internal/modules/mention"
	commonDto "anoa.com/runclub/pkg/dto"
	"github.com/google/uuid"
)

const MaxContentLength = 2000

type CreatePostRequest struct {
	Content string `form:"content" json:"content" binding:"max=2000"`
}

type PostFilter struct {
	commonDto.PageQuery
}

type PostResponse struct {
	ID        uuid.UUID                `json:"id"`
	Author    commonDto.AuthorResponse `json:"author"`
	Content   string                   `json:"content"`
	Segments  []mention.Segment        `json:"segments"`
	Mentions  []mention.Mention        `json:"mentions"`
	ImageURL  *string                  `json:"image_url,omitempty"`
	Likes     int                      `json:"likes"`
	Liked     bool                     `json:"liked"`
	Comments  int                      `json:"comments"`
	CreatedAt time.Time                `json:"created_at"`
}

type PaginatedPostResponse struct {
	Data []PostResponse           `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}

type LikeResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// ImportPost is one legacy post document. LikedBy arrives in whatever
// shape the old store held.
type ImportPost struct {
	ID        string      `json:"id" binding:"omitempty,uuid"`
	UserID    string      `json:"user_id" binding:"required,uuid"`
	Content   string      `json:"content" binding:"max=2000"`
	ImageURL  *string     `json:"image_url"`
	LikedBy   interface{} `json:"liked_by"`
	CreatedAt *time.Time  `json:"created_at"`
}

type ImportPostsRequest struct {
	Posts []ImportPost `json:"posts" binding:"required,min=1,max=500,dive"`
}

type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors,omitempty"`
}

type ImportError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}
