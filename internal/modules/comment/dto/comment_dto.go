package dto

import (
	"time"

	"anoa.com/runclub/internal/modules/mention"
	commonDto "anoa.com/runclub/pkg/dto"
	"github.com/google/uuid"
)

const MaxTextLength = 1000

type CreateCommentRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}

type CommentFilter struct {
	commonDto.PageQuery
}

type CommentResponse struct {
	ID        uuid.UUID                `json:"id"`
	PostID    uuid.UUID                `json:"post_id"`
	Author    commonDto.AuthorResponse `json:"author"`
	Text      string                   `json:"text"`
	Segments  []mention.Segment        `json:"segments"`
	Mentions  []mention.Mention        `json:"mentions"`
	CreatedAt time.Time                `json:"created_at"`
}

type PaginatedCommentResponse struct {
	Data []CommentResponse        `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}
