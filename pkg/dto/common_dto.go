package dto

import "io"

type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

// Normalize fills defaults and returns the row offset for the page.
func (q *PageQuery) Normalize() int {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	return (q.Page - 1) * q.Limit
}

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
}

func NewPaginationMeta(q PageQuery, total int64) PaginationMeta {
	pages := 0
	if q.Limit > 0 {
		pages = int((total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	return PaginationMeta{
		CurrentPage: q.Page,
		TotalPages:  pages,
		TotalItems:  total,
		Limit:       q.Limit,
	}
}

type AuthorResponse struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

// UploadFile is an uploaded file handed from a handler to a service.
type UploadFile struct {
	Reader   io.Reader
	FileName string
}
