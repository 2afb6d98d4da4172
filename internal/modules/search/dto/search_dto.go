package dto

type SearchQuery struct {
	Q      string `form:"q" binding:"required,min=1,max=200"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=50"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// PostDocument is the shape stored in the posts index.
type PostDocument struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	AuthorID    string `json:"author_id"`
	AuthorName  string `json:"author_name"`
	AuthorPhoto string `json:"author_photo"`
	HasImage    bool   `json:"has_image"`
	CreatedAt   int64  `json:"created_at"`
}

type SearchResult struct {
	Hits             []PostDocument `json:"hits"`
	Query            string         `json:"query"`
	EstimatedTotal   int64          `json:"estimated_total"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}
