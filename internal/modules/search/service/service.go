package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/search/dto"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
)

const (
	postsIndex    = "posts"
	signerKeyName = "PostSearchSigner"
)

type SearchService interface {
	IndexPost(ctx context.Context, post *entity.Post) error
	DeletePost(ctx context.Context, id string) error
	SearchPosts(ctx context.Context, query dto.SearchQuery) (*dto.SearchResult, error)
	// GenerateSearchToken issues a tenant token that can only search posts.
	GenerateSearchToken() (string, error)
}

type meiliSearchService struct {
	client        meilisearch.ServiceManager
	sanitizer     *bluemonday.Policy
	signingKeyUID string
	signingKey    string
	log           logrus.FieldLogger
}

func NewMeiliSearchService(client meilisearch.ServiceManager, log logrus.FieldLogger) SearchService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
	}
	s.initIndex()
	s.initSigningKey()
	return s
}

func (s *meiliSearchService) initIndex() {
	sortable := []string{"created_at"}
	if _, err := s.client.Index(postsIndex).UpdateSortableAttributes(&sortable); err != nil {
		s.log.WithError(err).Warn("failed to update posts sortable attributes")
	}

	filterable := []interface{}{"author_id", "has_image"}
	if _, err := s.client.Index(postsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		s.log.WithError(err).Warn("failed to update posts filterable attributes")
	}
}

func (s *meiliSearchService) initSigningKey() {
	resp, err := s.client.GetKeys(&meilisearch.KeysQuery{Limit: 20})
	if err != nil {
		s.log.WithError(err).Warn("failed to list meilisearch keys")
		return
	}

	for _, key := range resp.Results {
		if key.Name == signerKeyName {
			s.signingKeyUID = key.UID
			s.signingKey = key.Key
			return
		}
	}

	key, err := s.client.CreateKey(&meilisearch.Key{
		Description: "Signs tenant tokens for post search",
		Name:        signerKeyName,
		Actions:     []string{"search"},
		Indexes:     []string{postsIndex},
		ExpiresAt:   time.Now().AddDate(100, 0, 0),
	})
	if err != nil {
		s.log.WithError(err).Warn("failed to create meilisearch signing key")
		return
	}

	s.signingKeyUID = key.UID
	s.signingKey = key.Key
}

func (s *meiliSearchService) IndexPost(ctx context.Context, post *entity.Post) error {
	doc := NewPostDocument(s.sanitizer, post)

	task, err := s.client.Index(postsIndex).AddDocuments([]dto.PostDocument{doc}, strPtr("id"))
	if err != nil {
		return fmt.Errorf("index post %s: %w", post.ID, err)
	}
	s.log.WithFields(logrus.Fields{"post_id": post.ID, "task_uid": task.TaskUID}).Debug("post indexed")
	return nil
}

func (s *meiliSearchService) DeletePost(ctx context.Context, id string) error {
	_, err := s.client.Index(postsIndex).DeleteDocument(id)
	return err
}

func (s *meiliSearchService) SearchPosts(ctx context.Context, query dto.SearchQuery) (*dto.SearchResult, error) {
	limit := int64(query.Limit)
	if limit <= 0 {
		limit = 20
	}

	raw, err := s.client.Index(postsIndex).SearchRaw(query.Q, &meilisearch.SearchRequest{
		Limit:  limit,
		Offset: int64(query.Offset),
		Sort:   []string{"created_at:desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}

	var body struct {
		Hits               []dto.PostDocument `json:"hits"`
		EstimatedTotalHits int64              `json:"estimatedTotalHits"`
		ProcessingTimeMs   int64              `json:"processingTimeMs"`
	}
	if err := json.Unmarshal(*raw, &body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if body.Hits == nil {
		body.Hits = []dto.PostDocument{}
	}

	return &dto.SearchResult{
		Hits:             body.Hits,
		Query:            query.Q,
		EstimatedTotal:   body.EstimatedTotalHits,
		ProcessingTimeMs: body.ProcessingTimeMs,
	}, nil
}

func (s *meiliSearchService) GenerateSearchToken() (string, error) {
	if s.signingKeyUID == "" || s.signingKey == "" {
		return "", fmt.Errorf("signing key not initialized")
	}

	rules := map[string]interface{}{postsIndex: map[string]interface{}{}}
	return s.client.GenerateTenantToken(s.signingKeyUID, rules, &meilisearch.TenantTokenOptions{
		APIKey:    s.signingKey,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

// NewPostDocument flattens a post into its index document with markup
// stripped from the content.
func NewPostDocument(sanitizer *bluemonday.Policy, post *entity.Post) dto.PostDocument {
	doc := dto.PostDocument{
		ID:         post.ID.String(),
		Content:    CleanContent(sanitizer, post.Content),
		AuthorID:   post.UserID.String(),
		AuthorName: post.User.DisplayName,
		HasImage:   post.ImageURL != nil && *post.ImageURL != "",
		CreatedAt:  post.CreatedAt.Unix(),
	}
	if post.User.PhotoURL != nil {
		doc.AuthorPhoto = *post.User.PhotoURL
	}
	return doc
}

func CleanContent(sanitizer *bluemonday.Policy, content string) string {
	for _, tag := range []string{"</p>", "<br>", "<br/>", "</div>"} {
		content = strings.ReplaceAll(content, tag, " ")
	}
	clean := html.UnescapeString(sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(clean), " ")
}

func strPtr(s string) *string {
	return &s
}

// NoopSearchService is used when no search backend is configured.
type NoopSearchService struct{}

func (NoopSearchService) IndexPost(context.Context, *entity.Post) error { return nil }

func (NoopSearchService) DeletePost(context.Context, string) error { return nil }

func (NoopSearchService) SearchPosts(_ context.Context, q dto.SearchQuery) (*dto.SearchResult, error) {
	return &dto.SearchResult{Hits: []dto.PostDocument{}, Query: q.Q}, nil
}

func (NoopSearchService) GenerateSearchToken() (string, error) {
	return "", fmt.Errorf("search is not configured")
}
