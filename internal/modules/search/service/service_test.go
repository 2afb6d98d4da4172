package service

import (
	"context"
	"testing"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/search/dto"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanContent(t *testing.T) {
	p := bluemonday.StrictPolicy()

	assert.Equal(t, "Morning run done", CleanContent(p, "<p>Morning</p><p>run <b>done</b></p>"))
	assert.Equal(t, "5K & coffee", CleanContent(p, "5K &amp; coffee"))
	assert.Equal(t, "", CleanContent(p, "<script>alert(1)</script>"))
	assert.Equal(t, "a b", CleanContent(p, "  a \n\t b  "))
}

func TestNewPostDocument(t *testing.T) {
	photo := "https://img/ana.png"
	image := "https://img/post.png"
	created := time.Date(2026, 10, 1, 6, 0, 0, 0, time.UTC)
	post := &entity.Post{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		User:      entity.User{DisplayName: "ana", PhotoURL: &photo},
		Content:   "<i>@budi</i> tempo run",
		ImageURL:  &image,
		CreatedAt: created,
	}

	doc := NewPostDocument(bluemonday.StrictPolicy(), post)
	assert.Equal(t, post.ID.String(), doc.ID)
	assert.Equal(t, "@budi tempo run", doc.Content)
	assert.Equal(t, "ana", doc.AuthorName)
	assert.Equal(t, photo, doc.AuthorPhoto)
	assert.True(t, doc.HasImage)
	assert.Equal(t, created.Unix(), doc.CreatedAt)
}

func TestNoopSearchService(t *testing.T) {
	var s SearchService = NoopSearchService{}

	require.NoError(t, s.IndexPost(context.Background(), &entity.Post{}))
	res, err := s.SearchPosts(context.Background(), dto.SearchQuery{Q: "run"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, "run", res.Query)

	_, err = s.GenerateSearchToken()
	assert.Error(t, err)
}
