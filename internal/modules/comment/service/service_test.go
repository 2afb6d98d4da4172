package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"anoa.com/runclub/internal/entity"
	commentDto "anoa.com/runclub/internal/modules/comment/dto"
	"anoa.com/runclub/internal/modules/mention"
	notifService "anoa.com/runclub/internal/modules/notification/service"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/changefeed"
	"anoa.com/runclub/pkg/ratelimiter"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCommentRepo mirrors the counter bookkeeping of the real repository.
type fakeCommentRepo struct {
	mu       sync.Mutex
	comments map[uuid.UUID]*entity.Comment
	counts   map[uuid.UUID]int
}

func newFakeCommentRepo(posts ...uuid.UUID) *fakeCommentRepo {
	r := &fakeCommentRepo{comments: map[uuid.UUID]*entity.Comment{}, counts: map[uuid.UUID]int{}}
	for _, p := range posts {
		r.counts[p] = 0
	}
	return r
}

func (r *fakeCommentRepo) Create(_ context.Context, c *entity.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.counts[c.PostID]; !ok {
		return apperror.NotFound("post not found")
	}
	r.counts[c.PostID]++
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r *fakeCommentRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment not found")
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCommentRepo) FindByPostID(_ context.Context, postID uuid.UUID, offset, limit int) ([]entity.Comment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Comment
	for _, c := range r.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeCommentRepo) Delete(_ context.Context, c *entity.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[c.ID]; !ok {
		return apperror.NotFound("comment not found")
	}
	delete(r.comments, c.ID)
	if r.counts[c.PostID] > 0 {
		r.counts[c.PostID]--
	}
	return nil
}

type fakeUsers map[uuid.UUID]entity.User

func (f fakeUsers) FindByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := f[uuid.MustParse(id)]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return &u, nil
}

func (f fakeUsers) MentionRoster(context.Context) (mention.Roster, error) {
	members := make([]mention.Member, 0, len(f))
	for _, u := range f {
		members = append(members, mention.Member{UserID: u.ID.String(), DisplayName: u.DisplayName})
	}
	return mention.NewRoster(members), nil
}

type recordingDispatcher struct {
	inputs []notifService.DispatchInput
}

func (d *recordingDispatcher) Dispatch(_ context.Context, in notifService.DispatchInput) error {
	d.inputs = append(d.inputs, in)
	return nil
}

type recordingFeed struct {
	topics []string
}

func (f *recordingFeed) Publish(_ context.Context, topic string, _ changefeed.Event) error {
	f.topics = append(f.topics, topic)
	return nil
}

type commentFixture struct {
	svc        *commentService
	repo       *fakeCommentRepo
	dispatcher *recordingDispatcher
	feed       *recordingFeed
	postID     uuid.UUID
	ana, budi  entity.User
}

func newCommentFixture(t *testing.T) *commentFixture {
	t.Helper()
	f := &commentFixture{
		postID:     uuid.New(),
		dispatcher: &recordingDispatcher{},
		feed:       &recordingFeed{},
		ana:        entity.User{ID: uuid.New(), DisplayName: "ana"},
		budi:       entity.User{ID: uuid.New(), DisplayName: "budi"},
	}
	f.repo = newFakeCommentRepo(f.postID)
	users := fakeUsers{f.ana.ID: f.ana, f.budi.ID: f.budi}

	log, _ := test.NewNullLogger()
	svc := NewCommentService(Deps{
		Repo:       f.repo,
		Users:      users,
		Roster:     users,
		Dispatcher: f.dispatcher,
		Feed:       f.feed,
		Log:        log,
	}).(*commentService)
	svc.async = func(fn func()) { fn() }
	f.svc = svc
	return f
}

func TestAddCommentIncrementsCountAndDispatches(t *testing.T) {
	f := newCommentFixture(t)

	res, err := f.svc.AddComment(context.Background(), f.postID, f.ana.ID, commentDto.CreateCommentRequest{Text: "see you there @budi"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.counts[f.postID])
	assert.Equal(t, "ana", res.Author.DisplayName)
	require.Len(t, res.Mentions, 1)

	require.Len(t, f.dispatcher.inputs, 1)
	in := f.dispatcher.inputs[0]
	assert.Equal(t, notifService.SourceComment, in.Kind)
	require.NotNil(t, in.CommentID)
	assert.Equal(t, res.ID, *in.CommentID)
	assert.Equal(t, f.postID, in.PostID)

	assert.Equal(t, []string{changefeed.CommentsTopic(f.postID.String()), changefeed.TopicPosts}, f.feed.topics)
}

func TestAddCommentValidation(t *testing.T) {
	f := newCommentFixture(t)

	_, err := f.svc.AddComment(context.Background(), f.postID, f.ana.ID, commentDto.CreateCommentRequest{Text: "  "})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	assert.Equal(t, 0, f.repo.counts[f.postID])
}

func TestAddCommentUnknownPost(t *testing.T) {
	f := newCommentFixture(t)

	_, err := f.svc.AddComment(context.Background(), uuid.New(), f.ana.ID, commentDto.CreateCommentRequest{Text: "hi"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Empty(t, f.dispatcher.inputs)
}

func TestAddCommentCooldown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newCommentFixture(t)
	f.svc.Cooldown = ratelimiter.NewCooldown(rdb)
	f.svc.Window = 5 * time.Second

	_, err := f.svc.AddComment(context.Background(), f.postID, f.ana.ID, commentDto.CreateCommentRequest{Text: "one"})
	require.NoError(t, err)
	_, err = f.svc.AddComment(context.Background(), f.postID, f.ana.ID, commentDto.CreateCommentRequest{Text: "two"})
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)

	mr.FastForward(6 * time.Second)
	_, err = f.svc.AddComment(context.Background(), f.postID, f.ana.ID, commentDto.CreateCommentRequest{Text: "three"})
	assert.NoError(t, err)
	assert.Equal(t, 2, f.repo.counts[f.postID])
}

func TestDeleteCommentAuthorizationAndCount(t *testing.T) {
	f := newCommentFixture(t)
	res, err := f.svc.AddComment(context.Background(), f.postID, f.ana.ID, commentDto.CreateCommentRequest{Text: "mine"})
	require.NoError(t, err)

	err = f.svc.DeleteComment(context.Background(), f.postID, res.ID, f.budi.ID, false)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, 1, f.repo.counts[f.postID])

	err = f.svc.DeleteComment(context.Background(), uuid.New(), res.ID, f.ana.ID, false)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, f.svc.DeleteComment(context.Background(), f.postID, res.ID, f.budi.ID, true))
	assert.Equal(t, 0, f.repo.counts[f.postID])

	err = f.svc.DeleteComment(context.Background(), f.postID, res.ID, f.ana.ID, false)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, 0, f.repo.counts[f.postID])
}

func TestListCommentsResolvesMentions(t *testing.T) {
	f := newCommentFixture(t)
	_, err := f.svc.AddComment(context.Background(), f.postID, f.budi.ID, commentDto.CreateCommentRequest{Text: "@ana nice"})
	require.NoError(t, err)

	res, err := f.svc.ListComments(context.Background(), f.postID, commentDto.CommentFilter{})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, f.ana.ID.String(), res.Data[0].Segments[0].UserID)
	assert.Equal(t, int64(1), res.Meta.TotalItems)
}
