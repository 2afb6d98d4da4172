package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/user/dto"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/changefeed"
	commonDto "anoa.com/runclub/pkg/dto"
	"anoa.com/runclub/pkg/jwtauth"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*entity.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) find(match func(*entity.User) bool) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.ID.String() == id })
}

func (r *fakeUserRepo) FindByPhone(_ context.Context, phone string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Phone != nil && *u.Phone == phone })
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Email != nil && *u.Email == email })
}

func (r *fakeUserRepo) FindByDisplayName(_ context.Context, name string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.DisplayName == name })
}

func (r *fakeUserRepo) FindAll(_ context.Context) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) FindRoleByName(_ context.Context, name string) (*entity.Role, error) {
	return &entity.Role{ID: 2, Name: name}, nil
}

type recordingFeed struct {
	mu     sync.Mutex
	events []changefeed.Event
}

func (f *recordingFeed) Publish(_ context.Context, topic string, ev changefeed.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.Topic = topic
	f.events = append(f.events, ev)
	return nil
}

type fakeStorage struct {
	uploaded []string
	deleted  []string
	failDel  bool
}

func (s *fakeStorage) UploadImage(_ context.Context, r io.Reader, folder, fileName string) (string, error) {
	_, _ = io.ReadAll(r)
	url := "https://cdn.test/" + folder + "/" + fileName
	s.uploaded = append(s.uploaded, url)
	return url, nil
}

func (s *fakeStorage) DeleteImage(_ context.Context, url string) error {
	if s.failDel {
		return errors.New("cdn down")
	}
	s.deleted = append(s.deleted, url)
	return nil
}

func newService(t *testing.T) (*Service, *fakeUserRepo, *recordingFeed, *fakeStorage) {
	t.Helper()
	repo := newFakeUserRepo()
	feed := &recordingFeed{}
	store := &fakeStorage{}
	log, _ := test.NewNullLogger()
	svc := New(Deps{
		Repo:         repo,
		ImageStorage: store,
		Issuer:       jwtauth.NewIssuer("secret", time.Hour),
		Feed:         feed,
		Log:          log,
	})
	return svc, repo, feed, store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, feed, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, dto.RegisterInput{DisplayName: "runner_1", Phone: "+911234567890", Password: "hunter22", Email: "Runner@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, "runner_1", res.User.DisplayName)
	assert.Equal(t, entity.RoleMember, res.User.Role)
	require.NotNil(t, res.User.Email)
	assert.Equal(t, "runner@example.com", *res.User.Email)

	require.Len(t, feed.events, 1)
	assert.Equal(t, changefeed.TopicUsers, feed.events[0].Topic)
	assert.Equal(t, changefeed.Created, feed.events[0].Type)

	login, err := svc.Login(ctx, dto.LoginInput{Phone: "+911234567890", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)

	_, err = svc.Login(ctx, dto.LoginInput{Phone: "+911234567890", Password: "wrong"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(ctx, dto.LoginInput{Phone: "+000", Password: "hunter22"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestRegisterRejectsDuplicatesAndBadHandles(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, dto.RegisterInput{DisplayName: "Mary Jane", Phone: "111111111", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.Register(ctx, dto.RegisterInput{DisplayName: "mary", Phone: "111111111", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, dto.RegisterInput{DisplayName: "mary", Phone: "222222222", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = svc.Register(ctx, dto.RegisterInput{DisplayName: "jane", Phone: "111111111", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestUpdateProfileReplacesPhotoAndPublishes(t *testing.T) {
	svc, repo, feed, store := newService(t)
	ctx := context.Background()

	old := "https://cdn.test/avatars/old.png"
	user := &entity.User{DisplayName: "sam", Role: entity.Role{Name: entity.RoleMember}, PhotoURL: &old}
	require.NoError(t, repo.Create(ctx, user))

	name := "sammy"
	res, err := svc.UpdateProfile(ctx, user.ID, dto.UpdateProfileInput{DisplayName: &name},
		&commonDto.UploadFile{Reader: strings.NewReader("img"), FileName: "new.png"})
	require.NoError(t, err)

	assert.Equal(t, "sammy", res.DisplayName)
	require.NotNil(t, res.PhotoURL)
	assert.Equal(t, "https://cdn.test/avatars/new.png", *res.PhotoURL)
	assert.Equal(t, []string{old}, store.deleted)
	require.Len(t, feed.events, 1)
	assert.Equal(t, changefeed.Updated, feed.events[0].Type)
}

func TestUpdateProfileRejectsTakenName(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.User{DisplayName: "taken"}))
	me := &entity.User{DisplayName: "me"}
	require.NoError(t, repo.Create(ctx, me))

	name := "taken"
	_, err := svc.UpdateProfile(ctx, me.ID, dto.UpdateProfileInput{DisplayName: &name}, nil)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestMentionRoster(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()

	u := &entity.User{DisplayName: "alice"}
	require.NoError(t, repo.Create(ctx, u))

	roster, err := svc.MentionRoster(ctx)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), roster["alice"].UserID)
}

func TestHandleFromEmail(t *testing.T) {
	assert.Equal(t, "jane_doe", handleFromEmail("jane.doe@example.com"))
	assert.Equal(t, "a_bc", handleFromEmail("a-b+c@x.io"))
	assert.True(t, strings.HasPrefix(handleFromEmail("x@y.z"), "runner_"))
}
