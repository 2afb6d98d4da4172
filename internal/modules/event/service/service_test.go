package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/event/dto"
	"anoa.com/runclub/pkg/apperror"
	commonDto "anoa.com/runclub/pkg/dto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventRepo struct {
	events map[uuid.UUID]*entity.RunEvent
}

func (r *fakeEventRepo) Create(_ context.Context, e *entity.RunEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	r.events[e.ID] = &cp
	return nil
}

func (r *fakeEventRepo) Update(_ context.Context, e *entity.RunEvent) error {
	cp := *e
	r.events[e.ID] = &cp
	return nil
}

func (r *fakeEventRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.events[id]; !ok {
		return apperror.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *fakeEventRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.RunEvent, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEventRepo) FindAll(_ context.Context, from *time.Time, offset, limit int) ([]entity.RunEvent, int64, error) {
	var out []entity.RunEvent
	for _, e := range r.events {
		if from != nil && e.EventDate.Before(*from) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

type fakeCounter map[uuid.UUID]int64

func (f fakeCounter) CountByEvent(_ context.Context, id uuid.UUID) (int64, error) {
	return f[id], nil
}

type fakeStorage struct{ deleted []string }

func (s *fakeStorage) UploadImage(_ context.Context, r io.Reader, folder, name string) (string, error) {
	_, _ = io.ReadAll(r)
	return "https://cdn.test/" + folder + "/" + name, nil
}

func (s *fakeStorage) DeleteImage(_ context.Context, url string) error {
	s.deleted = append(s.deleted, url)
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func newService() (*eventService, *fakeEventRepo, fakeCounter, *fakeStorage) {
	repo := &fakeEventRepo{events: map[uuid.UUID]*entity.RunEvent{}}
	counter := fakeCounter{}
	store := &fakeStorage{}
	log, _ := test.NewNullLogger()
	svc := NewEventService(repo, counter, store, log).(*eventService)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, counter, store
}

func TestCreateAndGet(t *testing.T) {
	svc, _, counter, _ := newService()
	ctx := context.Background()

	res, err := svc.Create(ctx, uuid.New(), dto.CreateEventRequest{
		Title: " Sunday Long Run ", EventDate: fixedNow.Add(48 * time.Hour), Price: 29900, Capacity: 10,
	}, &commonDto.UploadFile{Reader: strings.NewReader("x"), FileName: "banner.png"})
	require.NoError(t, err)
	assert.Equal(t, "Sunday Long Run", res.Title)
	assert.Equal(t, "INR", res.Currency)
	require.NotNil(t, res.ImageURL)

	counter[res.ID] = 4
	got, err := svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Booked)
	require.NotNil(t, got.SpotsLeft)
	assert.Equal(t, int64(6), *got.SpotsLeft)
}

func TestEnsureBookable(t *testing.T) {
	svc, repo, counter, _ := newService()
	ctx := context.Background()

	past := &entity.RunEvent{ID: uuid.New(), EventDate: fixedNow.Add(-time.Hour)}
	full := &entity.RunEvent{ID: uuid.New(), EventDate: fixedNow.Add(time.Hour), Capacity: 2}
	open := &entity.RunEvent{ID: uuid.New(), EventDate: fixedNow.Add(time.Hour)}
	for _, e := range []*entity.RunEvent{past, full, open} {
		require.NoError(t, repo.Create(ctx, e))
	}
	counter[full.ID] = 2

	_, err := svc.EnsureBookable(ctx, past.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.EnsureBookable(ctx, full.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = svc.EnsureBookable(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	got, err := svc.EnsureBookable(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)
}

func TestDeleteRefusesBookedEvent(t *testing.T) {
	svc, repo, counter, store := newService()
	ctx := context.Background()

	img := "https://cdn.test/events/a.png"
	e := &entity.RunEvent{ID: uuid.New(), EventDate: fixedNow, ImageURL: &img}
	require.NoError(t, repo.Create(ctx, e))

	counter[e.ID] = 1
	assert.ErrorIs(t, svc.Delete(ctx, e.ID), apperror.ErrConflict)

	counter[e.ID] = 0
	require.NoError(t, svc.Delete(ctx, e.ID))
	assert.Equal(t, []string{img}, store.deleted)
}

func TestListUpcoming(t *testing.T) {
	svc, repo, _, _ := newService()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.RunEvent{Title: "old", EventDate: fixedNow.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, &entity.RunEvent{Title: "next", EventDate: fixedNow.Add(time.Hour)}))

	res, err := svc.List(ctx, dto.EventFilter{Upcoming: true})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "next", res.Data[0].Title)
	assert.Equal(t, int64(1), res.Meta.TotalItems)

	all, err := svc.List(ctx, dto.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all.Data, 2)
	assert.Nil(t, all.Data[0].SpotsLeft)
}
