package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/admin/dto"
	userRepo "anoa.com/runclub/internal/modules/user/repository"
	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	userRepo.UserRepository
	users    map[string]*entity.User
	roles    map[string]*entity.Role
	count    int64
	countErr error
	updated  []*entity.User
}

func (f *fakeUsers) Count(context.Context) (int64, error) { return f.count, f.countErr }

func (f *fakeUsers) FindByID(_ context.Context, id string) (*entity.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperror.ErrNotFound
}

func (f *fakeUsers) FindRoleByName(_ context.Context, name string) (*entity.Role, error) {
	if r, ok := f.roles[name]; ok {
		return r, nil
	}
	return nil, apperror.ErrNotFound
}

func (f *fakeUsers) Update(_ context.Context, u *entity.User) error {
	f.updated = append(f.updated, u)
	return nil
}

type fakeTotals struct {
	count, revenue int64
}

func (f fakeTotals) Totals(context.Context) (int64, int64, error) { return f.count, f.revenue, nil }

type fakeCounter int64

func (f fakeCounter) Count(context.Context) (int64, error) { return int64(f), nil }

func newService(users *fakeUsers) *adminService {
	log, _ := test.NewNullLogger()
	svc := NewAdminService(Deps{
		Users:    users,
		Bookings: fakeTotals{count: 4, revenue: 200000},
		Posts:    fakeCounter(9),
		Log:      log,
	}).(*adminService)
	svc.now = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestStats(t *testing.T) {
	svc := newService(&fakeUsers{count: 12})

	res, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &dto.StatsResponse{
		Users:       12,
		Bookings:    4,
		Revenue:     200000,
		Posts:       9,
		GeneratedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}, res)
}

func TestStatsFailsOnAnySource(t *testing.T) {
	svc := newService(&fakeUsers{countErr: errors.New("db down")})

	_, err := svc.Stats(context.Background())
	assert.ErrorContains(t, err, "count users")
}

func TestUpdateUserRole(t *testing.T) {
	admin := &entity.User{ID: uuid.New(), Role: entity.Role{ID: 1, Name: entity.RoleAdmin}}
	member := &entity.User{ID: uuid.New(), DisplayName: "ana", Role: entity.Role{ID: 2, Name: entity.RoleMember}}
	users := &fakeUsers{
		users: map[string]*entity.User{admin.ID.String(): admin, member.ID.String(): member},
		roles: map[string]*entity.Role{
			entity.RoleAdmin:  {ID: 1, Name: entity.RoleAdmin},
			entity.RoleMember: {ID: 2, Name: entity.RoleMember},
		},
	}
	svc := newService(users)
	ctx := context.Background()

	_, err := svc.UpdateUserRole(ctx, admin.ID, admin.ID, dto.UpdateRoleInput{Role: entity.RoleMember})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	res, err := svc.UpdateUserRole(ctx, admin.ID, member.ID, dto.UpdateRoleInput{Role: entity.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, res.Role)
	require.Len(t, users.updated, 1)
	assert.Equal(t, uint(1), *users.updated[0].RoleID)

	// Same role again is a no-op.
	_, err = svc.UpdateUserRole(ctx, admin.ID, member.ID, dto.UpdateRoleInput{Role: entity.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, users.updated, 1)

	_, err = svc.UpdateUserRole(ctx, admin.ID, uuid.New(), dto.UpdateRoleInput{Role: entity.RoleAdmin})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
