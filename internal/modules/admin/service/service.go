package service

import (
	"context"
	"fmt"
	"time"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/admin/dto"
	userDto "anoa.com/runclub/internal/modules/user/dto"
	userRepo "anoa.com/runclub/internal/modules/user/repository"
	userService "anoa.com/runclub/internal/modules/user/service"
	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Counter interface {
	Count(ctx context.Context) (int64, error)
}

type BookingTotals interface {
	Totals(ctx context.Context) (count int64, revenue int64, err error)
}

type AdminService interface {
	Stats(ctx context.Context) (*dto.StatsResponse, error)
	UpdateUserRole(ctx context.Context, actorID, userID uuid.UUID, input dto.UpdateRoleInput) (*userDto.UserResponse, error)
}

type Deps struct {
	Users    userRepo.UserRepository
	Bookings BookingTotals
	Posts    Counter
	Log      logrus.FieldLogger
}

type adminService struct {
	Deps
	now func() time.Time
}

func NewAdminService(deps Deps) AdminService {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &adminService{Deps: deps, now: time.Now}
}

// Stats reads every counter concurrently; one failing source fails the
// whole report rather than showing partial numbers.
func (s *adminService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	res := &dto.StatsResponse{GeneratedAt: s.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.Users.Count(gctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		res.Users = n
		return nil
	})
	g.Go(func() error {
		n, revenue, err := s.Bookings.Totals(gctx)
		if err != nil {
			return fmt.Errorf("booking totals: %w", err)
		}
		res.Bookings, res.Revenue = n, revenue
		return nil
	})
	g.Go(func() error {
		n, err := s.Posts.Count(gctx)
		if err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		res.Posts = n
		return nil
	})

	if err := g.Wait(); err != nil {
		s.Log.WithError(err).Error("failed to build admin stats")
		return nil, err
	}
	return res, nil
}

func (s *adminService) UpdateUserRole(ctx context.Context, actorID, userID uuid.UUID, input dto.UpdateRoleInput) (*userDto.UserResponse, error) {
	if actorID == userID && input.Role != entity.RoleAdmin {
		return nil, apperror.Invalid("admins cannot demote themselves")
	}

	user, err := s.Users.FindByID(ctx, userID.String())
	if err != nil {
		return nil, err
	}
	if user.Role.Name == input.Role {
		return userService.ToUserResponse(user), nil
	}

	role, err := s.Users.FindRoleByName(ctx, input.Role)
	if err != nil {
		return nil, fmt.Errorf("find role %q: %w", input.Role, err)
	}

	user.RoleID = &role.ID
	user.Role = *role
	if err := s.Users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"actor_id": actorID,
		"user_id":  userID,
		"role":     role.Name,
	}).Info("user role changed")
	return userService.ToUserResponse(user), nil
}
