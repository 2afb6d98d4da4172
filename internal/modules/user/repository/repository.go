package repository

import (
	"context"
	"errors"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/pkg/apperror"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByPhone(ctx context.Context, phone string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByDisplayName(ctx context.Context, name string) (*entity.User, error)
	FindAll(ctx context.Context) ([]entity.User, error)
	Count(ctx context.Context) (int64, error)
	FindRoleByName(ctx context.Context, name string) (*entity.Role, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Omit("Role").Save(user).Error
}

func (r *userRepository) findOne(ctx context.Context, query string, arg any) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Preload("Role").Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*entity.User, error) {
	return r.findOne(ctx, "phone = ?", phone)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepository) FindByDisplayName(ctx context.Context, name string) (*entity.User, error) {
	return r.findOne(ctx, "display_name = ?", name)
}

func (r *userRepository) FindAll(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Preload("Role").
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Count(&count).Error
	return count, err
}

func (r *userRepository) FindRoleByName(ctx context.Context, name string) (*entity.Role, error) {
	var role entity.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}
