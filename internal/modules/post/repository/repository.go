package repository

import (
	"context"
	"errors"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository interface {
	Create(ctx context.Context, post *entity.Post) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error)
	FindAll(ctx context.Context, offset, limit int) ([]entity.Post, int64, error)
	// Delete removes the post together with its comments.
	Delete(ctx context.Context, id uuid.UUID) error
	// AddLike and RemoveLike change liked_by and likes in one statement.
	// They report false when the user was already in (or absent from) the set.
	AddLike(ctx context.Context, postID uuid.UUID, userID string) (bool, error)
	RemoveLike(ctx context.Context, postID uuid.UUID, userID string) (bool, error)
	// Import inserts legacy posts, skipping ids that already exist.
	Import(ctx context.Context, posts []entity.Post) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *entity.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error) {
	var post entity.Post
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("id = ?", id).
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) FindAll(ctx context.Context, offset, limit int) ([]entity.Post, int64, error) {
	var (
		posts []entity.Post
		total int64
	)

	if err := r.db.WithContext(ctx).Model(&entity.Post{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	return posts, total, err
}

func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&entity.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&entity.Post{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.ErrNotFound
		}
		return nil
	})
}

func (r *postRepository) AddLike(ctx context.Context, postID uuid.UUID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Post{}).
		Where("id = ? AND NOT (? = ANY(liked_by))", postID, userID).
		UpdateColumns(map[string]interface{}{
			"liked_by": gorm.Expr("array_append(liked_by, ?)", userID),
			"likes":    gorm.Expr("likes + 1"),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *postRepository) RemoveLike(ctx context.Context, postID uuid.UUID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Post{}).
		Where("id = ? AND ? = ANY(liked_by)", postID, userID).
		UpdateColumns(map[string]interface{}{
			"liked_by": gorm.Expr("array_remove(liked_by, ?)", userID),
			"likes":    gorm.Expr("GREATEST(likes - 1, 0)"),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *postRepository) Import(ctx context.Context, posts []entity.Post) (int64, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		CreateInBatches(&posts, 100)
	return res.RowsAffected, res.Error
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Post{}).Count(&count).Error
	return count, err
}
