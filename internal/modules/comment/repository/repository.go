package repository

import (
	"context"
	"errors"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommentRepository keeps posts.comments in step with the comment rows:
// every insert and delete adjusts the counter in the same transaction.
type CommentRepository interface {
	Create(ctx context.Context, comment *entity.Comment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Comment, error)
	FindByPostID(ctx context.Context, postID uuid.UUID, offset, limit int) ([]entity.Comment, int64, error)
	Delete(ctx context.Context, comment *entity.Comment) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comments", gorm.Expr("comments + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("post not found")
		}
		return tx.Create(comment).Error
	})
}

func (r *commentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Comment, error) {
	var comment entity.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("comment not found")
		}
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) FindByPostID(ctx context.Context, postID uuid.UUID, offset, limit int) ([]entity.Comment, int64, error) {
	var (
		comments []entity.Comment
		total    int64
	)

	query := r.db.WithContext(ctx).Model(&entity.Comment{}).Where("post_id = ?", postID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("User").
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error
	return comments, total, err
}

func (r *commentRepository) Delete(ctx context.Context, comment *entity.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND post_id = ?", comment.ID, comment.PostID).Delete(&entity.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("comment not found")
		}
		return tx.Model(&entity.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comments", gorm.Expr("GREATEST(comments - 1, 0)")).Error
	})
}
