package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"anoa.com/runclub/pkg/apperror"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (PostRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewPostRepository(db), mock
}

// sqlPattern matches the fragments in order with anything in between.
func sqlPattern(fragments ...string) string {
	quoted := make([]string, len(fragments))
	for i, f := range fragments {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return strings.Join(quoted, ".*")
}

func TestAddLikeIsGuardedByMembership(t *testing.T) {
	repo, mock := newMockRepo(t)
	postID := uuid.New()
	userID := uuid.NewString()

	addLike := sqlPattern(
		`UPDATE "posts" SET`,
		`"liked_by"=array_append(liked_by, $1)`,
		`"likes"=likes + 1`,
		`id = $2 AND NOT ($3 = ANY(liked_by))`,
	)

	mock.ExpectBegin()
	mock.ExpectExec(addLike).WithArgs(userID, postID, userID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	added, err := repo.AddLike(context.Background(), postID, userID)
	require.NoError(t, err)
	assert.True(t, added)

	// already in liked_by: the guard matches no row
	mock.ExpectBegin()
	mock.ExpectExec(addLike).WithArgs(userID, postID, userID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	added, err = repo.AddLike(context.Background(), postID, userID)
	require.NoError(t, err)
	assert.False(t, added)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveLikeNeverDropsBelowZero(t *testing.T) {
	repo, mock := newMockRepo(t)
	postID := uuid.New()
	userID := uuid.NewString()

	removeLike := sqlPattern(
		`UPDATE "posts" SET`,
		`"liked_by"=array_remove(liked_by, $1)`,
		`"likes"=GREATEST(likes - 1, 0)`,
		`id = $2 AND $3 = ANY(liked_by)`,
	)

	mock.ExpectBegin()
	mock.ExpectExec(removeLike).WithArgs(userID, postID, userID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.RemoveLike(context.Background(), postID, userID)
	require.NoError(t, err)
	assert.True(t, removed)

	mock.ExpectBegin()
	mock.ExpectExec(removeLike).WithArgs(userID, postID, userID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	removed, err = repo.RemoveLike(context.Background(), postID, userID)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePostRemovesCommentsInSameTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	postID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern(`DELETE FROM "comments"`, `post_id = $1`)).
		WithArgs(postID).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(sqlPattern(`DELETE FROM "posts"`, `id = $1`)).
		WithArgs(postID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), postID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingPostRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	postID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern(`DELETE FROM "comments"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(sqlPattern(`DELETE FROM "posts"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), postID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
