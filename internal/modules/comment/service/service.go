package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"anoa.com/runclub/internal/entity"
	commentDto "anoa.com/runclub/internal/modules/comment/dto"
	commentRepo "anoa.com/runclub/internal/modules/comment/repository"
	"anoa.com/runclub/internal/modules/mention"
	notifService "anoa.com/runclub/internal/modules/notification/service"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/changefeed"
	"anoa.com/runclub/pkg/dto"
	"anoa.com/runclub/pkg/ratelimiter"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type CommentService interface {
	AddComment(ctx context.Context, postID, userID uuid.UUID, req commentDto.CreateCommentRequest) (*commentDto.CommentResponse, error)
	ListComments(ctx context.Context, postID uuid.UUID, filter commentDto.CommentFilter) (*commentDto.PaginatedCommentResponse, error)
	DeleteComment(ctx context.Context, postID, commentID, actorID uuid.UUID, isAdmin bool) error
}

type RosterProvider interface {
	MentionRoster(ctx context.Context) (mention.Roster, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
}

type MentionDispatcher interface {
	Dispatch(ctx context.Context, in notifService.DispatchInput) error
}

type Deps struct {
	Repo       commentRepo.CommentRepository
	Users      UserFinder
	Roster     RosterProvider
	Dispatcher MentionDispatcher
	Feed       changefeed.Publisher
	Cooldown   *ratelimiter.Cooldown
	Window     time.Duration
	Log        logrus.FieldLogger
}

type commentService struct {
	Deps
	async func(func())
}

func NewCommentService(deps Deps) CommentService {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &commentService{
		Deps:  deps,
		async: func(f func()) { go f() },
	}
}

func (s *commentService) AddComment(ctx context.Context, postID, userID uuid.UUID, req commentDto.CreateCommentRequest) (*commentDto.CommentResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperror.Invalid("comment cannot be empty")
	}
	if utf8.RuneCountInString(text) > commentDto.MaxTextLength {
		return nil, apperror.Invalid(fmt.Sprintf("comment must be at most %d characters", commentDto.MaxTextLength))
	}

	if err := s.Cooldown.Check(ctx, userID, "comment", s.Window); err != nil {
		return nil, err
	}

	author, err := s.Users.FindByID(ctx, userID.String())
	if err != nil {
		_ = s.Cooldown.Clear(ctx, userID, "comment")
		return nil, err
	}

	roster := s.roster(ctx)
	mentions := mention.Parse(text, roster)

	comment := &entity.Comment{
		PostID:         postID,
		UserID:         userID,
		Text:           text,
		MentionUserIDs: pq.StringArray(mention.UserIDs(mentions)),
	}
	if err := s.Repo.Create(ctx, comment); err != nil {
		_ = s.Cooldown.Clear(ctx, userID, "comment")
		return nil, err
	}
	comment.User = *author

	s.publish(ctx, changefeed.Created, comment)

	if len(mentions) > 0 && s.Dispatcher != nil {
		commentID := comment.ID
		input := notifService.DispatchInput{
			Text:      text,
			Roster:    roster,
			Actor:     notifService.Actor{UserID: userID, DisplayName: author.DisplayName},
			Kind:      notifService.SourceComment,
			PostID:    postID,
			CommentID: &commentID,
		}
		s.async(func() {
			if err := s.Dispatcher.Dispatch(context.Background(), input); err != nil {
				s.Log.WithError(err).WithField("comment_id", commentID).Warn("mention dispatch incomplete")
			}
		})
	}

	return toResponse(comment, roster), nil
}

func (s *commentService) ListComments(ctx context.Context, postID uuid.UUID, filter commentDto.CommentFilter) (*commentDto.PaginatedCommentResponse, error) {
	offset := filter.Normalize()

	comments, total, err := s.Repo.FindByPostID(ctx, postID, offset, filter.Limit)
	if err != nil {
		return nil, err
	}

	roster := s.roster(ctx)
	data := make([]commentDto.CommentResponse, 0, len(comments))
	for i := range comments {
		data = append(data, *toResponse(&comments[i], roster))
	}

	return &commentDto.PaginatedCommentResponse{
		Data: data,
		Meta: dto.NewPaginationMeta(filter.PageQuery, total),
	}, nil
}

func (s *commentService) DeleteComment(ctx context.Context, postID, commentID, actorID uuid.UUID, isAdmin bool) error {
	comment, err := s.Repo.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.PostID != postID {
		return apperror.NotFound("comment not found")
	}
	if comment.UserID != actorID && !isAdmin {
		return apperror.Forbidden("you can only delete your own comments")
	}

	if err := s.Repo.Delete(ctx, comment); err != nil {
		return err
	}

	s.publish(ctx, changefeed.Deleted, comment)
	return nil
}

func (s *commentService) roster(ctx context.Context) mention.Roster {
	if s.Roster == nil {
		return mention.Roster{}
	}
	r, err := s.Roster.MentionRoster(ctx)
	if err != nil {
		s.Log.WithError(err).Warn("failed to load mention roster")
		return mention.Roster{}
	}
	return r
}

// publish announces the change on the post's comment thread and on the
// posts topic so feeds can refresh their comment counters.
func (s *commentService) publish(ctx context.Context, typ changefeed.EventType, comment *entity.Comment) {
	if s.Feed == nil {
		return
	}

	ev, err := changefeed.NewEvent("comments", typ, comment.ID.String(), map[string]string{
		"post_id": comment.PostID.String(),
	})
	if err != nil {
		return
	}

	for _, topic := range []string{changefeed.CommentsTopic(comment.PostID.String()), changefeed.TopicPosts} {
		if err := s.Feed.Publish(ctx, topic, ev); err != nil {
			s.Log.WithError(err).WithField("topic", topic).Warn("failed to publish comment change")
		}
	}
}

func toResponse(comment *entity.Comment, roster mention.Roster) *commentDto.CommentResponse {
	author := dto.AuthorResponse{ID: comment.UserID.String(), DisplayName: "Unknown"}
	if comment.User.DisplayName != "" {
		author.DisplayName = comment.User.DisplayName
		author.PhotoURL = comment.User.PhotoURL
	}

	mentions := mention.Parse(comment.Text, roster)
	if mentions == nil {
		mentions = []mention.Mention{}
	}
	segments := mention.Segments(comment.Text, roster)
	if segments == nil {
		segments = []mention.Segment{}
	}

	return &commentDto.CommentResponse{
		ID:        comment.ID,
		PostID:    comment.PostID,
		Author:    author,
		Text:      comment.Text,
		Segments:  segments,
		Mentions:  mentions,
		CreatedAt: comment.CreatedAt,
	}
}
