package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/mention"
	notifService "anoa.com/runclub/internal/modules/notification/service"
	postDto "anoa.com/runclub/internal/modules/post/dto"
	postRepo "anoa.com/runclub/internal/modules/post/repository"
	searchService "anoa.com/runclub/internal/modules/search/service"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/changefeed"
	"anoa.com/runclub/pkg/dto"
	"anoa.com/runclub/pkg/ratelimiter"
	"anoa.com/runclub/pkg/storage"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const postImageFolder = "posts"

type PostService interface {
	CreatePost(ctx context.Context, userID uuid.UUID, req postDto.CreatePostRequest, image *dto.UploadFile) (*postDto.PostResponse, error)
	ListPosts(ctx context.Context, viewerID uuid.UUID, filter postDto.PostFilter) (*postDto.PaginatedPostResponse, error)
	GetPost(ctx context.Context, postID, viewerID uuid.UUID) (*postDto.PostResponse, error)
	DeletePost(ctx context.Context, postID, actorID uuid.UUID, isAdmin bool) error
	ToggleLike(ctx context.Context, postID, userID uuid.UUID) (*postDto.LikeResponse, error)
	ImportLegacy(ctx context.Context, req postDto.ImportPostsRequest) (*postDto.ImportResult, error)
	Count(ctx context.Context) (int64, error)
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

type Cooldowns struct {
	Limiter *ratelimiter.Cooldown
	Global  time.Duration
	Post    time.Duration
}

type Deps struct {
	Repo         postRepo.PostRepository
	Users        UserFinder
	Roster       RosterProvider
	ImageStorage storage.ImageStorage
	Search       searchService.SearchService
	Dispatcher   MentionDispatcher
	Feed         changefeed.Publisher
	Cooldowns    Cooldowns
	Log          logrus.FieldLogger
}

type postService struct {
	Deps
	async func(func())
}

func NewPostService(deps Deps) PostService {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Search == nil {
		deps.Search = searchService.NoopSearchService{}
	}
	return &postService{
		Deps:  deps,
		async: func(f func()) { go f() },
	}
}

func (s *postService) CreatePost(ctx context.Context, userID uuid.UUID, req postDto.CreatePostRequest, image *dto.UploadFile) (*postDto.PostResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && image == nil {
		return nil, apperror.Invalid("post needs text or an image")
	}
	if utf8.RuneCountInString(content) > postDto.MaxContentLength {
		return nil, apperror.Invalid(fmt.Sprintf("post must be at most %d characters", postDto.MaxContentLength))
	}

	cd := s.Cooldowns
	if err := cd.Limiter.Check(ctx, userID, "global", cd.Global); err != nil {
		return nil, err
	}
	if err := cd.Limiter.Check(ctx, userID, "post", cd.Post); err != nil {
		_ = cd.Limiter.Clear(ctx, userID, "global")
		return nil, err
	}

	creationFailed := true
	defer func() {
		if creationFailed {
			_ = cd.Limiter.Clear(ctx, userID, "global")
			_ = cd.Limiter.Clear(ctx, userID, "post")
		}
	}()

	author, err := s.Users.FindByID(ctx, userID.String())
	if err != nil {
		return nil, err
	}

	roster := s.roster(ctx)
	mentions := mention.Parse(content, roster)

	post := &entity.Post{
		UserID:         userID,
		Content:        content,
		LikedBy:        pq.StringArray{},
		MentionUserIDs: pq.StringArray(mention.UserIDs(mentions)),
	}

	if image != nil {
		url, err := s.ImageStorage.UploadImage(ctx, image.Reader, postImageFolder, image.FileName)
		if err != nil {
			return nil, fmt.Errorf("upload post image: %w", err)
		}
		post.ImageURL = &url
	}

	if err := s.Repo.Create(ctx, post); err != nil {
		if post.ImageURL != nil {
			_ = s.ImageStorage.DeleteImage(ctx, *post.ImageURL)
		}
		return nil, err
	}
	post.User = *author
	creationFailed = false

	s.publish(ctx, changefeed.Created, post)
	if err := s.Search.IndexPost(ctx, post); err != nil {
		s.Log.WithError(err).WithField("post_id", post.ID).Warn("failed to index post")
	}

	if len(mentions) > 0 && s.Dispatcher != nil {
		input := notifService.DispatchInput{
			Text:   content,
			Roster: roster,
			Actor:  notifService.Actor{UserID: userID, DisplayName: author.DisplayName},
			Kind:   notifService.SourcePost,
			PostID: post.ID,
		}
		s.async(func() {
			if err := s.Dispatcher.Dispatch(context.Background(), input); err != nil {
				s.Log.WithError(err).WithField("post_id", input.PostID).Warn("mention dispatch incomplete")
			}
		})
	}

	return toResponse(post, roster, userID), nil
}

func (s *postService) ListPosts(ctx context.Context, viewerID uuid.UUID, filter postDto.PostFilter) (*postDto.PaginatedPostResponse, error) {
	offset := filter.Normalize()

	posts, total, err := s.Repo.FindAll(ctx, offset, filter.Limit)
	if err != nil {
		return nil, err
	}

	roster := s.roster(ctx)
	data := make([]postDto.PostResponse, 0, len(posts))
	for i := range posts {
		data = append(data, *toResponse(&posts[i], roster, viewerID))
	}

	return &postDto.PaginatedPostResponse{
		Data: data,
		Meta: dto.NewPaginationMeta(filter.PageQuery, total),
	}, nil
}

func (s *postService) GetPost(ctx context.Context, postID, viewerID uuid.UUID) (*postDto.PostResponse, error) {
	post, err := s.Repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return toResponse(post, s.roster(ctx), viewerID), nil
}

func (s *postService) DeletePost(ctx context.Context, postID, actorID uuid.UUID, isAdmin bool) error {
	post, err := s.Repo.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != actorID && !isAdmin {
		return apperror.Forbidden("you can only delete your own posts")
	}

	if err := s.Repo.Delete(ctx, postID); err != nil {
		return err
	}

	if post.ImageURL != nil && *post.ImageURL != "" {
		if err := s.ImageStorage.DeleteImage(ctx, *post.ImageURL); err != nil {
			s.Log.WithError(err).WithField("post_id", postID).Warn("failed to delete post image")
		}
	}
	if err := s.Search.DeletePost(ctx, postID.String()); err != nil {
		s.Log.WithError(err).WithField("post_id", postID).Warn("failed to remove post from search")
	}
	s.publish(ctx, changefeed.Deleted, post)

	return nil
}

func (s *postService) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (*postDto.LikeResponse, error) {
	post, err := s.Repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	uid := userID.String()
	if post.LikedByUser(uid) {
		_, err = s.Repo.RemoveLike(ctx, postID, uid)
	} else {
		_, err = s.Repo.AddLike(ctx, postID, uid)
	}
	if err != nil {
		return nil, err
	}

	// Re-read so concurrent toggles from other members are reflected.
	post, err = s.Repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changefeed.Updated, post)

	return &postDto.LikeResponse{Liked: post.LikedByUser(uid), Likes: post.Likes}, nil
}

func (s *postService) ImportLegacy(ctx context.Context, req postDto.ImportPostsRequest) (*postDto.ImportResult, error) {
	result := &postDto.ImportResult{}
	posts := make([]entity.Post, 0, len(req.Posts))
	roster := s.roster(ctx)

	for i, in := range req.Posts {
		likedBy, err := NormalizeLikedBy(in.LikedBy)
		if err != nil {
			result.Errors = append(result.Errors, postDto.ImportError{Index: i, Error: err.Error()})
			continue
		}

		userID, err := uuid.Parse(in.UserID)
		if err != nil {
			result.Errors = append(result.Errors, postDto.ImportError{Index: i, Error: "invalid user_id"})
			continue
		}

		post := entity.Post{
			UserID:         userID,
			Content:        in.Content,
			ImageURL:       in.ImageURL,
			LikedBy:        pq.StringArray(likedBy),
			Likes:          len(likedBy),
			MentionUserIDs: pq.StringArray(mention.UserIDs(mention.Parse(in.Content, roster))),
		}
		if in.ID != "" {
			if post.ID, err = uuid.Parse(in.ID); err != nil {
				result.Errors = append(result.Errors, postDto.ImportError{Index: i, Error: "invalid id"})
				continue
			}
		}
		if in.CreatedAt != nil {
			post.CreatedAt = *in.CreatedAt
		}
		posts = append(posts, post)
	}

	inserted, err := s.Repo.Import(ctx, posts)
	if err != nil {
		return nil, err
	}

	result.Imported = int(inserted)
	result.Skipped = len(posts) - int(inserted)
	return result, nil
}

func (s *postService) Count(ctx context.Context) (int64, error) {
	return s.Repo.Count(ctx)
}

// roster degrades to an empty roster so feed reads survive a user store
// outage; mentions then render as plain text.
func (s *postService) roster(ctx context.Context) mention.Roster {
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

func (s *postService) publish(ctx context.Context, typ changefeed.EventType, post *entity.Post) {
	if s.Feed == nil {
		return
	}
	ev, err := changefeed.NewEvent("posts", typ, post.ID.String(), postDto.LikeResponse{Likes: post.Likes})
	if err == nil {
		err = s.Feed.Publish(ctx, changefeed.TopicPosts, ev)
	}
	if err != nil {
		s.Log.WithError(err).WithField("post_id", post.ID).Warn("failed to publish post change")
	}
}

func toResponse(post *entity.Post, roster mention.Roster, viewerID uuid.UUID) *postDto.PostResponse {
	author := dto.AuthorResponse{ID: post.UserID.String(), DisplayName: "Unknown"}
	if post.User.DisplayName != "" {
		author.DisplayName = post.User.DisplayName
		author.PhotoURL = post.User.PhotoURL
	}

	mentions := mention.Parse(post.Content, roster)
	if mentions == nil {
		mentions = []mention.Mention{}
	}
	segments := mention.Segments(post.Content, roster)
	if segments == nil {
		segments = []mention.Segment{}
	}

	return &postDto.PostResponse{
		ID:        post.ID,
		Author:    author,
		Content:   post.Content,
		Segments:  segments,
		Mentions:  mentions,
		ImageURL:  post.ImageURL,
		Likes:     post.Likes,
		Liked:     viewerID != uuid.Nil && post.LikedByUser(viewerID.String()),
		Comments:  post.Comments,
		CreatedAt: post.CreatedAt,
	}
}
