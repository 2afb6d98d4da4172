package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/mention"
	"anoa.com/runclub/internal/modules/user/dto"
	"anoa.com/runclub/internal/modules/user/repository"
	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/changefeed"
	commonDto "anoa.com/runclub/pkg/dto"
	"anoa.com/runclub/pkg/jwtauth"
	"anoa.com/runclub/pkg/storage"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// Display names are mention handles, so they must be word characters only.
var displayNamePattern = regexp.MustCompile(`^\w+$`)

var errInvalidCredentials = apperror.New(http.StatusUnauthorized, "invalid credentials", apperror.ErrUnauthorized)

type AuthService interface {
	Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error)
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	GoogleLogin(state string) string
	GoogleCallback(ctx context.Context, code string) (*dto.AuthResponse, error)
}

type UserService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input dto.UpdateProfileInput, photo *commonDto.UploadFile) (*dto.UserResponse, error)
	Roster(ctx context.Context) ([]dto.RosterEntry, error)
	MentionRoster(ctx context.Context) (mention.Roster, error)
}

type Deps struct {
	Repo         repository.UserRepository
	ImageStorage storage.ImageStorage
	Issuer       *jwtauth.Issuer
	Feed         changefeed.Publisher
	GoogleConfig *oauth2.Config
	Log          logrus.FieldLogger
}

type Service struct {
	Deps
}

// New returns one value serving both auth and profile operations.
func New(deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &Service{Deps: deps}
}

func (s *Service) Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error) {
	if !displayNamePattern.MatchString(input.DisplayName) {
		return nil, apperror.Invalid("display name may only contain letters, digits and underscores")
	}

	if _, err := s.Repo.FindByDisplayName(ctx, input.DisplayName); err == nil {
		return nil, apperror.New(http.StatusConflict, "display name already taken", apperror.ErrConflict)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	if _, err := s.Repo.FindByPhone(ctx, input.Phone); err == nil {
		return nil, apperror.New(http.StatusConflict, "phone already registered", apperror.ErrConflict)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role, err := s.Repo.FindRoleByName(ctx, entity.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("member role missing: %w", err)
	}

	phone := input.Phone
	user := &entity.User{
		DisplayName:  input.DisplayName,
		Phone:        &phone,
		PasswordHash: string(hash),
		RoleID:       &role.ID,
		Role:         *role,
	}
	if input.Email != "" {
		email := strings.ToLower(input.Email)
		user.Email = &email
	}

	if err := s.Repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.publish(ctx, changefeed.Created, user)

	return s.buildAuthResponse(user)
}

func (s *Service) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	user, err := s.Repo.FindByPhone(ctx, input.Phone)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	return s.buildAuthResponse(user)
}

func (s *Service) GoogleLogin(state string) string {
	return s.GoogleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (s *Service) GoogleCallback(ctx context.Context, code string) (*dto.AuthResponse, error) {
	token, err := s.GoogleConfig.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.New(http.StatusUnauthorized, "failed to exchange token", err)
	}

	client := s.GoogleConfig.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	var googleUser struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	email := strings.ToLower(googleUser.Email)
	user, err := s.Repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.GoogleID == nil || *user.GoogleID != googleUser.ID {
			user.GoogleID = &googleUser.ID
			if err := s.Repo.Update(ctx, user); err != nil {
				s.Log.WithError(err).WithField("user_id", user.ID).Warn("failed to link google account")
			}
		}
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.registerGoogleUser(ctx, email, googleUser.ID, googleUser.Picture)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.buildAuthResponse(user)
}

func (s *Service) registerGoogleUser(ctx context.Context, email, googleID, picture string) (*entity.User, error) {
	role, err := s.Repo.FindRoleByName(ctx, entity.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("member role missing: %w", err)
	}

	name := handleFromEmail(email)
	if _, err := s.Repo.FindByDisplayName(ctx, name); err == nil {
		name = name + "_" + uuid.NewString()[:4]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		DisplayName:  name,
		Email:        &email,
		PasswordHash: string(hash),
		RoleID:       &role.ID,
		Role:         *role,
		GoogleID:     &googleID,
	}
	if picture != "" {
		user.PhotoURL = &picture
	}

	if err := s.Repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.publish(ctx, changefeed.Created, user)
	return user, nil
}

// handleFromEmail keeps the local part's word characters.
func handleFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() < 2 {
		return "runner_" + uuid.NewString()[:6]
	}
	return b.String()
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.Repo.FindByID(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return ToUserResponse(user), nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, input dto.UpdateProfileInput, photo *commonDto.UploadFile) (*dto.UserResponse, error) {
	user, err := s.Repo.FindByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil && *input.DisplayName != user.DisplayName {
		if !displayNamePattern.MatchString(*input.DisplayName) {
			return nil, apperror.Invalid("display name may only contain letters, digits and underscores")
		}
		if _, err := s.Repo.FindByDisplayName(ctx, *input.DisplayName); err == nil {
			return nil, apperror.New(http.StatusConflict, "display name already taken", apperror.ErrConflict)
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		user.DisplayName = *input.DisplayName
	}

	if input.Email != nil {
		email := strings.ToLower(*input.Email)
		user.Email = &email
	}

	var oldPhoto *string
	if photo != nil && photo.Reader != nil {
		url, err := s.ImageStorage.UploadImage(ctx, photo.Reader, "avatars", photo.FileName)
		if err != nil {
			return nil, err
		}
		oldPhoto = user.PhotoURL
		user.PhotoURL = &url
	}

	if err := s.Repo.Update(ctx, user); err != nil {
		return nil, err
	}

	if oldPhoto != nil && *oldPhoto != "" {
		if err := s.ImageStorage.DeleteImage(ctx, *oldPhoto); err != nil {
			s.Log.WithError(err).WithField("url", *oldPhoto).Warn("failed to delete old avatar")
		}
	}

	s.publish(ctx, changefeed.Updated, user)
	return ToUserResponse(user), nil
}

func (s *Service) Roster(ctx context.Context) ([]dto.RosterEntry, error) {
	users, err := s.Repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]dto.RosterEntry, 0, len(users))
	for _, u := range users {
		out = append(out, dto.RosterEntry{ID: u.ID.String(), DisplayName: u.DisplayName, PhotoURL: u.PhotoURL})
	}
	return out, nil
}

func (s *Service) MentionRoster(ctx context.Context) (mention.Roster, error) {
	users, err := s.Repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	members := make([]mention.Member, 0, len(users))
	for _, u := range users {
		members = append(members, mention.Member{UserID: u.ID.String(), DisplayName: u.DisplayName})
	}
	return mention.NewRoster(members), nil
}

func (s *Service) publish(ctx context.Context, typ changefeed.EventType, user *entity.User) {
	if s.Feed == nil {
		return
	}
	ev, err := changefeed.NewEvent("users", typ, user.ID.String(), dto.RosterEntry{
		ID:          user.ID.String(),
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	})
	if err == nil {
		err = s.Feed.Publish(ctx, changefeed.TopicUsers, ev)
	}
	if err != nil {
		s.Log.WithError(err).WithField("user_id", user.ID).Warn("failed to publish user change")
	}
}

func (s *Service) buildAuthResponse(user *entity.User) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.Issuer.Issue(user.ID.String(), user.Role.Name)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresAt,
		User:        ToUserResponse(user),
	}, nil
}

// ToUserResponse is the public view of a user.
func ToUserResponse(user *entity.User) *dto.UserResponse {
	var resp dto.UserResponse
	_ = copier.Copy(&resp, user)
	resp.ID = user.ID.String()
	resp.Role = user.Role.Name
	return &resp
}
