package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/smartlearn/internal/access"
	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/dunamismax/smartlearn/internal/id"
)

type RegisterInput struct {
	Username  string `json:"username" validate:"required,notblank,min=3,max=150"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	Role      string `json:"role" validate:"omitempty,oneof=admin teacher student"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput is a partial update. Nil fields and empty lists leave the
// stored value unchanged.
type ProfileInput struct {
	FirstName   *string            `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string            `json:"last_name" validate:"omitempty,max=150"`
	Email       *string            `json:"email" validate:"omitempty,email,max=254"`
	Bio         *string            `json:"bio" validate:"omitempty,max=2000"`
	Profession  *string            `json:"profession" validate:"omitempty,max=200"`
	PhoneNumber *string            `json:"phone_number" validate:"omitempty,max=20"`
	Education   []domain.Education `json:"education" validate:"omitempty,dive"`
	Expertise   []string           `json:"expertise" validate:"omitempty,dive,max=100"`
	Interests   []string           `json:"interests" validate:"omitempty,dive,max=100"`
}

type ProfilePicture struct {
	Key         string
	ContentType string
	Bytes       int
	Normalized  bool
	Width       int
	Height      int
	Quality     int
}

// Register creates an active account. Anyone but a superuser asking for the
// admin role is registered as a student.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return domain.User{}, err
	}

	now := s.clock()
	user := domain.User{
		ID:        id.New(),
		Username:  in.Username,
		Email:     in.Email,
		Role:      in.Role,
		IsActive:  true,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	user.NormalizeRole()
	if err := user.SetPassword(in.Password); err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return domain.User{}, fmt.Errorf("username or email already taken: %w", ErrConflict)
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Printf("user registered user_id=%s role=%s", user.ID, user.Role)
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, in LoginInput) (domain.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.User{}, err
	}

	user, ok, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || user.CheckPassword(in.Password) != nil {
		return domain.User{}, ErrUnauthorized
	}
	if !user.IsActive {
		return domain.User{}, fmt.Errorf("account deactivated: %w", ErrUnauthorized)
	}
	return user, nil
}

func (s *Service) User(ctx context.Context, userID string) (domain.User, error) {
	return s.loadUser(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, actor domain.User, in ProfileInput) (domain.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.User{}, err
	}

	user, err := s.loadUser(ctx, actor.ID)
	if err != nil {
		return domain.User{}, err
	}

	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	assign(&user.FirstName, in.FirstName)
	assign(&user.LastName, in.LastName)
	assign(&user.Email, in.Email)
	assign(&user.Bio, in.Bio)
	assign(&user.Profession, in.Profession)
	assign(&user.PhoneNumber, in.PhoneNumber)

	if len(in.Education) > 0 {
		user.Education = domain.CleanEducation(in.Education)
	}
	if len(in.Expertise) > 0 {
		user.Expertise = domain.CleanStrings(in.Expertise)
	}
	if len(in.Interests) > 0 {
		user.Interests = domain.CleanStrings(in.Interests)
	}
	user.UpdatedAt = s.clock()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return domain.User{}, fmt.Errorf("email already taken: %w", ErrConflict)
		}
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// UploadProfilePicture normalizes the upload, stores it and replaces the
// previous picture. Normalization never fails the request: undecodable
// images are stored as uploaded.
func (s *Service) UploadProfilePicture(ctx context.Context, actor domain.User, name string, data []byte) (ProfilePicture, error) {
	if len(data) == 0 {
		return ProfilePicture{}, invalid("profile_picture", "file is empty")
	}
	if strings.TrimSpace(name) == "" {
		name = "profile_picture"
	}

	user, err := s.loadUser(ctx, actor.ID)
	if err != nil {
		return ProfilePicture{}, err
	}

	res := s.normalizer.Normalize(name, data)
	stored, err := s.pictures.Emit(ctx, user.ID, id.Token(), res)
	if err != nil {
		return ProfilePicture{}, fmt.Errorf("store profile picture: %w", err)
	}

	previous := user.ProfilePictureKey
	user.ProfilePictureKey = stored.Key
	user.UpdatedAt = s.clock()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.removeObject(ctx, stored.Key)
		return ProfilePicture{}, fmt.Errorf("update profile picture: %w", err)
	}
	if previous != stored.Key {
		s.removeObject(ctx, previous)
	}

	s.logger.Printf(
		"profile picture stored user_id=%s key=%s bytes=%d normalized=%t quality=%d",
		user.ID, stored.Key, stored.Bytes, stored.Normalized, res.Quality,
	)
	return ProfilePicture{
		Key:         stored.Key,
		ContentType: stored.ContentType,
		Bytes:       stored.Bytes,
		Normalized:  stored.Normalized,
		Width:       res.Width,
		Height:      res.Height,
		Quality:     res.Quality,
	}, nil
}

// ProfilePictureURL returns a time-limited download link for a user's picture.
func (s *Service) ProfilePictureURL(ctx context.Context, userID string) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ProfilePictureKey == "" {
		return "", notFound("profile picture for user", userID)
	}

	exists, err := s.objects.ObjectExists(ctx, user.ProfilePictureKey)
	if err != nil {
		return "", fmt.Errorf("check profile picture: %w", err)
	}
	if !exists {
		return "", notFound("profile picture", user.ProfilePictureKey)
	}
	return s.objects.PresignedGetURL(ctx, user.ProfilePictureKey, s.urlExpiry)
}

func (s *Service) SetRole(ctx context.Context, actor domain.User, userID, role string) (domain.User, error) {
	if err := access.Require(actor, access.AdministerUsers); err != nil {
		return domain.User{}, err
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !domain.ValidRole(role) {
		return domain.User{}, invalid("role", "must be one of admin teacher student")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if role == domain.RoleAdmin && !user.IsSuperuser {
		return domain.User{}, invalid("role", "only superusers can hold the admin role")
	}

	user.Role = role
	user.UpdatedAt = s.clock()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("update role: %w", err)
	}
	s.logger.Printf("user role changed user_id=%s role=%s by=%s", user.ID, role, actor.ID)
	return user, nil
}

func (s *Service) SetActive(ctx context.Context, actor domain.User, userID string, active bool) (domain.User, error) {
	if err := access.Require(actor, access.AdministerUsers); err != nil {
		return domain.User{}, err
	}
	if userID == actor.ID && !active {
		return domain.User{}, invalid("is_active", "cannot deactivate your own account")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	user.IsActive = active
	user.UpdatedAt = s.clock()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("update active flag: %w", err)
	}
	s.logger.Printf("user active flag changed user_id=%s active=%t by=%s", user.ID, active, actor.ID)
	return user, nil
}
