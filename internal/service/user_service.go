package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"innovatech/accounts/internal/models"
	"innovatech/accounts/internal/repository"
	"innovatech/accounts/internal/security"
)

var ErrNotFound = errors.New("user not found")

// UserService covers the admin-facing listing and the owner-or-admin
// detail operations.
type UserService struct {
	users UserStore
	log   zerolog.Logger
}

func NewUserService(users UserStore, log zerolog.Logger) *UserService {
	return &UserService{users: users, log: log}
}

func (s *UserService) List(ctx context.Context, filter repository.UserFilter) ([]models.User, error) {
	return s.users.List(ctx, filter)
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// UpdateInput carries a partial update; nil fields are untouched. The
// privileged fields are applied only when the caller is staff.
type UpdateInput struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string

	UserType    *models.UserType
	IsApproved  *bool
	IsStaff     *bool
	IsSuperuser *bool
}

func (s *UserService) Update(ctx context.Context, id string, input UpdateInput, callerIsStaff bool) (models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if input.Email != nil {
		user.Email = NormalizeEmail(*input.Email)
	}
	if input.Password != nil {
		hash, err := security.HashPassword(*input.Password)
		if err != nil {
			return models.User{}, err
		}
		user.PasswordHash = hash
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}

	if callerIsStaff {
		if input.UserType != nil {
			user.UserType = *input.UserType
		}
		if input.IsApproved != nil {
			user.IsApproved = *input.IsApproved
		}
		if input.IsStaff != nil {
			user.IsStaff = *input.IsStaff
		}
		if input.IsSuperuser != nil {
			user.IsSuperuser = *input.IsSuperuser
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.User{}, ErrEmailTaken
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
