package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sbilibin2017/gw-accounts/internal/logger"
	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/sbilibin2017/gw-accounts/internal/repositories"
)

// UserService implements user management on top of the user repositories.
type UserService struct {
	reader    UserReader
	writer    UserWriter
	unique    UniqueChecker
	hasher    PasswordHasher
	publisher Publisher
}

// NewUserService creates a new UserService.
func NewUserService(
	reader UserReader,
	writer UserWriter,
	unique UniqueChecker,
	hasher PasswordHasher,
	publisher Publisher,
) *UserService {
	return &UserService{
		reader:    reader,
		writer:    writer,
		unique:    unique,
		hasher:    hasher,
		publisher: publisher,
	}
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, skip, limit int) ([]models.User, error) {
	if skip < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: skip and limit must not be negative", ErrValidation)
	}
	return s.reader.List(ctx, skip, limit)
}

// GetForViewer returns the user with the given id if viewer may see it:
// users see themselves, superusers see everyone. The privilege check runs
// before the lookup so normal users cannot probe for ids.
func (s *UserService) GetForViewer(ctx context.Context, viewer *models.User, id int64) (*models.User, error) {
	if viewer.ID != id && !viewer.IsSuperuser {
		return nil, ErrForbidden
	}
	return s.get(ctx, id)
}

func (s *UserService) get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.reader.GetByID(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Errorw("failed to get user", "user_id", id, "err", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Create registers a new user.
func (s *UserService) Create(ctx context.Context, in models.UserCreate) (*models.User, error) {
	if err := s.checkUnique(ctx, in.UniqueCandidates(), nil); err != nil {
		return nil, err
	}

	digest, err := hashPassword(ctx, s.hasher, in.Password)
	if err != nil {
		return nil, err
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	user, err := s.writer.Create(ctx, &models.User{
		Username:       in.Username,
		Email:          in.Email,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		HashedPassword: digest,
		IsSuperuser:    in.IsSuperuser,
		IsActive:       isActive,
	})
	if err != nil {
		return nil, mapWriteError(ctx, err)
	}

	s.publisher.Publish(ctx, models.EventUserCreated, user.ID)
	return user, nil
}

// UpdateMe applies a self-service update to viewer.
func (s *UserService) UpdateMe(ctx context.Context, viewer *models.User, in models.UserUpdateMe) (*models.User, error) {
	return s.update(ctx, viewer.ID, in.UniqueCandidates(), in.Patch())
}

// Update applies an admin update to the user with the given id.
func (s *UserService) Update(ctx context.Context, id int64, in models.UserUpdate) (*models.User, error) {
	return s.update(ctx, id, in.UniqueCandidates(), in.Patch())
}

func (s *UserService) update(ctx context.Context, id int64, candidates map[string]any, patch models.UserPatch) (*models.User, error) {
	if err := s.checkUnique(ctx, candidates, &id); err != nil {
		return nil, err
	}

	user, err := s.writer.Update(ctx, id, patch)
	if err != nil {
		return nil, mapWriteError(ctx, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !patch.Empty() {
		s.publisher.Publish(ctx, models.EventUserUpdated, id)
	}
	return user, nil
}

// Delete removes the user with the given id.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.writer.Delete(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Errorw("failed to delete user", "user_id", id, "err", err)
		return err
	}
	if !deleted {
		return ErrUserNotFound
	}

	s.publisher.Publish(ctx, models.EventUserDeleted, id)
	return nil
}

// EnsureSuperuser creates the bootstrap superuser unless a user with email
// already exists. It reports whether a user was created.
func (s *UserService) EnsureSuperuser(ctx context.Context, email, password string) (*models.User, bool, error) {
	existing, err := s.reader.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		logger.FromContext(ctx).Infow("Superuser already exists", "user_id", existing.ID)
		return existing, false, nil
	}

	firstName, lastName, isActive := "Admin", "User", true
	user, err := s.Create(ctx, models.UserCreate{
		Username:    email,
		Email:       email,
		Password:    password,
		FirstName:   &firstName,
		LastName:    &lastName,
		IsSuperuser: true,
		IsActive:    &isActive,
	})
	if err != nil {
		return nil, false, err
	}

	logger.FromContext(ctx).Infow("Superuser created", "user_id", user.ID)
	return user, true, nil
}

func (s *UserService) checkUnique(ctx context.Context, candidates map[string]any, excludeID *int64) error {
	ok, err := s.unique.IsUnique(ctx, candidates, UserUniqueFields(), excludeID)
	if err != nil {
		logger.FromContext(ctx).Errorw("failed to check user uniqueness", "err", err)
		return err
	}
	if !ok {
		return ErrUserAlreadyExists
	}
	return nil
}

// mapWriteError turns a unique index violation into ErrUserAlreadyExists,
// covering writes that raced past the uniqueness probe.
func mapWriteError(ctx context.Context, err error) error {
	if errors.Is(err, repositories.ErrDuplicate) {
		logger.FromContext(ctx).Infow("unique index rejected write", "err", err)
		return ErrUserAlreadyExists
	}
	logger.FromContext(ctx).Errorw("failed to save user", "err", err)
	return err
}
