package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sbilibin2017/gw-accounts/internal/logger"
	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/sbilibin2017/gw-accounts/internal/password"
)

// AuthService authenticates credentials, issues tokens and resolves the
// identity behind a token.
type AuthService struct {
	reader    UserReader
	writer    UserWriter
	hasher    PasswordHasher
	tokens    TokenIssuer
	ttl       time.Duration
	publisher Publisher
}

// NewAuthService creates a new AuthService instance. Tokens are issued for ttl.
func NewAuthService(
	reader UserReader,
	writer UserWriter,
	hasher PasswordHasher,
	tokens TokenIssuer,
	ttl time.Duration,
	publisher Publisher,
) *AuthService {
	return &AuthService{
		reader:    reader,
		writer:    writer,
		hasher:    hasher,
		tokens:    tokens,
		ttl:       ttl,
		publisher: publisher,
	}
}

// Authenticate returns the user matching username and password, or nil when
// the user does not exist or the password is wrong.
func (svc *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := svc.reader.GetByUsername(ctx, username)
	if err != nil {
		logger.FromContext(ctx).Errorw("failed to get user", "err", err)
		return nil, err
	}
	if user == nil || !svc.hasher.Verify(password, user.HashedPassword) {
		return nil, nil
	}
	return user, nil
}

// Login authenticates a user and returns an access token.
func (svc *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := svc.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	if user == nil {
		logger.FromContext(ctx).Infow("invalid credentials", "username", username)
		return "", ErrInvalidCredentials
	}
	if !user.IsActive {
		logger.FromContext(ctx).Infow("inactive user tried to log in", "user_id", user.ID)
		return "", ErrInactiveUser
	}

	token, err := svc.tokens.Issue(strconv.FormatInt(user.ID, 10), svc.ttl)
	if err != nil {
		logger.FromContext(ctx).Errorw("failed to generate JWT", "err", err)
		return "", err
	}
	return token, nil
}

// ResolveIdentity returns the active user a token was issued for.
func (svc *AuthService) ResolveIdentity(ctx context.Context, tokenString string) (*models.User, error) {
	subject, err := svc.tokens.Verify(ctx, tokenString)
	if err != nil {
		return nil, ErrUnauthorized
	}

	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		logger.FromContext(ctx).Warnw("token subject is not a user id", "sub", subject)
		return nil, ErrUnauthorized
	}

	user, err := svc.reader.GetByID(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Errorw("failed to get user", "user_id", id, "err", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// RequireSuperuser fails with ErrForbidden unless user is a superuser.
func RequireSuperuser(user *models.User) error {
	if user == nil || !user.IsSuperuser {
		return ErrForbidden
	}
	return nil
}

// ChangePassword replaces the password of user after checking the current one.
// Setting the same password again is rejected with ErrSamePassword.
func (svc *AuthService) ChangePassword(ctx context.Context, user *models.User, currentPassword, newPassword string) error {
	if !svc.hasher.Verify(currentPassword, user.HashedPassword) {
		return ErrWrongPassword
	}
	if currentPassword == newPassword {
		return ErrSamePassword
	}

	digest, err := hashPassword(ctx, svc.hasher, newPassword)
	if err != nil {
		return err
	}

	updated, err := svc.writer.Update(ctx, user.ID, models.UserPatch{HashedPassword: &digest})
	if err != nil {
		logger.FromContext(ctx).Errorw("failed to save password", "user_id", user.ID, "err", err)
		return err
	}
	if updated == nil {
		return ErrUserNotFound
	}

	user.HashedPassword = digest
	svc.publisher.Publish(ctx, models.EventPasswordChanged, user.ID)
	return nil
}

func hashPassword(ctx context.Context, hasher PasswordHasher, plaintext string) (string, error) {
	digest, err := hasher.Hash(plaintext)
	if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err != nil {
		logger.FromContext(ctx).Errorw("failed to hash password", "err", err)
		return "", err
	}
	return digest, nil
}
