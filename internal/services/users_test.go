package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/sbilibin2017/gw-accounts/internal/password"
	"github.com/sbilibin2017/gw-accounts/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userServiceMocks struct {
	reader    *MockUserReader
	writer    *MockUserWriter
	unique    *MockUniqueChecker
	hasher    *MockPasswordHasher
	publisher *MockPublisher
}

func newUserServiceWithMocks(t *testing.T) (*UserService, userServiceMocks) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := userServiceMocks{
		reader:    NewMockUserReader(ctrl),
		writer:    NewMockUserWriter(ctrl),
		unique:    NewMockUniqueChecker(ctrl),
		hasher:    NewMockPasswordHasher(ctrl),
		publisher: NewMockPublisher(ctrl),
	}
	return NewUserService(m.reader, m.writer, m.unique, m.hasher, m.publisher), m
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestUserService_List(t *testing.T) {
	svc, m := newUserServiceWithMocks(t)
	ctx := context.Background()

	users := []models.User{{ID: 1}, {ID: 2}}
	m.reader.EXPECT().List(ctx, 0, 100).Return(users, nil)

	got, err := svc.List(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, users, got)

	_, err = svc.List(ctx, -1, 100)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.List(ctx, 0, -5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUserService_GetForViewer(t *testing.T) {
	normal := &models.User{ID: 1, IsActive: true}
	admin := &models.User{ID: 2, IsActive: true, IsSuperuser: true}
	other := &models.User{ID: 3, IsActive: true}

	tests := []struct {
		name      string
		viewer    *models.User
		id        int64
		lookup    bool
		found     *models.User
		readerErr error
		wantErr   error
	}{
		{name: "self", viewer: normal, id: 1, lookup: true, found: normal},
		{name: "superuser sees others", viewer: admin, id: 3, lookup: true, found: other},
		{name: "normal user forbidden before lookup", viewer: normal, id: 3, wantErr: ErrForbidden},
		{name: "normal user cannot probe missing ids", viewer: normal, id: 999, wantErr: ErrForbidden},
		{name: "superuser missing id", viewer: admin, id: 999, lookup: true, wantErr: ErrUserNotFound},
		{name: "reader error", viewer: admin, id: 3, lookup: true, readerErr: errors.New("db error"), wantErr: errors.New("db error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newUserServiceWithMocks(t)
			if tt.lookup {
				m.reader.EXPECT().GetByID(gomock.Any(), tt.id).Return(tt.found, tt.readerErr)
			}

			user, err := svc.GetForViewer(context.Background(), tt.viewer, tt.id)
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.found, user)
		})
	}
}

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()
	in := models.UserCreate{Username: "ann", Email: "ann@x.io", Password: "secret", FirstName: strPtr("Ann")}
	candidates := map[string]any{"username": "ann", "email": "ann@x.io"}

	t.Run("success defaults to active", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)

		m.unique.EXPECT().IsUnique(ctx, candidates, UserUniqueFields(), nil).Return(true, nil)
		m.hasher.EXPECT().Hash("secret").Return("digest", nil)
		m.writer.EXPECT().Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, u *models.User) (*models.User, error) {
				assert.Equal(t, "digest", u.HashedPassword)
				assert.True(t, u.IsActive)
				assert.False(t, u.IsSuperuser)
				assert.Equal(t, "Ann", *u.FirstName)
				created := *u
				created.ID = 11
				return &created, nil
			})
		m.publisher.EXPECT().Publish(ctx, models.EventUserCreated, int64(11))

		user, err := svc.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, int64(11), user.ID)
	})

	t.Run("explicit inactive", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		inactive := in
		inactive.IsActive = boolPtr(false)

		m.unique.EXPECT().IsUnique(ctx, candidates, UserUniqueFields(), nil).Return(true, nil)
		m.hasher.EXPECT().Hash("secret").Return("digest", nil)
		m.writer.EXPECT().Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, u *models.User) (*models.User, error) {
				assert.False(t, u.IsActive)
				return u, nil
			})
		m.publisher.EXPECT().Publish(ctx, models.EventUserCreated, gomock.Any())

		_, err := svc.Create(ctx, inactive)
		require.NoError(t, err)
	})

	t.Run("duplicate rejected before hashing", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		m.unique.EXPECT().IsUnique(ctx, candidates, UserUniqueFields(), nil).Return(false, nil)

		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})

	t.Run("unique index race maps to conflict", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		m.unique.EXPECT().IsUnique(ctx, candidates, UserUniqueFields(), nil).Return(true, nil)
		m.hasher.EXPECT().Hash("secret").Return("digest", nil)
		m.writer.EXPECT().Create(ctx, gomock.Any()).
			Return(nil, fmt.Errorf("%w: ix_user_email", repositories.ErrDuplicate))

		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})

	t.Run("password too long", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		m.unique.EXPECT().IsUnique(ctx, candidates, UserUniqueFields(), nil).Return(true, nil)
		m.hasher.EXPECT().Hash("secret").Return("", password.ErrPasswordTooLong)

		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("probe error", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		m.unique.EXPECT().IsUnique(ctx, candidates, UserUniqueFields(), nil).Return(false, errors.New("db error"))

		_, err := svc.Create(ctx, in)
		assert.EqualError(t, err, "db error")
	})
}

func TestUserService_UpdateMe(t *testing.T) {
	ctx := context.Background()
	viewer := &models.User{ID: 4, Username: "me", Email: "me@x.io", IsActive: true}

	t.Run("keeping own email is allowed", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		in := models.UserUpdateMe{Email: strPtr("me@x.io"), FirstName: models.Some("New")}
		updated := *viewer
		updated.FirstName = strPtr("New")

		m.unique.EXPECT().IsUnique(ctx, map[string]any{"email": "me@x.io"}, UserUniqueFields(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ map[string]any, _ []string, excludeID *int64) (bool, error) {
				require.NotNil(t, excludeID)
				assert.Equal(t, int64(4), *excludeID)
				return true, nil
			})
		m.writer.EXPECT().Update(ctx, int64(4), in.Patch()).Return(&updated, nil)
		m.publisher.EXPECT().Publish(ctx, models.EventUserUpdated, int64(4))

		user, err := svc.UpdateMe(ctx, viewer, in)
		require.NoError(t, err)
		assert.Equal(t, "New", *user.FirstName)
	})

	t.Run("email taken by someone else", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		in := models.UserUpdateMe{Email: strPtr("taken@x.io")}

		m.unique.EXPECT().IsUnique(ctx, map[string]any{"email": "taken@x.io"}, UserUniqueFields(), gomock.Any()).Return(false, nil)

		_, err := svc.UpdateMe(ctx, viewer, in)
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})

	t.Run("empty update publishes nothing", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)

		m.unique.EXPECT().IsUnique(ctx, map[string]any{}, UserUniqueFields(), gomock.Any()).Return(true, nil)
		m.writer.EXPECT().Update(ctx, int64(4), models.UserPatch{}).Return(viewer, nil)

		user, err := svc.UpdateMe(ctx, viewer, models.UserUpdateMe{})
		require.NoError(t, err)
		assert.Equal(t, viewer, user)
	})
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivate user", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		in := models.UserUpdate{IsActive: boolPtr(false)}

		m.unique.EXPECT().IsUnique(ctx, map[string]any{}, UserUniqueFields(), gomock.Any()).Return(true, nil)
		m.writer.EXPECT().Update(ctx, int64(9), in.Patch()).Return(&models.User{ID: 9, IsActive: false}, nil)
		m.publisher.EXPECT().Publish(ctx, models.EventUserUpdated, int64(9))

		user, err := svc.Update(ctx, 9, in)
		require.NoError(t, err)
		assert.False(t, user.IsActive)
	})

	t.Run("missing user", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		in := models.UserUpdate{Username: strPtr("ghost")}

		m.unique.EXPECT().IsUnique(ctx, map[string]any{"username": "ghost"}, UserUniqueFields(), gomock.Any()).Return(true, nil)
		m.writer.EXPECT().Update(ctx, int64(999), in.Patch()).Return(nil, nil)

		_, err := svc.Update(ctx, 999, in)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("writer error", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		in := models.UserUpdate{Username: strPtr("x")}

		m.unique.EXPECT().IsUnique(ctx, gomock.Any(), UserUniqueFields(), gomock.Any()).Return(true, nil)
		m.writer.EXPECT().Update(ctx, int64(9), in.Patch()).Return(nil, errors.New("db error"))

		_, err := svc.Update(ctx, 9, in)
		assert.EqualError(t, err, "db error")
	})
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		deleted  bool
		writeErr error
		publish  bool
		wantErr  error
	}{
		{name: "deleted", deleted: true, publish: true},
		{name: "missing", wantErr: ErrUserNotFound},
		{name: "writer error", writeErr: errors.New("db error"), wantErr: errors.New("db error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newUserServiceWithMocks(t)
			m.writer.EXPECT().Delete(ctx, int64(3)).Return(tt.deleted, tt.writeErr)
			if tt.publish {
				m.publisher.EXPECT().Publish(ctx, models.EventUserDeleted, int64(3))
			}

			err := svc.Delete(ctx, 3)
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUserService_EnsureSuperuser(t *testing.T) {
	ctx := context.Background()
	const email = "admin@example.com"

	t.Run("creates once", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)

		m.reader.EXPECT().GetByEmail(ctx, email).Return(nil, nil)
		m.unique.EXPECT().IsUnique(ctx, map[string]any{"username": email, "email": email}, UserUniqueFields(), nil).Return(true, nil)
		m.hasher.EXPECT().Hash("changethis").Return("digest", nil)
		m.writer.EXPECT().Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, u *models.User) (*models.User, error) {
				assert.Equal(t, email, u.Username)
				assert.Equal(t, email, u.Email)
				assert.Equal(t, "Admin", *u.FirstName)
				assert.Equal(t, "User", *u.LastName)
				assert.True(t, u.IsSuperuser)
				assert.True(t, u.IsActive)
				created := *u
				created.ID = 1
				return &created, nil
			})
		m.publisher.EXPECT().Publish(ctx, models.EventUserCreated, int64(1))

		user, created, err := svc.EnsureSuperuser(ctx, email, "changethis")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(1), user.ID)
	})

	t.Run("existing user left alone", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		existing := &models.User{ID: 1, Email: email, IsSuperuser: true}
		m.reader.EXPECT().GetByEmail(ctx, email).Return(existing, nil)

		user, created, err := svc.EnsureSuperuser(ctx, email, "changethis")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing, user)
	})

	t.Run("lookup error", func(t *testing.T) {
		svc, m := newUserServiceWithMocks(t)
		m.reader.EXPECT().GetByEmail(ctx, email).Return(nil, errors.New("db error"))

		_, created, err := svc.EnsureSuperuser(ctx, email, "changethis")
		assert.EqualError(t, err, "db error")
		assert.False(t, created)
	})
}
