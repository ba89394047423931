package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sbilibin2017/gw-accounts/internal/middlewares"
	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/sbilibin2017/gw-accounts/internal/services"
)

//go:generate mockgen -source=users.go -destination=users_mock.go -package=handlers

// UserLister lists users page by page.
type UserLister interface {
	List(ctx context.Context, skip, limit int) ([]models.User, error)
}

// UserViewer fetches a user on behalf of a viewer.
type UserViewer interface {
	GetForViewer(ctx context.Context, viewer *models.User, id int64) (*models.User, error)
}

// UserCreator creates users.
type UserCreator interface {
	Create(ctx context.Context, in models.UserCreate) (*models.User, error)
}

// MeUpdater applies self-service updates.
type MeUpdater interface {
	UpdateMe(ctx context.Context, viewer *models.User, in models.UserUpdateMe) (*models.User, error)
}

// UserUpdater applies admin updates.
type UserUpdater interface {
	Update(ctx context.Context, id int64, in models.UserUpdate) (*models.User, error)
}

// UserDeleter deletes users.
type UserDeleter interface {
	Delete(ctx context.Context, id int64) error
}

// PasswordChanger changes the password of the current user.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, user *models.User, currentPassword, newPassword string) error
}

// NewListUsersHandler returns a handler listing users.
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param skip query int false "Rows to skip" minimum(0)
// @Param limit query int false "Max rows to return" minimum(1)
// @Success 200 {array} models.UserPublic
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /users/ [get]
func NewListUsersHandler(svc UserLister) middlewares.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *models.User) {
		skip, err := queryInt(r, "skip", 0)
		if err != nil || skip < 0 {
			writeError(w, r, fmt.Errorf("%w: skip must be a non-negative integer", services.ErrValidation))
			return
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil || (r.URL.Query().Has("limit") && limit <= 0) {
			writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", services.ErrValidation))
			return
		}

		users, err := svc.List(r.Context(), skip, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}

		out := make([]models.UserPublic, 0, len(users))
		for i := range users {
			out = append(out, users[i].Public())
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// NewReadMeHandler returns a handler answering with the current user.
// @Summary Get current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserPublic
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [get]
func NewReadMeHandler() middlewares.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, current *models.User) {
		writeJSON(w, http.StatusOK, current.Public())
	}
}

// NewReadUserHandler returns a handler fetching one user by id.
// @Summary Get user by id
// @Description Users may read themselves; superusers may read anyone.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User id"
// @Success 200 {object} models.UserPublic
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func NewReadUserHandler(svc UserViewer) middlewares.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, current *models.User) {
		id, err := userIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		user, err := svc.GetForViewer(r.Context(), current, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user.Public())
	}
}

// NewCreateUserHandler returns a handler creating a user.
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body models.UserCreate true "New user"
// @Success 200 {object} models.UserPublic
// @Failure 400 {object} models.ErrorResponse "Email or username taken"
// @Failure 403 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /users/ [post]
func NewCreateUserHandler(svc UserCreator) middlewares.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *models.User) {
		var in models.UserCreate
		if err := decodeBody(r, &in); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := svc.Create(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user.Public())
	}
}

// NewUpdateMeHandler returns a handler updating the current user.
// @Summary Update own user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body models.UserUpdateMe true "Fields to change"
// @Success 200 {object} models.UserPublic
// @Failure 400 {object} models.ErrorResponse "Email or username taken"
// @Failure 422 {object} models.ErrorResponse
// @Router /users/me [patch]
func NewUpdateMeHandler(svc MeUpdater) middlewares.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, current *models.User) {
		var in models.UserUpdateMe
		if err := decodeBody(r, &in); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := svc.UpdateMe(r.Context(), current, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user.Public())
	}
}

// NewUpdatePasswordHandler returns a handler changing the current user's password.
// @Summary Update own password
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body models.UpdatePassword true "Current and new password"
// @Success 200 {object} models.Message
// @Failure 400 {object} models.ErrorResponse "Incorrect or unchanged password"
// @Failure 422 {object} models.ErrorResponse
// @Router /users/me/password [patch]
func NewUpdatePasswordHandler(svc PasswordChanger) middlewares.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, current *models.User) {
		var in models.UpdatePassword
		if err := decodeBody(r, &in); err != nil {
			writeError(w, r, err)
			return
		}

		if err := svc.ChangePassword(r.Context(), current, in.CurrentPassword, in.NewPassword); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, models.Message{Message: "Password updated successfully."})
	}
}

// NewUpdateUserHandler returns a handler applying an admin update.
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User id"
// @Param user body models.UserUpdate true "Fields to change"
// @Success 200 {object} models.UserPublic
// @Failure 400 {object} models.ErrorResponse "Email or username taken"
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /users/{id} [patch]
func NewUpdateUserHandler(svc UserUpdater) middlewares.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *models.User) {
		id, err := userIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var in models.UserUpdate
		if err := decodeBody(r, &in); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := svc.Update(r.Context(), id, in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user.Public())
	}
}

// NewDeleteUserHandler returns a handler deleting a user.
// @Summary Delete user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User id"
// @Success 200 {object} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [delete]
func NewDeleteUserHandler(svc UserDeleter) middlewares.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *models.User) {
		id, err := userIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, models.Message{Message: "User deleted successfully."})
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
