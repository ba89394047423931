package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-accounts/internal/logger"
	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/sbilibin2017/gw-accounts/internal/services"
)

//go:generate mockgen -source=auth.go -destination=auth_mock.go -package=middlewares

// Tokener extracts the bearer token from a request.
type Tokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
}

// IdentityResolver maps a token to the active user it was issued for.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, tokenString string) (*models.User, error)
}

// AuthedHandler is an HTTP handler that receives the resolved caller.
type AuthedHandler func(w http.ResponseWriter, r *http.Request, current *models.User)

// Authenticated adapts an AuthedHandler into an http.HandlerFunc that first
// resolves the caller from the bearer token.
func Authenticated(tokener Tokener, resolver IdentityResolver) func(AuthedHandler) http.HandlerFunc {
	return func(next AuthedHandler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolve(w, r, tokener, resolver)
			if !ok {
				return
			}
			next(w, r, user)
		}
	}
}

// Superuser is Authenticated restricted to superusers.
func Superuser(tokener Tokener, resolver IdentityResolver) func(AuthedHandler) http.HandlerFunc {
	return func(next AuthedHandler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolve(w, r, tokener, resolver)
			if !ok {
				return
			}
			if err := services.RequireSuperuser(user); err != nil {
				logger.FromContext(r.Context()).Infow("superuser required", "user_id", user.ID)
				writeDetail(w, http.StatusForbidden, "The user doesn't have enough privileges.")
				return
			}
			next(w, r, user)
		}
	}
}

func resolve(w http.ResponseWriter, r *http.Request, tokener Tokener, resolver IdentityResolver) (*models.User, bool) {
	ctx := r.Context()

	tokenString, err := tokener.GetTokenFromRequest(ctx, r)
	if err != nil {
		logger.FromContext(ctx).Infow("authorization failed", "err", err)
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return nil, false
	}

	user, err := resolver.ResolveIdentity(ctx, tokenString)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, services.ErrUnauthorized):
		logger.FromContext(ctx).Infow("authorization failed", "err", err)
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials.")
	case errors.Is(err, services.ErrUserNotFound):
		writeDetail(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, services.ErrInactiveUser):
		writeDetail(w, http.StatusBadRequest, "Inactive user.")
	default:
		logger.FromContext(ctx).Errorw("failed to resolve identity", "err", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
	return nil, false
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Detail: detail})
}
