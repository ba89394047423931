package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/sbilibin2017/gw-accounts/internal/services"
)

//go:generate mockgen -source=login.go -destination=login_mock.go -package=handlers

// Loginer defines the interface that the login service must implement.
type Loginer interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// LoginForm is the OAuth2 password grant form.
type LoginForm struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	GrantType string `json:"grant_type" validate:"omitempty,eq=password"`
}

// NewLoginHandler returns an HTTP handler for the OAuth2 password grant.
// @Summary Login for access token
// @Description OAuth2 compatible token login, get an access token for future requests
// @Tags login
// @Accept x-www-form-urlencoded
// @Produce json
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param grant_type formData string false "Must be 'password' when present"
// @Success 200 {object} models.Token "Access token"
// @Failure 400 {object} models.ErrorResponse "Incorrect username or password / inactive user"
// @Failure 422 {object} models.ErrorResponse "Malformed form"
// @Router /login/access-token [post]
func NewLoginHandler(svc Loginer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid form body", services.ErrValidation))
			return
		}

		form := LoginForm{
			Username:  r.PostForm.Get("username"),
			Password:  r.PostForm.Get("password"),
			GrantType: r.PostForm.Get("grant_type"),
		}
		if err := validateStruct(form); err != nil {
			writeError(w, r, err)
			return
		}

		token, err := svc.Login(r.Context(), form.Username, form.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, models.Token{
			AccessToken: token,
			TokenType:   "bearer",
		})
	}
}
