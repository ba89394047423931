package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sbilibin2017/gw-accounts/internal/logger"
	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/sbilibin2017/gw-accounts/internal/services"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Optional fields validate as their value; null and absent count as empty.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if o, ok := field.Interface().(models.Optional[string]); ok && o.Value != nil {
			return *o.Value
		}
		return nil
	}, models.Optional[string]{})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorw("failed to encode response", "err", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}

// writeError maps a service error to its HTTP status and message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrUserAlreadyExists):
		writeDetail(w, http.StatusBadRequest, "The user with the given email or username already exists.")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeDetail(w, http.StatusBadRequest, "Incorrect username or password.")
	case errors.Is(err, services.ErrInactiveUser):
		writeDetail(w, http.StatusBadRequest, "Inactive user.")
	case errors.Is(err, services.ErrWrongPassword):
		writeDetail(w, http.StatusBadRequest, "Incorrect password.")
	case errors.Is(err, services.ErrSamePassword):
		writeDetail(w, http.StatusBadRequest, "New password cannot be the same as the current one.")
	case errors.Is(err, services.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials.")
	case errors.Is(err, services.ErrForbidden):
		writeDetail(w, http.StatusForbidden, "The user doesn't have enough privileges.")
	case errors.Is(err, services.ErrUserNotFound):
		writeDetail(w, http.StatusNotFound, "User not found.")
	default:
		logger.FromContext(r.Context()).Errorw("internal server error", "err", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody decodes a JSON body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", services.ErrValidation)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: failed on %q", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: failed on %q=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(msgs, "; "))
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user id", services.ErrValidation)
	}
	return id, nil
}
