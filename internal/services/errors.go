package services

import "errors"

// Error kinds produced by the services. Handlers map them to status codes.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUserAlreadyExists  = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("could not validate credentials")
	ErrForbidden          = errors.New("not enough privileges")
	ErrUserNotFound       = errors.New("user not found")
	ErrInactiveUser       = errors.New("inactive user")
	ErrWrongPassword      = errors.New("incorrect password")
	ErrSamePassword       = errors.New("new password equals the current one")
)
