package jwt

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers every verification failure: bad signature,
	// malformed structure, missing or passed expiry, missing subject.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoToken is returned when the request carries no bearer token.
	ErrNoToken = errors.New("authorization header missing")
	// ErrBadAuthorizationHeader is returned for non-bearer schemes.
	ErrBadAuthorizationHeader = errors.New("invalid authorization header format")
)

// JWT issues and verifies HS256-signed access tokens.
type JWT struct {
	secretKey []byte           // Secret key for signing tokens
	exp       time.Duration    // Default token lifetime
	now       func() time.Time // Clock used for issuing and verifying
}

// Opt configures a JWT.
type Opt func(*JWT)

// WithSecretKey sets the signing secret.
func WithSecretKey(secret string) Opt {
	return func(j *JWT) {
		j.secretKey = []byte(secret)
	}
}

// WithExpiration sets the token lifetime reported by Expiration.
func WithExpiration(exp time.Duration) Opt {
	return func(j *JWT) {
		j.exp = exp
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Opt {
	return func(j *JWT) {
		j.now = now
	}
}

// New creates a new JWT instance. Lifetime defaults to 8 days.
func New(opts ...Opt) *JWT {
	j := &JWT{
		exp: 8 * 24 * time.Hour,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Expiration returns the default token lifetime.
func (j *JWT) Expiration() time.Duration {
	return j.exp
}

// Issue signs a token asserting subject that expires ttl from now.
func (j *JWT) Issue(subject string, ttl time.Duration) (string, error) {
	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// Verify checks the signature and expiry of tokenString and returns its
// subject. Expiry is strict: a token is rejected once now >= exp.
func (j *JWT) Verify(ctx context.Context, tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(token *jwt.Token) (interface{}, error) {
			return j.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// GetTokenFromRequest extracts the token string from the Authorization header
func (j *JWT) GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoToken
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrBadAuthorizationHeader
	}

	return parts[1], nil
}
