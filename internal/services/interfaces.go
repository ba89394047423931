package services

import (
	"context"
	"time"

	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source=interfaces.go -destination=interfaces_mock.go -package=services

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)              // Returns nil when absent
	GetByUsername(ctx context.Context, username string) (*models.User, error) // Returns nil when absent
	GetByEmail(ctx context.Context, email string) (*models.User, error)       // Returns nil when absent
	List(ctx context.Context, skip, limit int) ([]models.User, error)         // Zero limit means unbounded
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) // Returns nil when absent
	Delete(ctx context.Context, id int64) (bool, error)
}

// ExistenceProber runs the combined uniqueness probe against storage.
type ExistenceProber interface {
	ExistsAny(ctx context.Context, fields map[string]any, excludeID *int64) (bool, error)
}

// UniqueChecker decides whether candidate values may be written.
type UniqueChecker interface {
	IsUnique(ctx context.Context, candidates map[string]any, uniqueFields []string, excludeID *int64) (bool, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// TokenIssuer issues and verifies bearer tokens.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
	Verify(ctx context.Context, tokenString string) (string, error)
}

// Publisher emits user lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, userID int64)
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}
