package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidConfig is returned when a configuration value is missing or cannot
// be parsed.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the application configuration.
type Config struct {
	// Application
	AppHost  string
	AppPort  string
	LogLevel string
	APIV1Str string

	// PostgreSQL
	DatabaseURL    string
	PGMaxOpenConns int
	PGMaxIdleConns int

	// Security
	SecretKey          string
	SecretKeyGenerated bool
	AccessTokenExpire  time.Duration
	BcryptCost         int

	// Bootstrap
	FirstSuperuser         string
	FirstSuperuserPassword string

	// Kafka; empty brokers disable event publishing
	KafkaBrokers []string
	KafkaTopic   string
}

// Addr returns the listen address of the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.AppHost, c.AppPort)
}

// Load reads environment variables from the file at path, if present, and
// then from the process environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}
	getInt := func(key string, defaultValue int) (int, error) {
		raw := getEnv(key, strconv.Itoa(defaultValue))
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, raw)
		}
		return v, nil
	}

	var (
		cfg Config
		err error
	)

	// Application config
	cfg.AppHost = getEnv("APP_HOST", "localhost")
	cfg.AppPort = getEnv("APP_PORT", "8080")
	cfg.LogLevel = getEnv("APP_LOG_LEVEL", "info")
	cfg.APIV1Str = strings.TrimRight(getEnv("API_V1_STR", "/api/v1"), "/")

	// PostgreSQL config
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	if cfg.DatabaseURL == "" {
		port, err := getInt("POSTGRES_PORT", 5432)
		if err != nil {
			return Config{}, err
		}
		cfg.DatabaseURL = buildDSN(
			getEnv("POSTGRES_USER", "postgres"),
			getEnv("POSTGRES_PASSWORD", ""),
			getEnv("POSTGRES_HOST", "localhost"),
			port,
			getEnv("POSTGRES_DB", "app"),
		)
	}
	if cfg.PGMaxOpenConns, err = getInt("POSTGRES_MAX_OPEN_CONNS", 16); err != nil {
		return Config{}, err
	}
	if cfg.PGMaxIdleConns, err = getInt("POSTGRES_MAX_IDLE_CONNS", 8); err != nil {
		return Config{}, err
	}

	// Security config
	cfg.SecretKey = getEnv("SECRET_KEY", "")
	if cfg.SecretKey == "" {
		if cfg.SecretKey, err = randomKey(); err != nil {
			return Config{}, err
		}
		cfg.SecretKeyGenerated = true
	}
	minutes, err := getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24*8)
	if err != nil {
		return Config{}, err
	}
	if minutes <= 0 {
		return Config{}, fmt.Errorf("%w: ACCESS_TOKEN_EXPIRE_MINUTES must be positive", ErrInvalidConfig)
	}
	cfg.AccessTokenExpire = time.Duration(minutes) * time.Minute
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", bcrypt.DefaultCost); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("%w: BCRYPT_COST must be between %d and %d", ErrInvalidConfig, bcrypt.MinCost, bcrypt.MaxCost)
	}

	// Bootstrap config
	cfg.FirstSuperuser = getEnv("FIRST_SUPERUSER", "")
	cfg.FirstSuperuserPassword = getEnv("FIRST_SUPERUSER_PASSWORD", "")
	if cfg.FirstSuperuser == "" || cfg.FirstSuperuserPassword == "" {
		return Config{}, fmt.Errorf("%w: FIRST_SUPERUSER and FIRST_SUPERUSER_PASSWORD are required", ErrInvalidConfig)
	}

	// Kafka config
	cfg.KafkaBrokers = splitList(getEnv("KAFKA_BROKERS", ""))
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "user-events")

	return cfg, nil
}

func buildDSN(user, password, host string, port int, db string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// randomKey returns a 32-byte url-safe random key.
func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
