package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	id "visitledger/pkg/domain"
)

// DefaultJWTSigningKey is accepted only outside production; Validate rejects it
// when Environment is "production".
const DefaultJWTSigningKey = "dev-secret-key-change-in-production"

// Server captures process-level configuration.
type Server struct {
	Addr        string `env:"VISITLEDGER_ADDR" envDefault:":8080"`
	Environment string `env:"VISITLEDGER_ENV" envDefault:"development"`
	OwnerHex    string `env:"VISITLEDGER_OWNER"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP       HTTP
	JWT        JWT
	Database   Database
	Redis      RedisConfig
	Kafka      Kafka
	Collection Collection
	Events     Events

	// Owner is OwnerHex parsed by Validate.
	Owner id.Address `env:"-"`
}

// HTTP bounds connections accepted by the API server.
type HTTP struct {
	ReadHeaderTimeout time.Duration `env:"VISITLEDGER_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"VISITLEDGER_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"VISITLEDGER_HTTP_WRITE_TIMEOUT" envDefault:"45s"`
	IdleTimeout       time.Duration `env:"VISITLEDGER_HTTP_IDLE_TIMEOUT" envDefault:"2m"`
}

// JWT configures the bearer tokens that identify callers.
type JWT struct {
	SigningKey string        `env:"VISITLEDGER_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string        `env:"VISITLEDGER_JWT_ISSUER" envDefault:"visitledger"`
	Audience   string        `env:"VISITLEDGER_JWT_AUDIENCE" envDefault:"visitledger-api"`
	TTL        time.Duration `env:"VISITLEDGER_JWT_TTL" envDefault:"1h"`
}

// Database selects the PostgreSQL stores when URL is set.
type Database struct {
	URL          string `env:"VISITLEDGER_DATABASE_URL"`
	MaxOpenConns int    `env:"VISITLEDGER_DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int    `env:"VISITLEDGER_DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
}

// RedisConfig enables the visit card read cache when URL is set.
type RedisConfig struct {
	URL          string        `env:"VISITLEDGER_REDIS_URL"`
	PoolSize     int           `env:"VISITLEDGER_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"VISITLEDGER_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"VISITLEDGER_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"VISITLEDGER_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"VISITLEDGER_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka routes ledger events to a topic when Brokers is set.
type Kafka struct {
	Brokers    []string `env:"VISITLEDGER_KAFKA_BROKERS" envSeparator:","`
	Topic      string   `env:"VISITLEDGER_KAFKA_TOPIC" envDefault:"visitledger.events"`
	Partitions int32    `env:"VISITLEDGER_KAFKA_PARTITIONS" envDefault:"1"`
}

// Collection describes the asset catalog.
type Collection struct {
	URITemplate string `env:"VISITLEDGER_COLLECTION_URI" envDefault:"ipfs://collection/{id}.json"`
	Size        int    `env:"VISITLEDGER_COLLECTION_SIZE" envDefault:"9"`
	Gateway     string `env:"VISITLEDGER_IPFS_GATEWAY" envDefault:"https://ipfs.io/ipfs/"`
}

// Events sizes the asynchronous event buffer.
type Events struct {
	BufferSize int `env:"VISITLEDGER_EVENT_BUFFER" envDefault:"256"`
}

// FromEnv loads and validates configuration from environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules and parses the owner address.
func (c *Server) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OwnerHex) == "" {
		errs = append(errs, errors.New("VISITLEDGER_OWNER is required"))
	} else if owner, err := id.ParseAddress(c.OwnerHex); err != nil {
		errs = append(errs, fmt.Errorf("VISITLEDGER_OWNER: %w", err))
	} else if owner.IsZero() {
		errs = append(errs, errors.New("VISITLEDGER_OWNER must not be the zero address"))
	} else {
		c.Owner = owner
	}
	if c.Environment == "production" && c.JWT.SigningKey == DefaultJWTSigningKey {
		errs = append(errs, errors.New("VISITLEDGER_JWT_SIGNING_KEY must be set in production"))
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"VISITLEDGER_HTTP_READ_HEADER_TIMEOUT", c.HTTP.ReadHeaderTimeout},
		{"VISITLEDGER_HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout},
		{"VISITLEDGER_HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout},
		{"VISITLEDGER_HTTP_IDLE_TIMEOUT", c.HTTP.IdleTimeout},
	} {
		if t.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", t.name))
		}
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("VISITLEDGER_JWT_TTL must be positive"))
	}
	if c.Collection.Size <= 0 {
		errs = append(errs, errors.New("VISITLEDGER_COLLECTION_SIZE must be positive"))
	}
	if c.Events.BufferSize <= 0 {
		errs = append(errs, errors.New("VISITLEDGER_EVENT_BUFFER must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("VISITLEDGER_KAFKA_TOPIC is required with brokers"))
	}
	return errors.Join(errs...)
}
