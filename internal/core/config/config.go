package config

import (
	"time"

	"github.com/vietddude/ecosetu/internal/core/worker"
	redisclient "github.com/vietddude/ecosetu/internal/infra/redis"
	"github.com/vietddude/ecosetu/internal/infra/storage/postgres"
	"github.com/vietddude/ecosetu/internal/telemetry"
	"github.com/vietddude/ecosetu/internal/tracking/emitter"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Redis    redisclient.Config   `yaml:"redis"`
	Auth     AuthConfig           `yaml:"auth"`
	Ledger   LedgerConfig         `yaml:"ledger"`
	Events   emitter.Config       `yaml:"events"`
	Auditor  worker.AuditorConfig `yaml:"auditor"`
	Tracing  telemetry.Config     `yaml:"tracing"`
	Logging  LoggingConfig        `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               int           `yaml:"port"`
	HealthPort         int           `yaml:"health_port"`
	GRPCHealthPort     int           `yaml:"grpc_health_port"` // 0 = disabled
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	CORSOrigins        []string      `yaml:"cors_origins"`
}

// DatabaseConfig is the postgres connection plus startup migration switch.
// An empty URL selects in-memory storage.
type DatabaseConfig struct {
	postgres.Config `yaml:",inline"`
	Migrate         *bool `yaml:"migrate"`
}

// ShouldMigrate reports whether migrations run at startup. Defaults to true.
func (c DatabaseConfig) ShouldMigrate() bool {
	return c.Migrate == nil || *c.Migrate
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	// TrustHeaders accepts X-User-ID / X-User-Role without a token. Dev only.
	TrustHeaders bool `yaml:"trust_headers"`
}

// LedgerConfig tunes the ledger service.
type LedgerConfig struct {
	TransitionPolicy  string        `yaml:"transition_policy"` // permissive, strict
	AuthorizeParties  *bool         `yaml:"authorize_parties"`
	AppendMaxAttempts int           `yaml:"append_max_attempts"`
	AppendRetryDelay  time.Duration `yaml:"append_retry_delay"`
	SummaryCacheTTL   time.Duration `yaml:"summary_cache_ttl"`
}

// PartyAuthorization reports whether only parties may act on a transaction. Defaults to true.
func (c LedgerConfig) PartyAuthorization() bool {
	return c.AuthorizeParties == nil || *c.AuthorizeParties
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}
