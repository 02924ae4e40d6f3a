package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/ecosetu/internal/core/ledger"
	"github.com/vietddude/ecosetu/internal/tracking/emitter"
)

// Load reads configuration from a YAML file. A .env file next to the working
// directory, if present, is loaded first so ${VARS} in the YAML can use it.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.HealthPort == 0 {
		cfg.Server.HealthPort = 8081
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.RateLimitPerMinute == 0 {
		cfg.Server.RateLimitPerMinute = 120
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173"}
	}

	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 5 * time.Second
	}

	if cfg.Ledger.TransitionPolicy == "" {
		cfg.Ledger.TransitionPolicy = ledger.PolicyPermissive
	}
	if cfg.Ledger.AppendMaxAttempts == 0 {
		cfg.Ledger.AppendMaxAttempts = 5
	}
	if cfg.Ledger.AppendRetryDelay == 0 {
		cfg.Ledger.AppendRetryDelay = 10 * time.Millisecond
	}
	if cfg.Ledger.SummaryCacheTTL == 0 {
		cfg.Ledger.SummaryCacheTTL = time.Minute
	}

	if cfg.Events.Sink == "" {
		cfg.Events.Sink = emitter.SinkLog
	}
	if cfg.Auditor.BatchSize == 0 {
		cfg.Auditor.BatchSize = 100
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "none"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "ecosetu-ledger"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate rejects settings the service cannot start with.
func (c *AppConfig) Validate() error {
	if _, err := ledger.PolicyByName(c.Ledger.TransitionPolicy); err != nil {
		return fmt.Errorf("ledger.transition_policy: %w", err)
	}
	if c.Auth.JWTSecret == "" && !c.Auth.TrustHeaders {
		return fmt.Errorf("auth: jwt_secret is required unless trust_headers is enabled")
	}
	if c.Events.Sink == emitter.SinkKafka && (len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "") {
		return fmt.Errorf("events: kafka sink needs brokers and topic")
	}
	return nil
}
