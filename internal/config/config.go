// Package config defines glvault's configuration surface: server binding,
// backend selection, the crypto secrets required at startup, and the
// optional Postgres/Kafka mirrors for the audit trail.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/genlayerlabs/glvault/pkg/constants"
)

// Config holds the full application configuration, unmarshaled from
// environment variables (prefix GLVAULT_) and an optional config.yaml.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Security SecurityConfig `mapstructure:"security"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // seconds
}

// BackendConfig selects and configures the StorageBackend implementation.
type BackendConfig struct {
	// Kind is one of "memory", "redis", "vault".
	Kind constants.BackendKind `mapstructure:"kind"`
}

// SecurityConfig carries the secrets and timing windows every deployment
// must set: the master encryption key, the HMAC signing secret, the admin
// bearer token, and the relay's replay/staleness windows.
type SecurityConfig struct {
	MasterEncryptionKeyHex string `mapstructure:"master_encryption_key"`
	HMACSecret             string `mapstructure:"hmac_secret"`
	AdminToken             string `mapstructure:"admin_token"`
	RateLimitWindowMs      int64  `mapstructure:"rate_limit_window_ms"`
	MaxRequestAgeMs        int64  `mapstructure:"max_request_age_ms"`

	// masterEncryptionKey is the decoded 32-byte key, populated by Validate.
	masterEncryptionKey []byte
}

// MasterEncryptionKey returns the decoded 32-byte key. Only valid after Validate succeeds.
func (s *SecurityConfig) MasterEncryptionKey() []byte { return s.masterEncryptionKey }

// RateLimitWindow returns the configured quota window as a time.Duration.
func (s *SecurityConfig) RateLimitWindow() time.Duration {
	return time.Duration(s.RateLimitWindowMs) * time.Millisecond
}

// MaxRequestAge returns the configured signature freshness window as a time.Duration.
func (s *SecurityConfig) MaxRequestAge() time.Duration {
	return time.Duration(s.MaxRequestAgeMs) * time.Millisecond
}

// DatabaseConfig configures the optional Postgres audit mirror.
type DatabaseConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   int    `mapstructure:"max_conn_lifetime"`   // minutes
	MaxConnIdleTime   int    `mapstructure:"max_conn_idle_time"`  // minutes
	HealthCheckPeriod int    `mapstructure:"health_check_period"` // seconds
	ConnTimeout       int    `mapstructure:"conn_timeout"`        // seconds
}

// RedisConfig configures the Redis StorageBackend and the nonce guard.
type RedisConfig struct {
	Mode         string   `mapstructure:"mode"`
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	Password     string   `mapstructure:"password"`
	DB           int      `mapstructure:"db"`
	ClusterAddrs []string `mapstructure:"cluster_addrs"`
	PoolSize     int      `mapstructure:"pool_size"`
	MinIdleConns int      `mapstructure:"min_idle_conns"`
	// NonceGuardEnabled turns on the replay-protection nonce cache.
	NonceGuardEnabled bool  `mapstructure:"nonce_guard_enabled"`
	NonceGuardTTLMs   int64 `mapstructure:"nonce_guard_ttl_ms"`
}

// VaultConfig configures the HashiCorp Vault StorageBackend.
type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

// KafkaConfig configures the optional Kafka audit publisher.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// RelayConfig tunes upstream dispatch.
type RelayConfig struct {
	// CredentialParams extends the built-in host-suffix to query-parameter
	// table, so a new upstream can be supported without a code change.
	CredentialParams  map[string]string `mapstructure:"credential_params"`
	UpstreamTimeoutMs int64             `mapstructure:"upstream_timeout_ms"`
}

// UpstreamTimeout returns the configured upstream dispatch timeout.
func (r *RelayConfig) UpstreamTimeout() time.Duration {
	return time.Duration(r.UpstreamTimeoutMs) * time.Millisecond
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// TracingConfig configures the OpenTelemetry/Jaeger exporter.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Validate fails loudly on any missing or malformed required setting,
// so a misconfigured deployment never starts silently degraded.
func (c *Config) Validate() error {
	keyBytes, err := hex.DecodeString(c.Security.MasterEncryptionKeyHex)
	if err != nil || len(keyBytes) != 32 {
		return fmt.Errorf("MASTER_ENCRYPTION_KEY must be 64 hex characters (32 bytes), got %d bytes, err=%v",
			len(c.Security.MasterEncryptionKeyHex)/2, err)
	}
	c.Security.masterEncryptionKey = keyBytes

	if c.Security.HMACSecret == "" {
		return fmt.Errorf("HMAC_SECRET must be set")
	}
	if c.Security.AdminToken == "" {
		return fmt.Errorf("ADMIN_TOKEN must be set")
	}
	if c.Security.RateLimitWindowMs <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_MS must be positive, got %d", c.Security.RateLimitWindowMs)
	}
	if c.Security.MaxRequestAgeMs <= 0 {
		return fmt.Errorf("MAX_REQUEST_AGE_MS must be positive, got %d", c.Security.MaxRequestAgeMs)
	}

	switch c.Backend.Kind {
	case constants.BackendMemory, constants.BackendRedis, constants.BackendVault:
	default:
		return fmt.Errorf("backend.kind must be one of memory, redis, vault; got %q", c.Backend.Kind)
	}
	if c.Backend.Kind == constants.BackendRedis && c.Redis.Host == "" && len(c.Redis.ClusterAddrs) == 0 {
		return fmt.Errorf("redis backend selected but no redis host or cluster_addrs configured")
	}
	if c.Backend.Kind == constants.BackendVault && c.Vault.Address == "" {
		return fmt.Errorf("vault backend selected but vault.address is empty")
	}

	return nil
}
