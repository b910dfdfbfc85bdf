package config

import (
	"context"
	"strings"

	"github.com/spf13/viper"

	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// LoadConfig loads configuration from an optional config.yaml, then
// overlays environment variables prefixed GLVAULT_, then validates the
// result. Any missing or malformed required setting fails the load.
func LoadConfig(log logger.Logger) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)

	v.SetDefault("backend.kind", "memory")

	v.SetDefault("security.rate_limit_window_ms", 60000)
	v.SetDefault("security.max_request_age_ms", 30000)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.nonce_guard_enabled", false)
	v.SetDefault("redis.nonce_guard_ttl_ms", 60000)

	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)

	v.SetDefault("relay.upstream_timeout_ms", 15000)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.audit_topic", "glvault.audit")
	v.SetDefault("kafka.required_acks", 1)
	v.SetDefault("kafka.batch_size", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "glvault")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 0.1)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/glvault/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("GLVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows, so keys without a
	// default are bound to their environment variables explicitly.
	for _, key := range []string{
		"security.master_encryption_key", "security.hmac_secret", "security.admin_token",
		"redis.host", "redis.password", "redis.db", "redis.cluster_addrs", "redis.min_idle_conns",
		"vault.address", "vault.token",
		"database.host", "database.port", "database.user", "database.password", "database.database",
		"database.max_conn_lifetime", "database.max_conn_idle_time", "database.health_check_period", "database.conn_timeout",
		"kafka.brokers", "kafka.write_timeout", "kafka.read_timeout", "kafka.batch_timeout",
		"log.output_path", "tracing.jaeger_endpoint",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, vaulterr.BackendFail("failed to unmarshal config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, vaulterr.BackendFail(err.Error())
	}

	log.Info(context.Background(), "configuration loaded", logger.Fields{
		"backend": string(cfg.Backend.Kind),
		"port":    cfg.Server.Port,
	})

	return &cfg, nil
}
