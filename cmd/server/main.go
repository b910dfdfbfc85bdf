package main

import (
	"context"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domainservice "github.com/genlayerlabs/glvault/internal/domain/service"

	"github.com/genlayerlabs/glvault/internal/application/service"
	"github.com/genlayerlabs/glvault/internal/config"
	"github.com/genlayerlabs/glvault/internal/infrastructure/audit"
	"github.com/genlayerlabs/glvault/internal/infrastructure/auth"
	"github.com/genlayerlabs/glvault/internal/infrastructure/crypto"
	"github.com/genlayerlabs/glvault/internal/infrastructure/monitoring"
	"github.com/genlayerlabs/glvault/internal/infrastructure/nonceguard"
	"github.com/genlayerlabs/glvault/internal/infrastructure/persistence/memory"
	pgbackend "github.com/genlayerlabs/glvault/internal/infrastructure/persistence/postgres"
	redisbackend "github.com/genlayerlabs/glvault/internal/infrastructure/persistence/redis"
	"github.com/genlayerlabs/glvault/internal/interfaces/http/handlers"
	"github.com/genlayerlabs/glvault/internal/interfaces/http/router"
	"github.com/genlayerlabs/glvault/pkg/constants"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

func main() {
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info", Format: "json"})
	if err != nil {
		log.Fatalf("failed to create startup logger: %v", err)
	}

	cfg, err := config.LoadConfig(startupLogger)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	tracer, err := monitoring.NewTracingManager(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(context.Background(), "failed to initialize tracing", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	}()

	metrics := monitoring.NewMetrics()

	backend, closeBackend := buildStorageBackend(cfg, appLogger)
	defer closeBackend()

	cryptoSvc := crypto.NewAESGCMService(cfg.Security.MasterEncryptionKey(), []byte(cfg.Security.HMACSecret))

	credentialStore := service.NewCredentialStore(backend, cryptoSvc, appLogger, cfg.Security.RateLimitWindow())

	auditLog := buildAuditLog(cfg, backend, appLogger)

	authenticator := auth.NewAuthenticator(cryptoSvc, cfg.Security.AdminToken, cfg.Security.MaxRequestAge())

	var nonceGuard *nonceguard.Guard
	if cfg.Redis.NonceGuardEnabled {
		nonceGuard = wireNonceGuard(cfg, appLogger)
	}

	healthHandler := handlers.NewHealthHandler(credentialStore, appLogger)
	relayHandler := handlers.NewRelayHandler(authenticator, credentialStore, auditLog, metrics, appLogger, nonceGuard, handlers.RelayOptions{
		CredentialParams: cfg.Relay.CredentialParams,
		UpstreamTimeout:  cfg.Relay.UpstreamTimeout(),
	})
	adminHandler := handlers.NewAdminHandler(credentialStore, auditLog)

	r := router.NewRouter(cfg, appLogger, healthHandler, relayHandler, adminHandler, authenticator)

	if err := r.Start(); err != nil {
		appLogger.Fatal(context.Background(), "http server failed", err)
	}
}

// buildStorageBackend constructs the StorageBackend selected by
// cfg.Backend.Kind and returns a cleanup function for its resources.
func buildStorageBackend(cfg *config.Config, log logger.Logger) (domainservice.StorageBackend, func()) {
	switch cfg.Backend.Kind {
	case constants.BackendRedis:
		conn := redisbackend.NewRedisConnection(&redisbackend.Config{
			Mode:         redisbackend.ConnectionMode(cfg.Redis.Mode),
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			ClusterAddrs: cfg.Redis.ClusterAddrs,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log)
		if err := conn.Connect(); err != nil {
			log.Fatal(context.Background(), "failed to connect to redis", err)
		}
		return redisbackend.NewBackend(conn), func() { _ = conn.Close() }

	case constants.BackendVault:
		vb, err := crypto.NewVaultBackend(crypto.VaultConfig{
			Address:   cfg.Vault.Address,
			Token:     cfg.Vault.Token,
			MountPath: cfg.Vault.MountPath,
		}, log)
		if err != nil {
			log.Fatal(context.Background(), "failed to connect to vault", err)
		}
		return vb, func() { _ = vb.Close() }

	default:
		return memory.NewBackend(), func() {}
	}
}

// buildAuditLog wires the in-backend audit trail plus any enabled mirrors.
func buildAuditLog(cfg *config.Config, backend domainservice.StorageBackend, log logger.Logger) domainservice.AuditLog {
	var mirrors []audit.Mirror

	if cfg.Database.Enabled {
		db, err := pgbackend.NewDBConnection(context.Background(), pgbackend.Config{
			Host:              cfg.Database.Host,
			Port:              cfg.Database.Port,
			User:              cfg.Database.User,
			Password:          cfg.Database.Password,
			Database:          cfg.Database.Database,
			SSLMode:           cfg.Database.SSLMode,
			MaxConns:          cfg.Database.MaxConns,
			MinConns:          cfg.Database.MinConns,
			MaxConnLifetime:   time.Duration(cfg.Database.MaxConnLifetime) * time.Minute,
			MaxConnIdleTime:   time.Duration(cfg.Database.MaxConnIdleTime) * time.Minute,
			HealthCheckPeriod: time.Duration(cfg.Database.HealthCheckPeriod) * time.Second,
			ConnTimeout:       time.Duration(cfg.Database.ConnTimeout) * time.Second,
		}, log)
		if err != nil {
			log.Fatal(context.Background(), "failed to connect to postgres", err)
		}
		pgMirror, err := audit.NewPostgresMirror(db.Gorm())
		if err != nil {
			log.Fatal(context.Background(), "failed to initialize postgres audit mirror", err)
		}
		mirrors = append(mirrors, pgMirror)
	}

	if cfg.Kafka.Enabled {
		kafkaMirror := audit.NewKafkaPublisher(audit.KafkaConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.AuditTopic,
			WriteTimeout:  cfg.Kafka.WriteTimeout,
			ReadTimeout:   cfg.Kafka.ReadTimeout,
			RequiredAcks:  cfg.Kafka.RequiredAcks,
			BatchSize:     cfg.Kafka.BatchSize,
			BatchTimeout:  cfg.Kafka.BatchTimeout,
			SigningSecret: cfg.Security.HMACSecret,
		}, log)
		mirrors = append(mirrors, kafkaMirror)
	}

	idGen := func() (string, error) { return crypto.RandomHex(16) }
	return audit.NewKVLog(backend, idGen, log, mirrors...)
}

// wireNonceGuard builds the replay-protection guard against its own Redis
// client. It requires a standalone redis.Client; cluster/sentinel
// deployments skip the guard and log why.
func wireNonceGuard(cfg *config.Config, log logger.Logger) *nonceguard.Guard {
	conn := redisbackend.NewRedisConnection(&redisbackend.Config{
		Mode:         redisbackend.ConnectionMode(cfg.Redis.Mode),
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		ClusterAddrs: cfg.Redis.ClusterAddrs,
	}, log)
	if err := conn.Connect(); err != nil {
		log.Error(context.Background(), "nonce guard redis connection failed, replay protection disabled", err)
		return nil
	}
	client, ok := conn.GetClient().(*goredis.Client)
	if !ok {
		log.Warn(context.Background(), "nonce guard requires standalone redis, replay protection disabled")
		return nil
	}
	return nonceguard.NewGuard(client, time.Duration(cfg.Redis.NonceGuardTTLMs)*time.Millisecond)
}
