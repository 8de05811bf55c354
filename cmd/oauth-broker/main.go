package main

// @title           OAuth Broker API
// @version         1.0
// @description     OAuth 2.0 authorization server that brokers an upstream OpenID Connect provider and protects an MCP tool server.

// @contact.name   OAuth Broker OSS
// @contact.url    https://github.com/custodia-labs/oauth-broker/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath  /
// @schemes   http https

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	_ "github.com/custodia-labs/oauth-broker/docs"
	"github.com/custodia-labs/oauth-broker/internal/adapters/driven/auth"
	"github.com/custodia-labs/oauth-broker/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/oauth-broker/internal/adapters/driven/redis"
	"github.com/custodia-labs/oauth-broker/internal/adapters/driven/upstream"
	"github.com/custodia-labs/oauth-broker/internal/adapters/driving/http"
	"github.com/custodia-labs/oauth-broker/internal/adapters/driving/mcp"
	"github.com/custodia-labs/oauth-broker/internal/config"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
	"github.com/custodia-labs/oauth-broker/internal/core/services"
	"github.com/custodia-labs/oauth-broker/internal/logging"
	"github.com/custodia-labs/oauth-broker/internal/worker"
)

var version = "dev"

func main() {
	log.Printf("oauth-broker %s starting", version)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ===== Key-value store (Redis if configured, otherwise PostgreSQL) =====
	var store driven.KVStore
	var sweeper *worker.Sweeper
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		redisClient, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		store = redisadapter.NewKVStore(redisClient)
		log.Println("Using Redis key-value store")
	} else {
		log.Println("Connecting to PostgreSQL...")
		dbCfg := postgres.DefaultConfig(cfg.DatabaseURL)
		dbCfg.Logger = logger
		db, err := postgres.Connect(ctx, dbCfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		pgStore := postgres.NewKVStore(db)
		store = pgStore
		log.Println("Using PostgreSQL key-value store")

		// Postgres rows do not expire on their own
		sweeper = worker.NewSweeper(worker.SweeperConfig{
			Store:    pgStore,
			Lock:     postgres.NewAdvisoryLock(db),
			Logger:   logger,
			Interval: cfg.SweepInterval,
		})
	}

	// ===== Driven adapters =====
	sealer, err := auth.NewSealerFromHex(cfg.TokenEncryptionKey)
	if err != nil {
		log.Fatalf("Invalid TOKEN_ENCRYPTION_KEY: %v", err)
	}

	httpClient := &nethttp.Client{Timeout: cfg.UpstreamTimeout}
	provider := upstream.NewProvider(upstream.Config{
		ClientID:         cfg.AccessClientID,
		ClientSecret:     cfg.AccessClientSecret,
		AuthorizationURL: cfg.AccessAuthorizationURL,
		TokenURL:         cfg.AccessTokenURL,
		RedirectURL:      cfg.CallbackURL(),
		Timeout:          cfg.UpstreamTimeout,
		HTTPClient:       httpClient,
		Logger:           logger,
	})
	verifier := upstream.NewVerifier(upstream.VerifierConfig{
		JWKSURL:  cfg.AccessJWKSURL,
		Audience: cfg.AccessClientID,
		Issuer:   cfg.AccessIssuer,
		Cache:    upstream.NewJWKSCache(httpClient, cfg.JWKSCacheTTL),
	})

	// ===== Services =====
	broker, err := services.NewBroker(services.BrokerConfig{
		Store:            store,
		Upstream:         provider,
		Verifier:         verifier,
		Hasher:           auth.NewHasher(),
		Sealer:           sealer,
		CookieKey:        []byte(cfg.CookieEncryptionKey),
		BaseURL:          cfg.BaseURL,
		ApprovalRequired: cfg.ApprovalRequired,
		Logger:           logger,
	})
	if err != nil {
		log.Fatalf("Failed to create broker: %v", err)
	}
	log.Printf("Broker config: base_url=%s, approval_required=%t", cfg.BaseURL, cfg.ApprovalRequired)

	if sweeper != nil {
		if err := sweeper.Start(ctx); err != nil {
			log.Fatalf("Failed to start sweeper: %v", err)
		}
		defer sweeper.Stop()
		log.Printf("Expired entry sweeper started (interval=%s)", cfg.SweepInterval)
	}

	// ===== Driving adapters =====
	tools := mcp.NewServer(mcp.Config{
		Name:    "oauth-broker",
		Version: version,
		Logger:  logger,
	})

	server := http.NewServer(
		http.Config{
			Host:        cfg.Host,
			Port:        cfg.Port,
			Version:     version,
			BaseURL:     cfg.BaseURL,
			CORSOrigins: cfg.CORSOrigins,
			Logger:      logger,
		},
		broker,
		broker,
		tools.Handler(),
		store,
	)

	log.Printf("API server starting on %s:%d", cfg.Host, cfg.Port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
