/**
 * @description
 * This is the main entry point for the lumentix backend. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * the Stellar Horizon client, message broker, repositories, the core application service,
 * the escrow watcher, and the HTTP server. It wires everything together and starts the service.
 *
 * A missing escrow wallet address is a degraded-but-bootable state (every confirmation
 * will be rejected until it is configured), while a missing JWT secret is fatal because
 * every protected route depends on it.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/joho/godotenv: Loads .env files during local development.
 * - github.com/redis/go-redis/v9: Redis client for confirm-endpoint rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/horizon: Client for the Stellar Horizon API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/TomikeDS/lumentix-backend/internal/api"
	"github.com/TomikeDS/lumentix-backend/internal/app"
	"github.com/TomikeDS/lumentix-backend/internal/config"
	"github.com/TomikeDS/lumentix-backend/internal/store"
	"github.com/TomikeDS/lumentix-backend/pkg/horizon"
	"github.com/TomikeDS/lumentix-backend/pkg/rabbitmq"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if strings.TrimSpace(cfg.EscrowWalletAddress) == "" {
		log.Println("level=warn component=bootstrap msg=\"escrow wallet address not configured; contribution confirmations will be rejected\" env=ESCROW_WALLET_ADDRESS")
	}

	log.Printf("level=info component=bootstrap msg=\"starting lumentix-backend\" port=%s horizon=%s", cfg.ServerPort, cfg.HorizonAPIBaseURL)

	// Establish a connection pool to the PostgreSQL database. The pool reaches
	// PostgreSQL through PgBouncer in transaction pooling mode, which cannot
	// run prepared statements, so force the simple protocol.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish contribution lifecycle events.
	// This service only needs to publish, so a failed connection degrades to a
	// no-op fallback instead of blocking startup.
	var eventProducer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		eventProducer = rabbitProducer
	}

	// Initialize the client for the Stellar Horizon API.
	horizonClient := horizon.NewClient(cfg.HorizonAPIBaseURL)

	var redisClient *redis.Client
	if cfg.ConfirmRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; confirm rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; confirm rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; confirm rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies. The
	// repository doubles as the audit recorder; audit writes share the pool
	// but never join a settlement transaction.
	sponsorshipService := app.NewService(
		repository,
		repository,
		horizonClient,
		eventProducer,
		cfg.EscrowWalletAddress,
		cfg.SettlementEventExchange,
	)

	var limiter *app.RedisRateLimiter
	if redisClient != nil {
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	// Initialize the API handlers.
	sponsorshipHandlers := api.NewSponsorshipHandlers(sponsorshipService)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/api/v1", api.SponsorshipRoutes(sponsorshipHandlers, cfg.JWTSecret, limiter, cfg.ConfirmRateLimitPerMinute))

	// Start the escrow watcher so payments sent without a confirm call still
	// settle. Without a wallet address there is nothing to watch.
	watcher := app.NewEscrowWatcher(sponsorshipService, cfg.EscrowWatchSchedule, cfg.EscrowWatchPageLimit)
	if strings.TrimSpace(cfg.EscrowWalletAddress) != "" {
		watcher.Start()
	}

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	// Let any in-flight escrow sweep finish before tearing the server down.
	<-watcher.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
