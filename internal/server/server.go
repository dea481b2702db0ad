// Package server assembles the research engine: configuration, storage,
// providers, services, routes and the serve/shutdown lifecycle.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/talentforge/research-engine/internal/api"
	"github.com/talentforge/research-engine/internal/config"
	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/auth"
	"github.com/talentforge/research-engine/internal/services/cache"
	"github.com/talentforge/research-engine/internal/services/circuitbreaker"
	"github.com/talentforge/research-engine/internal/services/database"
	"github.com/talentforge/research-engine/internal/services/invoker"
	"github.com/talentforge/research-engine/internal/services/middleware"
	"github.com/talentforge/research-engine/internal/services/providers"
	"github.com/talentforge/research-engine/internal/services/research"
	"github.com/talentforge/research-engine/internal/services/usage"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const drainTimeout = 30 * time.Second

// Server is one research engine instance
type Server struct {
	config      *config.Config
	app         *fiber.App
	redis       *redis.Client
	db          *database.DB
	analyticsDB *database.DB
	runner      *research.Runner
	usageWorker *usage.Worker
}

// New creates a server from configuration. cfg must not be nil.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create config")
	}
	return &Server{config: cfg}
}

// Run starts the server and blocks until shutdown
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	s.app = createFiberApp(s.config)

	if err := s.initializeInfrastructure(); err != nil {
		return err
	}
	defer s.closeInfrastructure()

	if err := s.setupRoutes(); err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	fmt.Printf("Research engine starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	return s.shutdown()
}

// shutdown stops listening, then drains background research jobs and the
// usage worker so in-flight deep continuations can land in the cache.
func (s *Server) shutdown() error {
	fiberlog.Info("Server shutting down gracefully...")

	g := errgroup.Group{}
	g.Go(func() error {
		return s.app.ShutdownWithTimeout(drainTimeout)
	})
	g.Go(func() error {
		if s.runner != nil {
			s.runner.Drain(drainTimeout)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	if s.usageWorker != nil {
		s.usageWorker.Stop()
	}

	fiberlog.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) initializeInfrastructure() error {
	redisClient, err := createRedisClient(s.config)
	if err != nil {
		return fmt.Errorf("failed to create Redis client: %w", err)
	}
	s.redis = redisClient

	if s.config.Database != nil {
		db, err := database.New(*s.config.Database)
		if err != nil {
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())
	} else {
		fiberlog.Info("Database not configured - using in-memory cache store")
	}

	if s.config.Analytics != nil {
		db, err := database.New(*s.config.Analytics)
		if err != nil {
			return fmt.Errorf("failed to create analytics connection: %w", err)
		}
		s.analyticsDB = db
		fiberlog.Infof("Analytics database (%s) initialized successfully", db.DriverName())
	}

	return s.runMigrations()
}

func (s *Server) runMigrations() error {
	if s.db != nil {
		store := cache.NewGormStore(s.db.DB)
		if err := store.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate cache tables: %w", err)
		}
		keySvc := auth.NewTenantKeyService(s.db.DB)
		if err := keySvc.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate tenant key table: %w", err)
		}
		if err := s.db.AutoMigrate(&models.Playbook{}); err != nil {
			return fmt.Errorf("failed to migrate playbook table: %w", err)
		}
	}

	if s.analyticsDB != nil {
		if s.analyticsDB.DriverName() == "clickhouse" {
			if err := database.RunClickHouseMigrations(s.analyticsDB.DB); err != nil {
				return fmt.Errorf("failed to run analytics migrations: %w", err)
			}
		} else {
			if err := usage.NewService(s.analyticsDB.DB).AutoMigrate(); err != nil {
				return fmt.Errorf("failed to migrate invocation table: %w", err)
			}
		}
	}

	return nil
}

func (s *Server) closeInfrastructure() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			fiberlog.Errorf("Failed to close Redis client: %v", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}
	if s.analyticsDB != nil {
		if err := s.analyticsDB.Close(); err != nil {
			fiberlog.Errorf("Failed to close analytics connection: %v", err)
		}
	}
}

func (s *Server) setupRoutes() error {
	setupMiddleware(s.app, s.config)

	registry, err := providers.NewRegistry(context.Background(), s.config)
	if err != nil {
		return fmt.Errorf("provider registry initialization failed: %w", err)
	}

	breakers := make(map[string]*circuitbreaker.CircuitBreaker)
	if s.redis != nil && s.config.CircuitBreaker.Enabled {
		for providerName := range s.config.Providers {
			breakers[providerName] = circuitbreaker.NewForProvider(s.redis, providerName, s.config.CircuitBreaker)
		}
	}

	var recorder invoker.UsageRecorder
	var usageSvc *usage.Service
	if s.analyticsDB != nil {
		usageSvc = usage.NewService(s.analyticsDB.DB)
		s.usageWorker = usage.NewWorker(usageSvc, 2, 1024)
		recorder = s.usageWorker
	}

	inv := invoker.New(registry, breakers, recorder)

	var store cache.Store = cache.NewMemoryStore()
	var keySvc *auth.TenantKeyService
	var writer research.PlaybookWriter
	if s.db != nil {
		keySvc = auth.NewTenantKeyService(s.db.DB)
		writer = research.NewGormPlaybookWriter(s.db.DB)
		// cache.backend: memory keeps phase entries in process even when a
		// database is present; keys and playbooks stay database-backed.
		if s.config.Cache.Backend != models.CacheBackendMemory {
			store = cache.NewGormStore(s.db.DB)
		}
	}
	fiberlog.Infof("Phase cache backend: %s", s.config.Cache.EffectiveBackend(s.db != nil))
	phaseCache := cache.NewPhaseCache(store)

	s.runner = research.NewRunner()
	quickSvc := research.NewQuickService(phaseCache, inv, s.config.Ladders, s.config.Cache)
	deepSvc := research.NewDeepService(phaseCache, inv, s.runner, writer, s.config.Ladders, s.config.Cache)
	pollSvc := research.NewPollService(phaseCache)

	var jwtValidator *auth.JWTValidator
	if s.config.Auth.JWTSecret != "" {
		jwtValidator = auth.NewJWTValidator(s.config.Auth.JWTSecret, s.config.Auth.TenantClaim)
	}
	tenantMiddleware := middleware.NewTenantMiddleware(keySvc, jwtValidator, s.config.Auth)

	healthHandler := api.NewHealthHandler(s.redis, s.db)
	s.app.Get("/health", healthHandler.HealthCheck)

	v1 := s.app.Group("/v1", tenantMiddleware.Handler())

	researchHandler := api.NewResearchHandler(quickSvc, deepSvc, pollSvc)
	v1.Post("/research/quick", researchHandler.Quick)
	v1.Post("/research/listings", researchHandler.Listings)
	v1.Post("/research/deep", researchHandler.TriggerDeep)
	v1.Get("/research/deep/:cache_key", researchHandler.PollDeep)

	if keySvc != nil {
		keyHandler := api.NewKeyHandler(keySvc)
		v1.Post("/keys", keyHandler.Create)
		v1.Get("/keys", keyHandler.List)
		v1.Delete("/keys/:id", keyHandler.Revoke)
	}

	if usageSvc != nil {
		usageHandler := api.NewUsageHandler(usageSvc)
		v1.Get("/usage/stats", usageHandler.Stats)
	}

	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "TalentForge Research Engine v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		ReadBufferSize:    8192,
		WriteBufferSize:   8192,
		CaseSensitive:     true,
		ServerHeader:      "ResearchEngine",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	isProd := cfg.IsProduction()

	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(requestid.New())

	app.Use(limiter.New(limiter.Config{
		Max:               600,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			if apiKey := c.Get(cfg.Auth.HeaderName); apiKey != "" {
				return apiKey
			}
			return c.IP()
		},
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		MaxAge:        86400,
		ExposeHeaders: "Content-Length, Content-Type",
	}))
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
	}
}

func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		fiberlog.Info("Redis not configured - circuit breakers disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			fiberlog.Errorf("Failed to close Redis client after connection failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	fiberlog.Info("Redis connection established successfully")
	return client, nil
}
