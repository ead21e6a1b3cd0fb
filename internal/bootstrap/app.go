package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"energy-advisor/internal/advice"
	"energy-advisor/internal/homes"
	"energy-advisor/internal/llm"
	"energy-advisor/internal/llm/gemini"
	"energy-advisor/internal/llm/ollama"
	"energy-advisor/internal/services/health"
	"energy-advisor/internal/shared/config"
	"energy-advisor/internal/shared/metrics"
	"energy-advisor/internal/shared/server"
	"energy-advisor/internal/shared/server/middleware"
	"energy-advisor/internal/shared/storage/db"
	"energy-advisor/internal/shared/telemetry"
)

// App holds shared dependencies and the fully wired router.
type App struct {
	Config        config.Config
	Router        *gin.Engine
	DB            *sql.DB
	Redis         *redis.Client
	HomesRepo     homes.Repo
	HomesService  *homes.Service
	Generator     llm.Generator
	Streamer      *advice.Streamer
	HomeHandler   *homes.Handler
	AdviceHandler *advice.Handler
	Health        *health.Service
}

// Build prepares shared dependencies and registers routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
	}

	if err := buildServices(ctx, app); err != nil {
		app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:        app.Config,
		HomeHandler:   app.HomeHandler,
		AdviceHandler: app.AdviceHandler,
		Health:        app.Health,
		Limiter:       middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	// Dev databases are migrated on startup; other environments run cmd/migrate.
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	if err := metrics.RegisterDBStats(sqlDB, "homes"); err != nil {
		telemetry.Warn("bootstrap.db.metrics", map[string]any{"error": err})
	}
	return sqlDB, nil
}

func buildServices(ctx context.Context, app *App) error {
	var repo homes.Repo
	if app.DB != nil {
		repo = &homes.PGRepo{DB: app.DB}
	} else {
		repo = homes.NewMemoryRepo()
	}

	repo, err := buildHomeCache(ctx, app, repo)
	if err != nil {
		return err
	}

	generator, model, err := NewGenerator(ctx, app.Config)
	if err != nil {
		return err
	}

	homesSvc := &homes.Service{Repo: repo}
	streamer := &advice.Streamer{
		Generator: generator,
		Model:     model,
		Timeout:   app.Config.LLMTimeout,
	}

	// A nil *sql.DB must stay a nil interface so health reports "memory".
	var dbPinger health.DBPinger
	if app.DB != nil {
		dbPinger = app.DB
	}
	var backendPinger llm.Pinger
	if p, ok := generator.(llm.Pinger); ok {
		backendPinger = p
	}

	app.HomesRepo = repo
	app.HomesService = homesSvc
	app.Generator = generator
	app.Streamer = streamer
	app.HomeHandler = homes.NewHandler(homesSvc)
	app.AdviceHandler = advice.NewHandler(homesSvc, streamer, app.Config.CORSAllowOrigin)
	app.Health = health.NewService(app.Config.AppName, dbPinger, backendPinger)

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":        app.Config.Env,
		"provider":   app.Config.LLMProvider,
		"model":      model,
		"home_cache": app.Config.HomeCache,
		"database":   app.DB != nil,
	})
	return nil
}

func buildHomeCache(ctx context.Context, app *App, repo homes.Repo) (homes.Repo, error) {
	cfg := app.Config
	switch cfg.HomeCache {
	case "redis":
		if cfg.RedisAddr == "" {
			if !isDevLike(cfg.Env) {
				return nil, fmt.Errorf("HOME_CACHE=redis requires REDIS_ADDR")
			}
			telemetry.Warn("bootstrap.cache.fallback", map[string]any{"reason": "REDIS_ADDR empty", "cache": "lru"})
			return homes.NewLRUCache(repo, cfg.HomeCacheSize)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// Reads fall through to the repo while Redis is down.
			telemetry.Warn("bootstrap.redis.ping", map[string]any{"addr": cfg.RedisAddr, "error": err})
		}
		app.Redis = client
		return homes.NewRedisCache(repo, client, cfg.HomeCacheTTL)
	case "lru":
		return homes.NewLRUCache(repo, cfg.HomeCacheSize)
	default:
		return repo, nil
	}
}

// NewGenerator constructs the backend selected by LLM_PROVIDER and returns it
// with its model name.
func NewGenerator(ctx context.Context, cfg config.Config) (llm.Generator, string, error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", err
		}
		return client, client.Model(), nil
	default:
		client, err := ollama.NewClient(cfg.OllamaBaseURL, cfg.OllamaModel, nil)
		if err != nil {
			return nil, "", err
		}
		return client, client.Model(), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
