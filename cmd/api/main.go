// Package main is the entry point for the school library API server.
// It wires together configuration, the database connection, and the HTTP router.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aoideee/school-library/internal/auth"
	"github.com/aoideee/school-library/internal/config"
	"github.com/aoideee/school-library/internal/data"
	"github.com/aoideee/school-library/internal/ratelimit"
	"github.com/aoideee/school-library/internal/tracing"
)

// appVersion is the current version of the API, shown in logs and the healthcheck.
const appVersion = "1.0.0"

// serverConfig holds all the values that can be tweaked at startup via
// command-line flags. Each flag defaults to its environment variable.
type serverConfig struct {
	port        int    // TCP port the HTTP server listens on (default 3000)
	environment string // Runtime environment: development, staging, or production
	db          struct {
		driver       string        // sqlite3 or postgres
		dsn          string        // file path for sqlite3, connection string for postgres
		maxOpenConns int           // postgres only
		maxIdleConns int           // postgres only
		maxIdleTime  time.Duration // postgres only
	}
	limiter struct {
		rps     float64
		burst   int
		enabled bool
	}
	jwt struct {
		secret string // empty disables the write-endpoint token check
	}
	cors struct {
		trustedOrigins []string
	}
	school config.School
}

// applicationDependencies bundles every shared resource that HTTP handlers need.
// A pointer to this struct is passed as the receiver on all handler and route methods.
type applicationDependencies struct {
	config  serverConfig        // Server configuration loaded from flags
	logger  *slog.Logger        // Structured logger that writes to stdout
	models  data.Models         // Database model layer for all tables
	limiter *ratelimit.Registry // Per-IP request limiter, swept by serve
	tokens  *auth.TokenManager  // nil when no JWT secret is configured
}

// main is the application entry point.
// It parses flags, opens the database, wires up dependencies, and starts the HTTP server.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLevel(os.Getenv("LOG_LEVEL")),
	}))

	// .env values become the defaults for the flags below.
	config.LoadEnv(logger)

	var settings serverConfig
	settings.school = config.SchoolFromEnv()

	// Register command-line flags so operators can override defaults at runtime.
	flag.IntVar(&settings.port, "port", config.GetEnvInt("PORT", 3000), "Server port")
	flag.StringVar(&settings.environment, "env", config.GetEnv("ENVIRONMENT", "development"), "Environment(development|staging|production)")

	flag.StringVar(&settings.school.Name, "school-name", settings.school.Name, "School display name")
	flag.StringVar(&settings.school.Code, "school-code", settings.school.Code, "Short school code, used in the default database file name")

	flag.StringVar(&settings.db.driver, "db-driver", config.GetEnv("DB_DRIVER", data.DriverSQLite), "Database driver (sqlite3|postgres)")
	flag.StringVar(&settings.db.dsn, "db-dsn", config.GetEnv("DB_DSN", ""), "Database file (sqlite3) or DSN (postgres); defaults to ./<school-code>-library.db")
	flag.IntVar(&settings.db.maxOpenConns, "db-max-open-conns", config.GetEnvInt("DB_MAX_OPEN_CONNS", 25), "PostgreSQL max open connections")
	flag.IntVar(&settings.db.maxIdleConns, "db-max-idle-conns", config.GetEnvInt("DB_MAX_IDLE_CONNS", 25), "PostgreSQL max idle connections")
	flag.DurationVar(&settings.db.maxIdleTime, "db-max-idle-time", config.GetEnvDuration("DB_MAX_IDLE_TIME", 15*time.Minute), "PostgreSQL max connection idle time")

	flag.Float64Var(&settings.limiter.rps, "limiter-rps", config.GetEnvFloat("LIMITER_RPS", 2), "Rate limiter maximum requests per second")
	flag.IntVar(&settings.limiter.burst, "limiter-burst", config.GetEnvInt("LIMITER_BURST", 4), "Rate limiter maximum burst")
	flag.BoolVar(&settings.limiter.enabled, "limiter-enabled", config.GetEnvBool("LIMITER_ENABLED", true), "Enable rate limiter")

	flag.StringVar(&settings.jwt.secret, "jwt-secret", config.GetEnv("JWT_SECRET", ""), "HS256 secret for write endpoints (empty disables the check)")

	flag.Func("cors-trusted-origins", "Trusted CORS origins (space separated)", func(val string) error {
		settings.cors.trustedOrigins = strings.Fields(val)
		return nil
	})
	settings.cors.trustedOrigins = strings.Fields(config.GetEnv("CORS_TRUSTED_ORIGINS", ""))

	flag.Parse()

	if settings.db.dsn == "" && settings.db.driver == data.DriverSQLite {
		settings.db.dsn = settings.school.DefaultDSN()
	}

	shutdownTracing, err := tracing.Init(context.Background(), logger, "school-library", settings.environment)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("tracing shutdown", "error", err)
		}
	}()

	// Open and verify the database connection pool, then apply migrations.
	db, err := data.OpenDB(context.Background(), data.DBConfig{
		Driver:          settings.db.driver,
		DSN:             settings.db.dsn,
		MaxOpenConns:    settings.db.maxOpenConns,
		MaxIdleConns:    settings.db.maxIdleConns,
		ConnMaxIdleTime: settings.db.maxIdleTime,
	})
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	defer db.Close() // Close the pool cleanly when main() returns.

	logger.Info("database connection pool established", "driver", settings.db.driver, "school", settings.school.Code)

	// Bundle all shared dependencies into a single struct.
	appInstance := newApplication(settings, logger, data.NewModels(db, nil))

	err = appInstance.serve()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

// newApplication builds the dependency bundle from parsed settings.
func newApplication(settings serverConfig, logger *slog.Logger, models data.Models) *applicationDependencies {
	app := &applicationDependencies{
		config: settings,
		logger: logger,
		models: models,
		limiter: ratelimit.New(ratelimit.Config{
			RPS:     settings.limiter.rps,
			Burst:   settings.limiter.burst,
			Enabled: settings.limiter.enabled,
		}),
	}
	if settings.jwt.secret != "" {
		app.tokens = auth.NewTokenManager(settings.jwt.secret, "")
	} else {
		logger.Warn("JWT secret not set: write endpoints are not authenticated")
	}
	return app
}
