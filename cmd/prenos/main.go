package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/api"
	"github.com/erazemk/prenos/internal/auth"
	"github.com/erazemk/prenos/internal/catalog"
	"github.com/erazemk/prenos/internal/config"
	"github.com/erazemk/prenos/internal/db"
	"github.com/erazemk/prenos/internal/events"
	"github.com/erazemk/prenos/internal/logger"
	"github.com/erazemk/prenos/internal/metrics"
	"github.com/erazemk/prenos/internal/store"
	"github.com/erazemk/prenos/internal/telemetry"
	"github.com/erazemk/prenos/internal/transfer"
)

const usage = `Usage: prenos <command> [flags]

Commands:
  serve     run the HTTP API (default)
  migrate   apply database migrations and exit
  token     issue a bearer token

Run 'prenos <command> -h' for command flags.
`

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = cmdServe(args)
	case "migrate":
		err = cmdMigrate(args)
	case "token":
		err = cmdToken(args)
	case "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses a subcommand's flags and loads the configuration.
func parseFlags(fs *flag.FlagSet, args []string) (*config.Config, error) {
	var path string
	fs.StringVar(&path, "config", "", "config file path (default: prenos.yaml in . or /etc/prenos)")
	fs.StringVar(&path, "c", "", "shorthand for -config")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return config.Load(path)
}

func openDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (*db.DB, error) {
	database, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.DBOptions())
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, database); err != nil {
			database.Close()
			return nil, err
		}
	}
	version, err := db.Version(ctx, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	log.Info("database ready",
		zap.String("driver", cfg.Database.Driver),
		zap.Int64("schema_version", version),
	)
	return database, nil
}

// jwtSecret prefers the configured secret and falls back to the one stored
// in the database, generating it on first use.
func jwtSecret(ctx context.Context, cfg *config.Config, database *db.DB) (string, error) {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret, nil
	}
	return store.GetJWTSecret(ctx, database)
}

func cmdServe(args []string) error {
	cfg, err := parseFlags(flag.NewFlagSet("serve", flag.ContinueOnError), args)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()
	log = log.With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("creating tracer provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	database, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	secret, err := jwtSecret(ctx, cfg, database)
	if err != nil {
		return err
	}

	var resolver catalog.Resolver = catalog.NewSQLResolver(database)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, catalog cache will fall through", zap.Error(err))
		}
		resolver = catalog.NewCached(resolver, rdb,
			catalog.WithTTL(cfg.Redis.CacheTTL),
			catalog.WithLogger(log),
		)
		log.Info("catalog cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}), log)
		log.Info("event publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("closing publisher", zap.Error(err))
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	engine := transfer.New(database, resolver,
		transfer.WithPublisher(publisher),
		transfer.WithMetrics(m),
		transfer.WithLogger(log),
		transfer.WithTracer(tp.Tracer("github.com/erazemk/prenos/internal/transfer")),
	)

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewRouter(api.Options{
			DB:             database,
			Engine:         engine,
			Catalog:        resolver,
			Metrics:        m,
			Logger:         log,
			JWTSecret:      secret,
			RateLimit:      cfg.HTTP.RateLimit,
			RateBurst:      cfg.HTTP.RateBurst,
			MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
			RequestTimeout: cfg.HTTP.RequestTimeout,
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server stopped, closing database")
	return nil
}

func cmdMigrate(args []string) error {
	cfg, err := parseFlags(flag.NewFlagSet("migrate", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	ctx := context.Background()

	database, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.DBOptions())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		return err
	}
	version, err := db.Version(ctx, database)
	if err != nil {
		return err
	}
	fmt.Printf("Schema at version %d.\n", version)
	return nil
}

func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)

	var user, role string
	var ttl time.Duration
	fs.StringVar(&user, "user", "", "username the token is issued to")
	fs.StringVar(&user, "u", "", "shorthand for -user")
	fs.StringVar(&role, "role", "cashier", "role: cashier, manager or admin")
	fs.StringVar(&role, "r", "cashier", "shorthand for -role")
	fs.DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.token_ttl)")

	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if user == "" {
		return errors.New("-user is required")
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}

	ctx := context.Background()
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		database, err := openDatabase(ctx, cfg, zap.NewNop())
		if err != nil {
			return err
		}
		defer database.Close()
		if secret, err = store.GetJWTSecret(ctx, database); err != nil {
			return err
		}
	}

	token, err := auth.GenerateToken(secret, user, role, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
