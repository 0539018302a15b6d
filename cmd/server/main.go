package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/reigigax/ring-de-batalla/internal/api"
	"github.com/reigigax/ring-de-batalla/internal/config"
	"github.com/reigigax/ring-de-batalla/internal/database"
	"github.com/reigigax/ring-de-batalla/internal/server"
	"github.com/reigigax/ring-de-batalla/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "", "server address (overrides RDB_ADDR)")
	flag.StringVar(&dsn, "dsn", "", "database connection string (overrides RDB_DATABASE_DSN)")
	flag.StringVar(&signingKey, "signing-key", "", "base64 encoded signing key (overrides RDB_SIGNING_KEY)")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	dbConn, err := database.NewPgDebateRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error().Err(err).Msg("db close")
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("db migrate")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	debateServer, err := server.NewDebateServer(logger, dbConn, statsUpdater, cfg.Countdown())
	if err != nil {
		logger.Fatal().Err(err).Msg("new debate server")
	}

	srv := api.NewDebateApp(mux, logger, debateServer, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go debateServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server")
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatal().Err(err).Msg("HTTP server shutdown")
	}

	logger.Info().Msg("shutting down debate server")
	if err := debateServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatal().Err(err).Msg("debate server shutdown")
	}

	logger.Info().Msg("shutdown complete")
}

// loadConfig reads the environment and lets non-empty command line flags win.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}

	if addr != "" {
		cfg.ServerAddr = addr
	}
	if dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if signingKey != "" {
		cfg.SigningSecret = signingKey
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowedOrigins = allowedOrigins
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
