package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	alertapi "github.com/vigilops/vigil/internal/alerting/api"
	adb "github.com/vigilops/vigil/internal/alerting/database"
	"github.com/vigilops/vigil/internal/alerting/rulesfile"
	"github.com/vigilops/vigil/internal/alerting/service/coordinator"
	"github.com/vigilops/vigil/internal/alerting/service/notify"
	"github.com/vigilops/vigil/internal/config"
	"github.com/vigilops/vigil/internal/middleware"
)

func main() {
	log.Info().Msg("Starting vigil alerting server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// configure log level from config
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// optional alert store; the engine runs in-memory-only without it
	var store coordinator.Store
	var cache coordinator.Cache
	if db, derr := adb.New(cfg.Database.DSN()); derr == nil {
		defer db.Close()
		store = adb.NewPgAlertStore(db)
	} else {
		log.Error().Err(derr).Msg("alert DB init failed; running without persistence")
	}
	if rdb := adb.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); rdb != nil {
		defer rdb.Close()
		cache = adb.NewAlertCache(rdb)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	dispatcher := notify.NewDispatcher(parseDuration(cfg.Alerting.NotifyTimeout, 10*time.Second))
	coord := coordinator.New(coordinator.Config{
		EscalationInterval: parseDuration(cfg.Alerting.EscalationInterval, 60*time.Second),
		RetentionInterval:  parseDuration(cfg.Alerting.RetentionInterval, time.Hour),
		RetentionGrace:     parseDuration(cfg.Alerting.RetentionGrace, 5*time.Minute),
	}, dispatcher, store, cache, registry)

	if err := coord.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("restoring firing alerts failed; starting with empty state")
	}

	// load rule definitions from file if provided
	if cfg.Alerting.RulesFile != "" {
		applier := rulesfile.NewApplier(coord)
		defs, lerr := rulesfile.Load(cfg.Alerting.RulesFile)
		if lerr != nil {
			log.Error().Err(lerr).Msg("loading rules file failed")
		} else {
			applier.Apply(defs)
		}
		if cfg.Alerting.WatchRulesFile {
			go func() {
				if werr := rulesfile.Watch(ctx, cfg.Alerting.RulesFile, applier.Apply); werr != nil {
					log.Error().Err(werr).Msg("rules file watcher stopped")
				}
			}()
		}
	}

	go coord.Run(ctx)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.Authentication)
	alertapi.NewApi(router, coord, registry)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		signal.Stop(sigCh)
		cancel()
	}()

	// stop accepting requests once ctx is canceled, so no new evaluation
	// cycle starts after the shutdown signal; in-flight requests drain
	srv := &http.Server{Addr: cfg.Server.BindAddr, Handler: router}
	go shutdownOnDone(ctx, srv, 10*time.Second)

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("start vigil api server failed.")
	}
	log.Info().Msg("vigil api server exit...")
}

func shutdownOnDone(ctx context.Context, srv *http.Server, timeout time.Duration) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
