package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookingd/internal/config"
	"bookingd/internal/service/availability"
	"bookingd/internal/service/booking"
	"bookingd/internal/store/postgres"
	"bookingd/internal/transport/httpapi"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "bookingd"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "bookingd"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("http_addr", cfg.HTTPAddr), slog.String("log_level", cfg.LogLevel))

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Error("invalid time zone", slog.Any("err", err), slog.String("time_zone", cfg.TimeZone))
		os.Exit(1)
	}

	log.Info("connecting to database", databaseAttr(cfg.DatabaseURL))
	openCtx, openCancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := postgres.Open(openCtx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	openCancel()
	if err != nil {
		log.Error("database connection failed", slog.Any("err", err), databaseAttr(cfg.DatabaseURL))
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if cfg.MigrateOnBoot {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := postgres.Migrate(ctx, db, cfg.MigrationsDir)
		if err != nil {
			cancel()
			log.Error("migrations failed", slog.Any("err", err), slog.String("dir", cfg.MigrationsDir))
			os.Exit(1)
		}
		version, err := postgres.MigrationVersion(ctx, db)
		cancel()
		if err != nil {
			log.Error("migration version lookup failed", slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("migrations applied", slog.String("dir", cfg.MigrationsDir), slog.Int64("version", version))
	}

	reservations := postgres.NewReservationRepo(db)
	rules := postgres.NewAvailabilityRepo(db)
	links := postgres.NewRelationshipRepo(db)

	bookingSvc := booking.NewService(reservations, rules, links, booking.Config{
		HorizonDays:         cfg.HorizonDays,
		SlotDurationMinutes: cfg.SlotDurationMinutes,
		Location:            loc,
	})
	availabilitySvc := availability.NewService(rules)

	router := httpapi.NewRouter(bookingSvc, availabilitySvc, log, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, srv, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func shutdown(log *slog.Logger, srv *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown timed out; forcing close", slog.Any("err", err))
		_ = srv.Close()
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// databaseAttr logs where we connect without echoing credentials.
func databaseAttr(databaseURL string) slog.Attr {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return slog.String("db", "invalid-url")
	}
	host := u.Host
	if host == "" {
		host = "unknown"
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		name = "unknown"
	}
	return slog.Group("db", slog.String("host", host), slog.String("name", name))
}
