package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/api"
	"github.com/visitdesk/visitdesk/internal/app"
	"github.com/visitdesk/visitdesk/internal/app/maintenance"
	"github.com/visitdesk/visitdesk/internal/database"
	"github.com/visitdesk/visitdesk/internal/directory"
	"github.com/visitdesk/visitdesk/internal/notify"
	"github.com/visitdesk/visitdesk/internal/pass"
	"github.com/visitdesk/visitdesk/internal/realtime"
	"github.com/visitdesk/visitdesk/internal/visits"
	"github.com/visitdesk/visitdesk/pkg/logger"
	"github.com/visitdesk/visitdesk/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("visitdesk-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	store, err := visits.NewStore(db)
	if err != nil {
		return fmt.Errorf("initialise visit store: %w", err)
	}

	issuer := pass.NewIssuer()

	dir, err := directory.NewService(db)
	if err != nil {
		return fmt.Errorf("initialise directory: %w", err)
	}

	hub := realtime.NewHub()

	dispatcher, err := buildDispatcher(cfg, db, hub)
	if err != nil {
		return fmt.Errorf("initialise dispatcher: %w", err)
	}

	engine, err := visits.NewEngine(store, issuer,
		visits.WithDispatcher(dispatcher),
		visits.WithCheckInWindow(visits.CheckInWindow{
			Early: cfg.Visits.EarlyCheckIn,
			Late:  cfg.Visits.LateCheckIn,
		}),
		visits.WithCheckoutNotice(cfg.Visits.CheckoutNotice),
	)
	if err != nil {
		return fmt.Errorf("initialise visit engine: %w", err)
	}

	if cfg.Maintenance.Enabled {
		cleaner, cleanErr := maintenance.NewCleaner(db,
			maintenance.WithRetentionDays(cfg.Maintenance.JobRetention),
			maintenance.WithSchedule(cfg.Maintenance.CleanupSpec),
		)
		if cleanErr != nil {
			return fmt.Errorf("initialise maintenance: %w", cleanErr)
		}
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer func() {
			<-cleaner.Stop().Done()
		}()
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:         db,
		Engine:     engine,
		Store:      store,
		Issuer:     issuer,
		Dispatcher: dispatcher,
		Directory:  dir,
		Hub:        hub,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	// Let in-flight notification deliveries settle before the process exits.
	dispatcher.Wait()

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func buildDispatcher(cfg *app.Config, db *gorm.DB, hub *realtime.Hub) (*notify.Dispatcher, error) {
	mailer, err := mail.NewSMTPMailer(cfg.Notifications.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	channels := []notify.Channel{
		notify.NewEmailChannel(mailer),
		notify.NewWhatsAppChannel(cfg.Notifications.WhatsAppSettings()),
	}

	return notify.NewDispatcher(db, channels,
		notify.WithMaxAttempts(cfg.Notifications.MaxAttempts),
		notify.WithRetryBackoff(cfg.Notifications.RetryBackoff),
		notify.WithFeed(hub),
	)
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("acquire database handle for close", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}
