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

	"github.com/PurpleMyst/redditbg/internal/api"
	"github.com/PurpleMyst/redditbg/internal/api/handler"
	"github.com/PurpleMyst/redditbg/internal/archive"
	"github.com/PurpleMyst/redditbg/internal/config"
	"github.com/PurpleMyst/redditbg/internal/logger"
	"github.com/PurpleMyst/redditbg/internal/picker"
	"github.com/PurpleMyst/redditbg/internal/repository"
	"github.com/PurpleMyst/redditbg/internal/service"
	"github.com/PurpleMyst/redditbg/internal/store"
)

// refreshQueue carries at most one pending refresh request from the control
// API to the daemon loop.
type refreshQueue chan struct{}

// TriggerRefresh queues a cycle if none is pending.
func (q refreshQueue) TriggerRefresh() bool {
	select {
	case q <- struct{}{}:
		return true
	default:
		return false
	}
}

func main() {
	// Initialize logger first (with environment overrides)
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	once := flag.Bool("once", false, "Run one acquisition cycle and exit")
	applyOnly := flag.Bool("apply", false, "Apply one stored wallpaper and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database; nothing runs without a working ledger
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	ledgerRepo := repository.NewLedgerRepository(db)
	runRepo := repository.NewRunRepository(db)

	st, err := store.New(cfg.Store.Dir)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open image store")
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	acquireSvc := service.NewAcquireService(ledgerRepo, runRepo, st, cfg, appLogger)
	applySvc := buildApplyService(ctx, cfg, st, ledgerRepo, appLogger)

	switch {
	case *once:
		accepted, err := acquireSvc.Acquire(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Acquisition failed")
		}
		appLogger.WithField("accepted", accepted).Info("Acquisition completed")

	case *applyOnly:
		if err := applySvc.Apply(ctx); err != nil {
			appLogger.WithError(err).Fatal("Apply failed")
		}

	default:
		runDaemon(ctx, cfg, acquireSvc, applySvc, st, ledgerRepo, runRepo, appLogger)
	}
}

// buildApplyService wires the picker, setter and optional archive into the
// apply stage. Archive misconfiguration is fatal: silently dropping retired
// wallpapers the operator asked to keep is worse than not starting.
func buildApplyService(
	ctx context.Context,
	cfg *config.Config,
	st *store.Store,
	ledgerRepo *repository.LedgerRepository,
	appLogger *logger.Logger,
) *service.ApplyService {
	var arch *archive.Archive
	if cfg.Archive.Enabled {
		var err error
		arch, err = archive.New(&archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize archive")
		}
		if err := arch.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure archive bucket")
		}
	}

	var setter picker.Setter = picker.NopSetter{}
	if len(cfg.Picker.SetterCommand) > 0 {
		s, err := picker.NewCommandSetter(cfg.Picker.SetterCommand, appLogger)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to build setter command")
		}
		setter = s
	}

	p := picker.New(st, ledgerRepo, cfg.Picker.MaxDistance, appLogger)
	return service.NewApplyService(p, st, setter, arch, cfg.Picker.CurrentPath, appLogger)
}

// runDaemon runs acquire-then-apply on the configured interval until the
// context is cancelled. The control API, when enabled, can queue one extra
// cycle between ticks.
func runDaemon(
	ctx context.Context,
	cfg *config.Config,
	acquireSvc *service.AcquireService,
	applySvc *service.ApplyService,
	st *store.Store,
	ledgerRepo *repository.LedgerRepository,
	runRepo *repository.RunRepository,
	appLogger *logger.Logger,
) {
	refresh := make(refreshQueue, 1)

	if cfg.Server.Enabled {
		router := api.SetupRouter(
			handler.NewStatusHandler(st, ledgerRepo, runRepo, cfg.Fetch.Target),
			handler.NewRefreshHandler(refresh),
			&cfg.Server,
			appLogger,
		)
		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		}
		go func() {
			appLogger.WithField("addr", srv.Addr).Info("Starting control API")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.WithError(err).Error("Control API stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				appLogger.WithError(err).Warn("Control API shutdown failed")
			}
		}()
	}

	appLogger.WithField("interval", cfg.Daemon.Interval.String()).Info("Starting daemon")

	ticker := time.NewTicker(cfg.Daemon.Interval)
	defer ticker.Stop()

	runCycle(ctx, acquireSvc, applySvc, appLogger)
	for {
		select {
		case <-ctx.Done():
			appLogger.Info("Received shutdown signal, exiting")
			return
		case <-ticker.C:
			runCycle(ctx, acquireSvc, applySvc, appLogger)
		case <-refresh:
			appLogger.Info("Refresh requested")
			runCycle(ctx, acquireSvc, applySvc, appLogger)
		}
	}
}

// runCycle runs one acquire-then-apply pass. Cycle failures are logged and
// the daemon lives on to the next tick; a cancelled context just ends the
// cycle quietly.
func runCycle(ctx context.Context, acquireSvc *service.AcquireService, applySvc *service.ApplyService, appLogger *logger.Logger) {
	if ctx.Err() != nil {
		return
	}

	accepted, err := acquireSvc.Acquire(ctx)
	if err != nil {
		appLogger.WithError(err).Error("Acquisition cycle failed")
	} else {
		appLogger.WithField("accepted", accepted).Info("Acquisition cycle completed")
	}

	if ctx.Err() != nil {
		return
	}

	if err := applySvc.Apply(ctx); err != nil {
		if errors.Is(err, picker.ErrNoCandidates) {
			appLogger.Info("No wallpaper to apply this cycle")
			return
		}
		appLogger.WithError(err).Error("Apply failed")
	}
}
