package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/assets"
	"folio/internal/database"
	"folio/internal/editor"
	"folio/internal/filesystem"
	"folio/internal/handlers"
	"folio/internal/inbox"
	"folio/internal/logging"
	"folio/internal/media"
	"folio/internal/memory"
	"folio/internal/metrics"
	"folio/internal/middleware"
	"folio/internal/retention"
	"folio/internal/startup"
	"folio/internal/trash"
	"folio/internal/wallpaper"

	"github.com/gorilla/mux"
)

// services are the background components stopped on shutdown.
type services struct {
	retention *retention.Scheduler
	inbox     *inbox.Watcher
	collector *metrics.Collector
	cancel    context.CancelFunc
}

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.ConfigureFromEnv()
	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	volumes := map[string]string{
		filesystem.VolumeOriginals:  config.OriginalsDir,
		filesystem.VolumeThumbnails: config.ThumbnailsDir,
		filesystem.VolumeDatabase:   config.DataDir,
	}
	if config.InboxEnabled() {
		volumes[filesystem.VolumeSource] = config.InboxDir
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes))

	vipsErr := media.InitVips()
	startup.LogImagingInit(vipsErr)
	defer media.ShutdownVips()

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	store, err := assets.New(db, assets.Config{
		OriginalsDir:  config.OriginalsDir,
		ThumbnailsDir: config.ThumbnailsDir,
		Workers:       config.Workers,
		Wallpaper:     wallpaper.New(),
		Throttle:      memory.NewGuard(memory.DefaultGuardConfig()),
	})
	if err != nil {
		startup.LogFatal("Failed to initialize asset store: %v", err)
	}
	coordinator := trash.New(db, store)
	editors := editor.NewRegistry()

	svc, err := startServices(config, db, store, coordinator, editors)
	if err != nil {
		startup.LogFatal("Failed to start background services: %v", err)
	}
	startup.LogServicesStarted(config)

	build := startup.GetBuildInfo()
	metrics.AppInfo.WithLabelValues(build.Version, build.Commit, build.GoVersion).Set(1)

	h := handlers.New(db, store, coordinator, editors)
	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(h, config.MetricsPort)
	}

	shutdownDone := make(chan struct{})
	go handleShutdown(srv, metricsSrv, svc, shutdownDone)

	startup.LogServerStarted(startup.ServerConfig{
		Addr:            config.Addr,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// The catalog is closed by the deferred Close once shutdown has drained
	// in-flight requests.
	<-shutdownDone
}

func startServices(config *startup.Config, db *database.Database, store *assets.Store,
	coordinator *trash.Coordinator, editors *editor.Registry) (*services, error) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &services{cancel: cancel}

	sched, err := retention.New(coordinator, db, retention.Config{
		Retention: config.TrashRetention,
		Interval:  config.RetentionInterval,
		Editors:   editors,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	sched.Start()
	svc.retention = sched

	if config.InboxEnabled() {
		w, err := inbox.New(config.InboxDir, store, inbox.DefaultDebounce)
		if err != nil {
			logging.Warn("Inbox disabled: %v", err)
		} else {
			w.Start(ctx)
			svc.inbox = w
		}
	}

	if config.MetricsEnabled {
		svc.collector = metrics.NewCollector(db, time.Minute)
		svc.collector.Start()
	}
	return svc, nil
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()
	if config.MetricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}
	h.RegisterRoutes(r)
	return r
}

func startMetricsServer(h *handlers.Handlers, port string) *http.Server {
	mm := http.NewServeMux()
	mm.Handle("/metrics", h.MetricsHandler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mm,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, svc *services, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if svc.inbox != nil {
		startup.LogShutdownStep("Stopping inbox watcher")
		if err := svc.inbox.Close(); err != nil {
			logging.Warn("Inbox shutdown error: %v", err)
		}
		startup.LogShutdownStepComplete("Inbox watcher stopped")
	}
	svc.cancel()

	startup.LogShutdownStep("Stopping retention scheduler")
	if err := svc.retention.Stop(); err != nil {
		logging.Warn("Retention shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Retention scheduler stopped")
	}

	if svc.collector != nil {
		svc.collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownComplete()
}
