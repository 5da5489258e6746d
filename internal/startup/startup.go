package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"folio/internal/logging"
	"folio/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Defaults for the environment configuration.
const (
	DefaultAddr              = "127.0.0.1:7420"
	DefaultMetricsPort       = "9090"
	DefaultTrashRetention    = 720 * time.Hour
	DefaultRetentionInterval = time.Hour
)

// Config holds all application configuration
type Config struct {
	DataDir           string
	Addr              string
	MetricsPort       string
	MetricsEnabled    bool
	InboxDir          string
	TrashRetention    time.Duration
	RetentionInterval time.Duration
	LogHealthChecks   bool
	Workers           int

	// Derived paths
	DatabasePath  string
	OriginalsDir  string
	ThumbnailsDir string
}

// InboxEnabled reports whether an inbox directory is configured.
func (c *Config) InboxEnabled() bool {
	return c.InboxDir != ""
}

// LoadConfig loads and validates configuration from environment variables.
// The data directory must be writable; everything else falls back to a
// default with a warning.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := DataDirFromEnv()
	addr := getEnv("FOLIO_ADDR", DefaultAddr)
	metricsPort := getEnv("METRICS_PORT", DefaultMetricsPort)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	inboxDir := getEnv("FOLIO_INBOX_DIR", "")
	trashRetention := getEnvDuration("TRASH_RETENTION", DefaultTrashRetention)
	retentionInterval := getEnvDuration("RETENTION_INTERVAL", DefaultRetentionInterval)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)

	logging.Info("  FOLIO_DATA_DIR:      %s", dataDir)
	logging.Info("  FOLIO_ADDR:          %s", addr)
	logging.Info("  FOLIO_INBOX_DIR:     %s", valueOr(inboxDir, "(disabled)"))
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  TRASH_RETENTION:     %v", trashRetention)
	logging.Info("  RETENTION_INTERVAL:  %v", retentionInterval)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if retentionInterval <= 0 {
		logging.Warn("  RETENTION_INTERVAL must be positive, using default: %v", DefaultRetentionInterval)
		retentionInterval = DefaultRetentionInterval
	}
	if trashRetention < 0 {
		logging.Warn("  TRASH_RETENTION cannot be negative, disabling automatic purge")
		trashRetention = 0
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", dataDir)

	layout := NewLayout(dataDir)
	config := &Config{
		DataDir:           dataDir,
		Addr:              addr,
		MetricsPort:       metricsPort,
		MetricsEnabled:    metricsEnabled,
		TrashRetention:    trashRetention,
		RetentionInterval: retentionInterval,
		LogHealthChecks:   logHealthChecks,
		Workers:           workers.ForMixed(8),
		DatabasePath:      layout.DatabasePath,
		OriginalsDir:      layout.OriginalsDir,
		ThumbnailsDir:     layout.ThumbnailsDir,
	}

	// The catalog lives here, so this one is required.
	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(dataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for the catalog): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	for _, dir := range []struct{ path, name string }{
		{config.OriginalsDir, "originals"},
		{config.ThumbnailsDir, "thumbnails"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
	}

	if inboxDir != "" {
		abs, err := filepath.Abs(inboxDir)
		if err == nil {
			err = ensureDirectory(abs, "inbox")
		}
		if err != nil {
			logging.Warn("  Inbox directory issue: %v", err)
			logging.Warn("  Inbox watcher will be disabled")
		} else {
			config.InboxDir = abs
		}
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Catalog:     ENABLED (required)")
	logging.Info("    Inbox:       %s", enabledString(config.InboxEnabled()))
	logging.Info("    Auto purge:  %s", enabledString(config.TrashRetention > 0))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))
	logging.Info("    Workers:     %d", config.Workers)

	return config, nil
}

// Layout is where the catalog and the image files live under a data
// directory.
type Layout struct {
	DatabasePath  string
	OriginalsDir  string
	ThumbnailsDir string
}

// NewLayout returns the layout under dataDir.
func NewLayout(dataDir string) Layout {
	return Layout{
		DatabasePath:  filepath.Join(dataDir, "folio.db"),
		OriginalsDir:  filepath.Join(dataDir, "images", "original"),
		ThumbnailsDir: filepath.Join(dataDir, "images", "thumbnails"),
	}
}

// DataDirFromEnv returns FOLIO_DATA_DIR, or the per-user default.
func DataDirFromEnv() string {
	return getEnv("FOLIO_DATA_DIR", defaultDataDir())
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "folio")
	}
	return "folio-data"
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// LogDatabaseInit logs catalog initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CATALOG INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Catalog opened in %v", duration)
}

// LogImagingInit logs which decoders are available.
func LogImagingInit(vipsErr error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("IMAGING INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Built-in decoders: JPEG, PNG, GIF, BMP, TIFF, WebP")
	if vipsErr != nil {
		logging.Warn("  libvips unavailable: %v", vipsErr)
		logging.Warn("  HEIC, AVIF and other libvips-only formats cannot be imported")
		return
	}
	logging.Info("  [OK] libvips available for extended formats")
}

// LogServicesStarted logs the background services that are running.
func LogServicesStarted(config *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("BACKGROUND SERVICES")
	logging.Info("------------------------------------------------------------")
	if config.TrashRetention > 0 {
		logging.Info("  [OK] Trash retention: purging after %v, checked every %v",
			config.TrashRetention, config.RetentionInterval)
	} else {
		logging.Info("  Trash retention: disabled unless set in settings")
	}
	if config.InboxEnabled() {
		logging.Info("  [OK] Inbox watcher: %s", config.InboxDir)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Subrouter prefixes carry no methods.
			return nil
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes at debug level, grouped by prefix.
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Info("  %d routes registered", len(routes))

	if !logging.IsDebugEnabled() {
		return
	}

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	for _, group := range groupKeys {
		if group != "" {
			logging.Debug("  [%s]", group)
		} else {
			logging.Debug("  [root]")
		}
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Addr            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://%s/api", config.Addr)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ______      ___
   / ____/___  / (_)___
  / /_  / __ \/ / / __ \
 / __/ / /_/ / / / /_/ /
/_/    \____/_/_/\____/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvDuration parses a Go duration. A bare "0" is accepted.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
