package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"folio/internal/logging"
)

// DefaultMemoryRatio is the share of FOLIO_MEMORY_LIMIT given to the Go heap.
// The rest is left for libvips and decode buffers.
const DefaultMemoryRatio = 0.85

// ConfigResult reports how the soft memory limit was set.
type ConfigResult struct {
	Configured bool
	// Source is "GOMEMLIMIT", "FOLIO_MEMORY_LIMIT" or "none".
	Source     string
	Limit      int64
	GoMemLimit int64
	Ratio      float64
}

// ConfigureFromEnv sets the runtime soft memory limit. GOMEMLIMIT wins when
// present; otherwise FOLIO_MEMORY_LIMIT (bytes) scaled by MEMORY_RATIO is
// used. Call early in main.
func ConfigureFromEnv() ConfigResult {
	if v := os.Getenv("GOMEMLIMIT"); v != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		return result
	}

	raw := os.Getenv("FOLIO_MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("FOLIO_MEMORY_LIMIT not set, no soft memory limit")
		return ConfigResult{Source: "none"}
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		logging.Warn("Ignoring FOLIO_MEMORY_LIMIT %q: not a positive byte count", raw)
		return ConfigResult{Source: "none"}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s)",
		formatBytes(goMemLimit), ratio*100, formatBytes(limit))

	return ConfigResult{
		Configured: true,
		Source:     "FOLIO_MEMORY_LIMIT",
		Limit:      limit,
		GoMemLimit: goMemLimit,
		Ratio:      ratio,
	}
}

func parseRatio(s string) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r <= 0 || r > 1 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0], using %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return r
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
