package handlers

import (
	"net/http"
	"runtime"
	"time"

	"folio/internal/metrics"
	"folio/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Error   string `json:"error,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	Library        *metrics.Stats `json:"library,omitempty"`
	EditorSessions int            `json:"editorSessions"`
}

// HealthCheck reports the service state and library counts. A catalog that
// cannot be queried makes the service degraded.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:         statusHealthy,
		Version:        startup.Version,
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
		EditorSessions: h.editors.Len(),
	}

	status := http.StatusOK
	stats, err := h.db.LibraryStats(r.Context())
	if err != nil {
		response.Status = statusDegraded
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		response.Library = &stats
	}

	writeJSON(w, status, response)
}

// LivenessCheck always answers 200 while the process is serving.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
