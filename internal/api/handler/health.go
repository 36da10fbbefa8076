package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Raks-kmt/kaishou/internal/session"
)

var startTime = time.Now()

// ServiceName is reported by the identity endpoint.
const ServiceName = "Kuaishou Video Downloader Bot"

// StatsSource reports usage totals for the stats endpoint.
type StatsSource interface {
	Totals() session.Totals
}

// HealthHandler serves the identity, health and stats endpoints.
type HealthHandler struct {
	version       string
	downloadsRoot string
	stats         StatsSource
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version, downloadsRoot string, stats StatsSource) *HealthHandler {
	return &HealthHandler{
		version:       version,
		downloadsRoot: downloadsRoot,
		stats:         stats,
	}
}

// IdentityResponse is the JSON response for the identity endpoint.
type IdentityResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status string `json:"status"`
}

// Identity handles GET / - service identity.
func (h *HealthHandler) Identity(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, IdentityResponse{
		Status:  "online",
		Service: ServiceName,
		Version: h.version,
	})
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// SystemStats contains process and usage statistics.
type SystemStats struct {
	Uptime         int64   `json:"uptime_seconds"`
	UptimeHuman    string  `json:"uptime_human"`
	Users          int     `json:"users"`
	Downloads      int     `json:"downloads"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	DiskTotalBytes int64   `json:"disk_total_bytes"`
	DiskFreeBytes  int64   `json:"disk_free_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
	DownloadsRoot  string  `json:"downloads_root"`
}

// Stats handles GET /stats - process and usage statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)
	totals := h.stats.Totals()

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		Users:         totals.Users,
		Downloads:     totals.Downloads,
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		DownloadsRoot: h.downloadsRoot,
	}

	total, free, _, usedPct := getDiskStats(h.downloadsRoot)
	stats.DiskTotalBytes = total
	stats.DiskFreeBytes = free
	stats.DiskUsedPct = usedPct

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *HealthHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
