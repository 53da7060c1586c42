package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/client"
	"github.com/Shugur-Network/nostr-client/internal/constants"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
	"github.com/Shugur-Network/nostr-client/internal/relay"
	"github.com/Shugur-Network/nostr-client/internal/storage"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the status of a specific component
type ComponentStatus struct {
	Name    string                 `json:"name"`
	Status  HealthStatus           `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status     HealthStatus       `json:"status"`
	Timestamp  time.Time          `json:"timestamp"`
	Version    string             `json:"version"`
	Uptime     string             `json:"uptime"`
	Components []*ComponentStatus `json:"components"`
	Events     metrics.Snapshot   `json:"events"`
}

// RelayPool is the part of the client the checker reads.
type RelayPool interface {
	Relays() []client.RelayStatus
}

// Database is the part of the storage layer the checker reads.
type Database interface {
	Ping(ctx context.Context) error
	Stats() storage.DatabaseStats
}

// Queue is the storage write queue the checker reads.
type Queue interface {
	Pending() int
	Capacity() int
	Dropped() int64
}

// HealthChecker reports relay pool and storage health.
type HealthChecker struct {
	pool      RelayPool
	db        Database
	queue     Queue
	logger    *zap.Logger
	startTime time.Time
	version   string
}

// NewHealthChecker creates a checker. db may be nil when storage is disabled.
func NewHealthChecker(pool RelayPool, db Database, logger *zap.Logger, version string) *HealthChecker {
	return &HealthChecker{
		pool:      pool,
		db:        db,
		logger:    logger.Named("health"),
		startTime: time.Now(),
		version:   version,
	}
}

// WithQueue adds the storage write queue to the report.
func (h *HealthChecker) WithQueue(q Queue) *HealthChecker {
	h.queue = q
	return h
}

// CheckHealth runs every component check.
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthResponse {
	components := []*ComponentStatus{h.checkRelays()}
	if h.db != nil {
		components = append(components, h.checkDatabase(ctx))
	}
	if h.queue != nil {
		components = append(components, h.checkQueue())
	}
	components = append(components, h.checkSystem())

	return &HealthResponse{
		Status:     determineOverallStatus(components),
		Timestamp:  time.Now(),
		Version:    h.version,
		Uptime:     formatUptime(time.Since(h.startTime)),
		Components: components,
		Events:     metrics.GetSnapshot(),
	}
}

func (h *HealthChecker) checkRelays() *ComponentStatus {
	status := &ComponentStatus{Name: "relays", Details: make(map[string]interface{})}

	relays := h.pool.Relays()
	open := 0
	for _, r := range relays {
		status.Details[r.URL] = r.State.String()
		if r.State == relay.StateOpen {
			open++
		}
	}

	switch {
	case len(relays) == 0:
		status.Status = StatusUnhealthy
		status.Message = "No relays configured"
	case open == 0:
		status.Status = StatusUnhealthy
		status.Message = fmt.Sprintf("No relay open (0/%d)", len(relays))
	case open < len(relays):
		status.Status = StatusDegraded
		status.Message = fmt.Sprintf("%d/%d relays open", open, len(relays))
	default:
		status.Status = StatusHealthy
		status.Message = fmt.Sprintf("All %d relays open", open)
	}
	return status
}

func (h *HealthChecker) checkDatabase(ctx context.Context) *ComponentStatus {
	status := &ComponentStatus{Name: "database", Details: make(map[string]interface{})}

	if err := h.db.Ping(ctx); err != nil {
		status.Status = StatusUnhealthy
		status.Message = "Database connection failed"
		status.Details["error"] = err.Error()
		return status
	}

	stats := h.db.Stats()
	status.Details["open_connections"] = stats.OpenConnections
	status.Details["in_use"] = stats.InUse
	status.Details["idle"] = stats.Idle
	status.Details["max_open_connections"] = stats.MaxOpenConnections

	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		status.Status = StatusDegraded
		status.Message = "Database connection pool exhausted"
		return status
	}
	status.Status = StatusHealthy
	status.Message = "Database is healthy"
	return status
}

func (h *HealthChecker) checkQueue() *ComponentStatus {
	pending, capacity, dropped := h.queue.Pending(), h.queue.Capacity(), h.queue.Dropped()
	status := &ComponentStatus{
		Name:    "storage_queue",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d/%d queued, %d dropped", pending, capacity, dropped),
		Details: map[string]interface{}{
			"pending":  pending,
			"capacity": capacity,
			"dropped":  dropped,
		},
	}
	if capacity > 0 && pending >= capacity {
		status.Status = StatusDegraded
		status.Message = "Storage queue full, events are being dropped"
	}
	return status
}

func (h *HealthChecker) checkSystem() *ComponentStatus {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	allocMB := float64(m.Alloc) / 1024 / 1024

	return &ComponentStatus{
		Name:    "system",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d goroutines, %.1f MB allocated", runtime.NumGoroutine(), allocMB),
		Details: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"alloc_mb":   allocMB,
			"num_gc":     m.NumGC,
		},
	}
}

func determineOverallStatus(components []*ComponentStatus) HealthStatus {
	overall := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// formatUptime formats uptime duration as a human-readable string
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// HandleHealth is the HTTP handler for health checks. Unhealthy answers 503.
func (h *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.HealthCheckTimeout)
	defer cancel()

	resp := h.CheckHealth(ctx)
	statusCode := http.StatusOK
	if resp.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
		return
	}

	h.logger.Debug("Health check completed",
		zap.String("status", string(resp.Status)),
		zap.Int("status_code", statusCode))
}
