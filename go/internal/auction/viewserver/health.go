package viewserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/live-auction/go/internal/auction/remote"
	"github.com/rs/zerolog/log"
)

// StatsProvider reports remote source activity
type StatsProvider interface {
	Stats() remote.Stats
}

// HealthStatus is the /health response body
type HealthStatus struct {
	Healthy      bool       `json:"healthy"`
	LastUpdate   *time.Time `json:"last_update,omitempty"`
	Delivered    uint64     `json:"updates_delivered"`
	Pulls        int64      `json:"pulls"`
	PushFailures int        `json:"push_failures"`
	Viewers      int        `json:"viewers"`
	Errors       []string   `json:"errors"`
}

// HealthChecker builds a HealthStatus from the source and the viewer hub
type HealthChecker struct {
	stats             StatsProvider
	connectionManager *ConnectionManager
}

// NewHealthChecker creates a health checker. stats may be nil.
func NewHealthChecker(stats StatsProvider, connectionManager *ConnectionManager) *HealthChecker {
	return &HealthChecker{
		stats:             stats,
		connectionManager: connectionManager,
	}
}

// Check reports unhealthy while the last pull failed or the push stream is down
func (h *HealthChecker) Check() HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Viewers: h.connectionManager.ConnectionCount(),
		Errors:  []string{},
	}
	if h.stats == nil {
		return status
	}

	stats := h.stats.Stats()
	status.Delivered = stats.Delivered
	status.Pulls = stats.Pulls
	status.PushFailures = stats.PushFailures
	if !stats.LastUpdate.IsZero() {
		lastUpdate := stats.LastUpdate
		status.LastUpdate = &lastUpdate
	}

	if stats.PullError != "" {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("pull failed: %s", stats.PullError))
	}
	if stats.PushFailures > 0 {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("event stream down after %d attempts", stats.PushFailures))
	}
	return status
}

// ServeHTTP writes the health status, 503 when unhealthy
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check()

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
