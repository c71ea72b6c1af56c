package api

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Storage       string            `json:"storage"`
	History       string            `json:"history"`
}

// HealthChecker is implemented by the analysis client and the database.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// ConnectionStatus is implemented by the MQTT publisher.
type ConnectionStatus interface {
	IsConnected() bool
}

// HealthDeps lists what the health endpoint probes. DB, Storage and MQTT may
// be nil when those backends are not configured.
type HealthDeps struct {
	Upstream    HealthChecker
	DB          HealthChecker
	Storage     HealthChecker
	MQTT        ConnectionStatus
	StorageType string
}

type HealthHandler struct {
	deps      HealthDeps
	version   string
	startTime time.Time
}

func NewHealthHandler(deps HealthDeps, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{deps: deps, version: version, startTime: startTime}
}

// ServeHTTP reports "unhealthy" (503) when the database is configured and
// down, and "degraded" (200) when only the upstream API, bucket or broker is.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK
	history := "memory"

	// Database check
	if h.deps.DB != nil {
		history = "postgres"
		if err := h.deps.DB.HealthCheck(ctx); err != nil {
			checks["database"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	// Analysis API check
	if h.deps.Upstream != nil {
		if err := h.deps.Upstream.HealthCheck(ctx); err != nil {
			checks["analysis_api"] = "unreachable"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["analysis_api"] = "ok"
		}
	}

	// Artifact storage check (S3 only; the local store has nothing to probe)
	if h.deps.Storage != nil {
		if err := h.deps.Storage.HealthCheck(ctx); err != nil {
			checks["storage"] = "error"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["storage"] = "ok"
		}
	}

	// MQTT check
	if h.deps.MQTT != nil {
		if h.deps.MQTT.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Storage:       h.deps.StorageType,
		History:       history,
	})
}
