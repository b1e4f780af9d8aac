package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

// Pinger is a dependency whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    *sqlx.DB
	diary Pinger
}

// NewHealthHandler takes an optional diary pinger. The database decides the
// status code; an unreachable diary only degrades the report.
func NewHealthHandler(db *sqlx.DB, diary Pinger) *HealthHandler {
	return &HealthHandler{db: db, diary: diary}
}

// liveness
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "OK"}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func check(ctx context.Context, fn func(context.Context) error) CheckEntry {
	start := time.Now()
	err := fn(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}

// readiness
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]CheckEntry{
		"postgres": check(ctx, h.db.PingContext),
	}
	if h.diary != nil {
		components["diary"] = check(ctx, h.diary.Ping)
	}

	status := HealthHealthy
	statusCode := http.StatusOK
	if components["postgres"].Status == HealthUnhealthy {
		status = HealthUnhealthy
		statusCode = http.StatusServiceUnavailable
	} else if entry, ok := components["diary"]; ok && entry.Status == HealthUnhealthy {
		status = HealthDegraded
	}

	resp := HealthResponse{
		Status:     status,
		CheckedAt:  time.Now(),
		Components: components,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
