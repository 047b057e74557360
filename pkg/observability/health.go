package observability

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/harness/pkg/httputil"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const (
	readinessTimeout = 5 * time.Second
	checkTimeout     = 2 * time.Second
)

// ComponentStatus is the health of one plugin instance or other component
type ComponentStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is the aggregated health of a harness run
type HealthStatus struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	RunID      string                     `json:"run_id,omitempty"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// CheckFunc checks one component
type CheckFunc func(ctx context.Context) ComponentStatus

// HealthChecker checks named components for /readyz
type HealthChecker struct {
	version string
	runID   string

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func NewHealthChecker(version, runID string) *HealthChecker {
	return &HealthChecker{
		version: version,
		runID:   runID,
		checks:  make(map[string]CheckFunc),
	}
}

// AddCheck registers a check, replacing any check of the same name
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	h.checks[name] = check
	h.mu.Unlock()
}

// Check runs every component check concurrently, each under its own timeout.
// The worst component status becomes the overall status.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	checks := make([]CheckFunc, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		checks = append(checks, h.checks[name])
	}
	h.mu.RUnlock()

	results := make([]ComponentStatus, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check CheckFunc) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			results[i] = check(pctx)
		}(i, check)
	}
	wg.Wait()

	status := HealthStatus{
		Status:     StatusHealthy,
		Timestamp:  time.Now(),
		RunID:      h.runID,
		Version:    h.version,
		Components: make(map[string]ComponentStatus, len(names)),
	}
	for i, name := range names {
		result := results[i]
		if result.Timestamp.IsZero() {
			result.Timestamp = status.Timestamp
		}
		status.Components[name] = result
		status.Status = worse(status.Status, result.Status)
	}
	return status
}

func severity(status string) int {
	switch status {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

func worse(a, b string) string {
	if severity(b) > severity(a) {
		return b
	}
	return a
}

// Liveness answers 200 while the admin endpoint is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		RunID:     h.runID,
		Version:   h.version,
	})
}

// Readiness answers 503 while any component is unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}

// RegisterHealthRoutes mounts /healthz and /readyz
func RegisterHealthRoutes(router *mux.Router, checker *HealthChecker) {
	router.HandleFunc("/healthz", checker.Liveness).Methods("GET")
	router.HandleFunc("/readyz", checker.Readiness).Methods("GET")
}
