package harness

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/harness/pkg/httputil"
	"github.com/platinummonkey/harness/pkg/observability"
)

// RegisterRoutes registers the report endpoint on the admin router.
// /report renders YAML unless JSON is asked for by ?format=json or the
// Accept header.
func (l *Loader) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/report", l.getReport).Methods("GET")
}

func (l *Loader) getReport(w http.ResponseWriter, r *http.Request) {
	format := httputil.Negotiate(r, httputil.FormatYAML)
	if err := httputil.Write(w, format, http.StatusOK, l.Snapshot()); err != nil {
		l.log.WithError(err).Warn("Failed to write report")
	}
}

// RegisterHealthChecks adds one readiness check per loaded instance. An
// instance is unhealthy once it failed.
func (l *Loader) RegisterHealthChecks(checker *observability.HealthChecker) {
	for _, inst := range l.Instances() {
		inst := inst
		checker.AddCheck(inst.String(), func(ctx context.Context) observability.ComponentStatus {
			if inst.State() == Failed {
				status := observability.ComponentStatus{Status: observability.StatusUnhealthy}
				if err := inst.Err(); err != nil {
					status.Message = err.Error()
				}
				return status
			}
			return observability.ComponentStatus{Status: observability.StatusHealthy, Message: inst.State().String()}
		})
	}
}
