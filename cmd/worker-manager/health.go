// cmd/worker-manager/health.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

type readinessCheck func(ctx context.Context) error

// newHealthMux serves liveness, readiness and Prometheus metrics.
func newHealthMux(checks map[string]readinessCheck, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		failed := runChecks(r.Context(), checks)
		if len(failed) > 0 {
			log.Warn("readiness check failed", zap.Any("checks", failed))
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not_ready", "checks": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// runChecks returns the error message of every failing dependency, keyed by name.
func runChecks(ctx context.Context, checks map[string]readinessCheck) map[string]string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := checks[name](cctx)
		cancel()
		if err != nil {
			failed[name] = err.Error()
		}
	}
	return failed
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
