package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fhdraw_scans_total",
		Help: "Completed ranking passes over the provider match list.",
	})
	MatchesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fhdraw_matches_scanned_total",
		Help: "Matches evaluated across all ranking passes.",
	})
	OddsFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fhdraw_odds_fetch_failures_total",
		Help: "First-half odds fetches that failed after exhausting retries. Fixtures without a first-half market are not counted.",
	})
	CandidatesFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fhdraw_candidates_total",
		Help: "Candidates that cleared the EV threshold.",
	})
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fhdraw_bets_placed_total",
		Help: "Bets recorded in the ledger.",
	})
	BetsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fhdraw_bets_settled_total",
		Help: "Bets resolved or manually adjusted.",
	})
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

func newHandler(healthFn HealthFunc) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// StartServer runs a small HTTP server exposing /metrics and /healthz.
// Meant to be started once from main; it serves in a background goroutine
// and logs when serving fails, such as on a port conflict.
func StartServer(port string, healthFn HealthFunc, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newHandler(healthFn),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.String("port", port), zap.Error(err))
		}
	}()

	return srv
}
