package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"echo-helper/utils/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	TicketTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_ticket_transitions_total",
		Help: "number of successful ticket transitions",
	}, []string{"transition"})

	TicketRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_ticket_rejections_total",
		Help: "number of rejected ticket transitions",
	}, []string{"transition"})

	GrantsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_grants_scheduled_total",
		Help: "number of grant records written",
	}, []string{"kind"})

	GrantsRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_grants_revoked_total",
		Help: "number of grants revoked by reconciliation",
	}, []string{"kind"})

	GrantRevokeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_grant_revoke_failures_total",
		Help: "number of failed revoke attempts, retried on the next pass",
	}, []string{"kind"})

	PendingGrants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "echo_grants_pending",
		Help: "grant records seen by the last reconciliation pass",
	}, []string{"kind"})

	LevelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "echo_level_ups_total",
		Help: "number of level increments",
	})

	StreamWatchers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "echo_stream_watchers",
		Help: "live-stream announcements currently watched",
	})
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving prometheus metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
