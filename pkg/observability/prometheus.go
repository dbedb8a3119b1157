package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// MetricsServer exposes the cache metrics on /metrics for long-running
// processes embedding the cache.
type MetricsServer struct {
	log    logrus.FieldLogger
	server *http.Server
}

// StartMetricsServer starts serving Prometheus metrics on addr in the
// background. Listen failures are logged, not fatal: metrics are never a
// reason to stop serving the cache.
func StartMetricsServer(log logrus.FieldLogger, addr string) *MetricsServer {
	sm := http.NewServeMux()
	sm.Handle("/metrics", promhttp.Handler())

	m := &MetricsServer{
		log: log,
		server: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 15 * time.Second,
			Handler:           sm,
		},
	}

	go func() {
		log.WithField("addr", addr).Info("Starting metrics server")

		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()

	return m
}

// Stop shuts the metrics server down, waiting for in-flight scrapes.
func (m *MetricsServer) Stop(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
