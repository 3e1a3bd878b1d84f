package ttlcli

import (
	"context"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // profiler only listens on the configured profilerAddr
	"time"

	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/bsv-blockchain/utxo-ttl/util/health"
	"github.com/felixge/fgprof"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// startMonitoring serves pprof, fgprof, gocore stats and /health on profilerAddr, plus prometheus
// metrics on prometheusEndpoint when set. The returned func shuts the server down.
func startMonitoring(logger ulogger.Logger, tSettings *settings.Settings, checks ...health.Check) func() {
	if tSettings.ProfilerAddr == "" {
		return func() {}
	}

	mux := http.DefaultServeMux

	gocore.RegisterStatsHandlers()
	mux.Handle("/debug/fgprof", fgprof.Handler())
	mux.Handle("/health", health.Handler(checks...))

	if tSettings.PrometheusEndpoint != "" {
		logger.Infof("Starting prometheus endpoint on http://%s%s", tSettings.ProfilerAddr, tSettings.PrometheusEndpoint)
		mux.Handle(tSettings.PrometheusEndpoint, promhttp.Handler())
	}

	server := &http.Server{
		Addr:         tSettings.ProfilerAddr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Infof("Profiler listening on http://%s/debug/pprof", tSettings.ProfilerAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("profiler server stopped: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(ctx)
	}
}
