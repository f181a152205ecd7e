package observability

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
	// Registerer receives the client collectors; nil keeps metrics off.
	Registerer prometheus.Registerer
}

// ShutdownFunc allows callers to tear down any observability exporters.
type ShutdownFunc func(context.Context) error

var (
	loggerMu           sync.RWMutex
	instrumentationLog *slog.Logger
)

func currentLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return instrumentationLog
}

// Setup installs the span logger and, when enabled, registers the client
// metrics. The returned Metrics is nil when metrics are disabled; every
// Metrics method accepts a nil receiver.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Metrics, ShutdownFunc, error) {
	loggerMu.Lock()
	instrumentationLog = logger
	loggerMu.Unlock()

	noop := func(context.Context) error { return nil }

	if !cfg.Enabled || cfg.Registerer == nil {
		if logger != nil {
			logger.InfoContext(ctx, "[OBS] metrics disabled")
		}
		return nil, noop, nil
	}

	metrics, err := NewMetrics(cfg.Registerer)
	if err != nil {
		return nil, noop, err
	}
	if logger != nil {
		logger.InfoContext(ctx, "[OBS] metrics registered")
	}

	shutdown := func(context.Context) error {
		metrics.unregister(cfg.Registerer)
		return nil
	}
	return metrics, shutdown, nil
}
