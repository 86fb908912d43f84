package core

import (
	"log/slog"
	"time"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricRequestCount         = []string{"dvsim", "request", "count"}
	MetricRequestErrorCount    = []string{"dvsim", "request", "error", "count"}
	MetricServeCount           = []string{"dvsim", "serve", "count"}
	MetricServeErrorCount      = []string{"dvsim", "serve", "error", "count"}
	MetricNeighbourPullErrors  = []string{"dvsim", "neighbour", "pull", "error", "count"}
	MetricRelaxChanges         = []string{"dvsim", "relax", "changes"}
	MetricStepCount            = []string{"dvsim", "step", "count"}
	MetricStepLatency          = []string{"dvsim", "step", "latency"}
	MetricDispatchLatency      = []string{"dvsim", "dispatch", "latency"}
	MetricConvergenceStepCount = []string{"dvsim", "convergence", "steps"}
)

type TelemetryLabel string

var (
	LabelKind  TelemetryLabel = "kind"
	LabelNode  TelemetryLabel = "node"
	LabelError TelemetryLabel = "error"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}

// SetupMetrics installs an in-memory sink as the global metrics sink. Sending SIGUSR1 to the
// process dumps the collected values to stderr.
func SetupMetrics(service string) (*metrics.InmemSink, error) {
	inm := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(inm)
	cfg := metrics.DefaultConfig(service)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	_, err := metrics.NewGlobal(cfg, inm)
	if err != nil {
		return nil, err
	}
	return inm, nil
}
