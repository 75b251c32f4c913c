package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dotnet-test-explorer/dte/types"
)

const (
	MetricsNamespace = "dte"
)

var (
	Debug bool = true

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of test runs started",
	}, []string{
		"run_id",
	})

	testResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_results_total",
		Help:      "Count of terminal test results",
	}, []string{
		"run_id",
		"state",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of test runs",
	}, []string{
		"run_id",
	})
)

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

func RecordRunStarted(runID string) {
	if Debug {
		log.Debug("metric inc", "m", "runs_total", "run_id", runID)
	}
	runsTotal.WithLabelValues(runID).Inc()
}

// RecordTestResult counts one terminal test event. Running transitions are
// not recorded.
func RecordTestResult(runID string, state types.TestState) {
	if !state.IsTerminal() {
		log.Error("RecordTestResult - non-terminal state", "state", state)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "test_results_total",
			"run_id", runID,
			"state", state)
	}
	testResultsTotal.WithLabelValues(runID, string(state)).Inc()
}

func RecordRunDuration(runID string, duration time.Duration) {
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}
