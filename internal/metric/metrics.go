package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TestRunsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hookrun_test_runs_running",
		Help: "The number of test runs currently running",
	})

	TestRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookrun_test_runs_total",
		Help: "The number of test runs since the process was started",
	}, []string{"result"})

	TestsRunTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookrun_tests_run_total",
		Help: "The number of test outcomes reported since the process was started",
	}, []string{"outcome"})

	FixtureErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookrun_fixture_errors_total",
		Help: "The number of failed class and module fixtures",
	}, []string{"scope"})

	HookDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookrun_hook_dispatch_total",
		Help: "The number of events dispatched per hook",
	}, []string{"hook"})
)

// RunResult returns the label value of a finished run.
func RunResult(successful bool) string {
	if successful {
		return "passed"
	}
	return "failed"
}
