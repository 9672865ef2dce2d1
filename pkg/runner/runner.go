// Package runner executes untrusted Go programs and test suites under a hard
// wall-clock timeout inside throwaway workspaces.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultTimeout bounds every execution unless the request overrides it.
const DefaultTimeout = 10 * time.Second

// TimeoutIndicator prefixes every synthesized timeout message.
const TimeoutIndicator = "TimeoutError"

// Workspace file names used for test runs.
const (
	ModuleFile    = "go.mod"
	SolutionFile  = "solution.go"
	TestSuiteFile = "solution_test.go"
	ModuleName    = "solution"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "runner",
		Name:      "run_duration_seconds",
		Help:      "Duration of isolated runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "mode"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "runner",
		Name:      "run_timeouts_total",
		Help:      "Number of runs terminated by the wall-clock timeout",
	}, []string{"backend", "mode"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "runner",
		Name:      "run_failures_total",
		Help:      "Number of runs that exited with a non-zero status",
	}, []string{"backend", "mode"})
)

// Runner runs test suites against a submission, or a standalone script.
type Runner interface {
	RunTests(ctx context.Context, req TestRequest) (Result, error)
	RunScript(ctx context.Context, req ScriptRequest) (Result, error)
}

// TestRequest pairs an already sanitized submission with its test suite.
type TestRequest struct {
	Source    string
	TestSuite string
	Timeout   time.Duration
}

// ScriptRequest points at a program file owned by the caller.
type ScriptRequest struct {
	Path    string
	Timeout time.Duration
}

// Result classifies one execution. Error is empty on success, holds the
// captured stderr when the process exits non-zero, and a synthesized timeout
// message embedding partial stdout when the deadline is hit.
type Result struct {
	Output   string
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Error    string
}

// Failed reports whether the execution did not succeed.
func (r Result) Failed() bool {
	return r.Error != ""
}

// TimeoutMessage builds the error text recorded for runs that hit the deadline.
func TimeoutMessage(timeout time.Duration, partialStdout string) string {
	return fmt.Sprintf("%s: the run exceeded %s and was terminated.\n"+
		"This likely indicates an infinite loop or a very slow algorithm.\n\n"+
		"Output captured before timeout:\n%s", TimeoutIndicator, timeout, strings.TrimSpace(partialStdout))
}

// classify fills Error from the raw process outcome.
func classify(result *Result, timeout time.Duration) {
	switch {
	case result.TimedOut:
		result.Error = TimeoutMessage(timeout, result.Stdout)
	case result.ExitCode != 0:
		result.Error = strings.TrimSpace(result.Stderr)
		if result.Error == "" {
			result.Error = fmt.Sprintf("process exited with code %d", result.ExitCode)
		}
	default:
		result.Error = ""
	}
}

func effectiveTimeout(requested, configured time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	if configured > 0 {
		return configured
	}
	return DefaultTimeout
}

func observe(backend, mode string, result Result) {
	runDuration.WithLabelValues(backend, mode).Observe(result.Duration.Seconds())
	switch {
	case result.TimedOut:
		runTimeouts.WithLabelValues(backend, mode).Inc()
	case result.ExitCode != 0:
		runFailures.WithLabelValues(backend, mode).Inc()
	}
}
