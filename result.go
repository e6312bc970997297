package hookrun

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/raphi011/hookrun/internal/metric"
)

// TestFailure pairs a test with its formatted failure details.
type TestFailure struct {
	Test    Reportable
	Details string
}

// TestSkip pairs a test with the reason it was skipped.
type TestSkip struct {
	Test   Reportable
	Reason string
}

// Reporter renders outcomes while a run is in progress.
type Reporter interface {
	StartTest(test Reportable)
	AddOutcome(test Reportable, outcome Outcome, details string)
	PrintErrors(result *Result)
}

// Result collects the outcomes of a run. It also carries the fixture
// tracking state of the suites that run against it. The zero value is
// ready to use; NewResult binds the events to a session's hooks.
type Result struct {
	TestsRun            int
	Successes           []Reportable
	Failures            []TestFailure
	Errors              []TestFailure
	Skipped             []TestSkip
	ExpectedFailures    []TestFailure
	UnexpectedSuccesses []Reportable

	// Failfast stops the run on the first failure, error or unexpected success.
	Failfast bool
	// Buffer keeps the logs of a test and only reports them if it fails.
	Buffer bool
	// Output receives test logs as they are written unless Buffer is set.
	Output io.Writer

	hooks      *Hooks
	reporter   Reporter
	log        *slog.Logger
	shouldStop atomic.Bool
	fixtures   fixtureState
	records    []TestRecord
}

// NewResult creates an empty result whose tests fire their events on hooks.
func NewResult(hooks *Hooks, log *slog.Logger) *Result {
	if log == nil {
		log = slog.Default()
	}

	return &Result{
		Successes:           []Reportable{},
		Failures:            []TestFailure{},
		Errors:              []TestFailure{},
		Skipped:             []TestSkip{},
		ExpectedFailures:    []TestFailure{},
		UnexpectedSuccesses: []Reportable{},
		hooks:               hooks,
		log:                 log,
		fixtures:            newFixtureState(),
		records:             []TestRecord{},
	}
}

// prepare fills in what a zero Result lacks, so that a Result{} can be
// run against directly. Its events go to a private registry.
func (r *Result) prepare() {
	if r.hooks == nil {
		r.hooks = NewHooks()
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.fixtures.classSetupFailed == nil {
		r.fixtures.classSetupFailed = map[*Class]bool{}
	}
	if r.fixtures.classTornDown == nil {
		r.fixtures.classTornDown = map[*Class]bool{}
	}
}

// SetReporter sets the reporter notified about every outcome.
func (r *Result) SetReporter(reporter Reporter) {
	r.reporter = reporter
}

// Stop makes the suites stop before their next test.
func (r *Result) Stop() {
	r.shouldStop.Store(true)
}

func (r *Result) ShouldStop() bool {
	return r.shouldStop.Load()
}

func (r *Result) StartTest(test Reportable) {
	r.TestsRun++

	if r.reporter != nil {
		r.reporter.StartTest(test)
	}
}

func (r *Result) StopTest(_ Reportable) {}

// StopTestRun prints the collected errors through the reporter.
func (r *Result) StopTestRun() {
	if r.reporter != nil {
		r.reporter.PrintErrors(r)
	}
}

func (r *Result) AddSuccess(test Reportable) {
	r.add(test, OutcomePassed, "")
}

func (r *Result) AddFailure(test Reportable, details string) {
	r.add(test, OutcomeFailed, details)
}

func (r *Result) AddError(test Reportable, details string) {
	r.add(test, OutcomeError, details)
}

func (r *Result) AddSkip(test Reportable, reason string) {
	r.add(test, OutcomeSkipped, reason)
}

func (r *Result) AddExpectedFailure(test Reportable, details string) {
	r.add(test, OutcomeExpectedFailure, details)
}

func (r *Result) AddUnexpectedSuccess(test Reportable) {
	r.add(test, OutcomeUnexpectedSuccess, "")
}

func (r *Result) add(test Reportable, outcome Outcome, details string) {
	switch outcome {
	case OutcomePassed:
		r.Successes = append(r.Successes, test)
	case OutcomeFailed:
		r.Failures = append(r.Failures, TestFailure{Test: test, Details: details})
	case OutcomeError:
		r.Errors = append(r.Errors, TestFailure{Test: test, Details: details})
	case OutcomeSkipped:
		r.Skipped = append(r.Skipped, TestSkip{Test: test, Reason: details})
	case OutcomeExpectedFailure:
		r.ExpectedFailures = append(r.ExpectedFailures, TestFailure{Test: test, Details: details})
	case OutcomeUnexpectedSuccess:
		r.UnexpectedSuccesses = append(r.UnexpectedSuccesses, test)
	}

	if _, ok := test.(fixtureError); ok {
		r.records = append(r.records, TestRecord{TestID: test.ID(), Outcome: outcome, Details: details, Start: time.Now()})
	}

	metric.TestsRunTotal.WithLabelValues(string(outcome)).Inc()

	if r.reporter != nil {
		r.reporter.AddOutcome(test, outcome, details)
	}

	if r.Failfast && outcome.Failing() {
		r.Stop()
	}
}

func (r *Result) addOutcome(test *TestCase, outcome Outcome, details, logs string, start time.Time, took time.Duration) {
	r.records = append(r.records, TestRecord{
		TestID:       test.ID(),
		Outcome:      outcome,
		Details:      details,
		Logs:         logs,
		Start:        start,
		DurationInMS: took.Milliseconds(),
	})

	r.add(test, outcome, details)
}

// Records returns one record per reported outcome in reporting order.
func (r *Result) Records() []TestRecord {
	out := make([]TestRecord, len(r.records))
	copy(out, r.records)
	return out
}

// WasSuccessful reports whether no test failed, errored or unexpectedly
// succeeded.
func (r *Result) WasSuccessful() bool {
	return len(r.Failures) == 0 && len(r.Errors) == 0 && len(r.UnexpectedSuccesses) == 0
}

// NewRunRecord summarizes a finished run for storage.
func NewRunRecord(id, triggeredBy string, result *Result, start, end time.Time) RunRecord {
	tests := result.Records()
	for i := range tests {
		tests[i].RunID = id
	}

	return RunRecord{
		ID:           id,
		TriggeredBy:  triggeredBy,
		Successful:   result.WasSuccessful(),
		TestsRun:     result.TestsRun,
		Start:        start,
		End:          end,
		DurationInMS: end.Sub(start).Milliseconds(),
		Tests:        tests,
	}
}
