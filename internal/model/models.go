// The `model`s package is very atypical for projects written in go, but unfortunately
// cannot be avoided as it helps to avoid cyclic dependencies between the hookrun
// package and its storage. Types required by a library user such as `TestFunc`
// are reexported by the hookrun package.
package model

import (
	"time"
)

// Outcome is the result category of a single test.
type Outcome string

const (
	OutcomePassed            Outcome = "passed"
	OutcomeFailed            Outcome = "failed"
	OutcomeError             Outcome = "error"
	OutcomeSkipped           Outcome = "skipped"
	OutcomeExpectedFailure   Outcome = "expected-failure"
	OutcomeUnexpectedSuccess Outcome = "unexpected-success"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomePassed,
	OutcomeFailed,
	OutcomeError,
	OutcomeSkipped,
	OutcomeExpectedFailure,
	OutcomeUnexpectedSuccess,
}

// Failing reports whether the outcome marks a run as unsuccessful.
func (o Outcome) Failing() bool {
	return o == OutcomeFailed || o == OutcomeError || o == OutcomeUnexpectedSuccess
}

// RunRecord is the persisted summary of a single test run.
type RunRecord struct {
	// ID is the identifier of the test run.
	ID string `json:"id"`
	// TriggeredBy denotes the origin of the test run, e.g. cli, scheduled or http.
	TriggeredBy string `json:"triggeredBy"`
	// Successful is the overall verdict of the run.
	Successful bool `json:"successful"`
	// TestsRun counts the tests that were executed.
	TestsRun int `json:"testsRun"`
	// Start is the time when the run started executing.
	Start time.Time `json:"start"`
	// End is the time when the run finished executing.
	End time.Time `json:"end"`
	// DurationInMS is the wall clock duration of the run.
	DurationInMS int64 `json:"durationInMs"`
	// Tests contains the outcome of every test of the run.
	Tests []TestRecord `json:"tests,omitempty"`
}

// TestRecord is the persisted outcome of a single test.
type TestRecord struct {
	RunID  string `json:"runId"`
	TestID string `json:"testId"`
	// Outcome of the test.
	Outcome Outcome `json:"outcome"`
	// Details contains the failure traceback or skip reason.
	Details string `json:"details"`
	// Logs contains log messages written by the test itself.
	Logs         string    `json:"logs"`
	Start        time.Time `json:"start"`
	DurationInMS int64     `json:"durationInMs"`
}

// Counts returns the number of tests per outcome.
func (r RunRecord) Counts() map[Outcome]int {
	counts := map[Outcome]int{}

	for _, t := range r.Tests {
		counts[t.Outcome]++
	}

	return counts
}

type TestFunc func(t TB)

// TB is a carbon copy of the stdlib testing.TB interface. Unfortunately we cannot reuse
// the original testing.TB interface because it deliberately includes the `private()` function
// to prevent others from implementing it to allow them to add new functions over time without
// breaking anything.
type TB interface {
	Cleanup(func())
	Error(args ...any)
	Errorf(format string, args ...any)
	Fail()
	FailNow()
	Failed() bool
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Helper()
	Log(args ...any)
	Logf(format string, args ...any)
	Name() string
	Setenv(key, value string)
	Skip(args ...any)
	SkipNow()
	Skipf(format string, args ...any)
	Skipped() bool
	TempDir() string
}
