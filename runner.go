package hookrun

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/raphi011/hookrun/internal/metric"
)

var (
	separator1 = strings.Repeat("=", 70)
	separator2 = strings.Repeat("-", 70)

	okColor      = color.New(color.FgGreen).SprintFunc()
	failedColor  = color.New(color.FgRed, color.Bold).SprintFunc()
	skippedColor = color.New(color.FgYellow).SprintFunc()
)

// Verbosities maps the named verbosities accepted in configuration.
var Verbosities = map[string]int{
	"quiet":   0,
	"normal":  1,
	"verbose": 2,
}

// allVerbosities marks messages that are written regardless of verbosity.
var allVerbosities = []int{0, 1, 2}

// TextRunner runs a test tree and writes a human readable report to Stream.
type TextRunner struct {
	Stream io.Writer
	// Verbosity 0 only prints the verdict, 1 prints a character per test
	// and 2 a line per test.
	Verbosity int
	Failfast  bool
	Buffer    bool
	// TriggeredBy names the origin of the run, e.g. cli, http or scheduled.
	TriggeredBy string

	session *Session
}

// NewRunner creates the runner of the session. Messages sent through the
// session before a runner existed are written once it is created.
func (s *Session) NewRunner() *TextRunner {
	r := &TextRunner{
		Stream:      s.stdout,
		Verbosity:   s.verbosity,
		TriggeredBy: "cli",
		session:     s,
	}

	s.runner = r

	s.hooks.Dispatch(HookRunnerCreated, &RunnerCreatedEvent{Runner: r})

	s.flushMessages()

	return r
}

// Session returns the session the runner belongs to.
func (r *TextRunner) Session() *Session {
	return r.session
}

// Message writes msg if the verbosity of the runner is one of the given
// verbosities (1 and 2 if none are given). Handlers of the message hook
// can intercept the message.
func (r *TextRunner) Message(msg string, verbosity ...int) {
	if len(verbosity) == 0 {
		verbosity = []int{1, 2}
	}

	event := &MessageEvent{Runner: r, Message: msg, Verbosity: verbosity}

	r.session.hooks.Dispatch(HookMessage, event)

	if event.Handled() {
		return
	}

	if slices.Contains(verbosity, r.Verbosity) {
		_, _ = io.WriteString(r.Stream, msg)
	}
}

func (r *TextRunner) makeResult() *Result {
	result := NewResult(r.session.hooks, r.session.log)
	result.Failfast = r.Failfast
	result.Buffer = r.Buffer
	result.Output = r.Stream
	result.SetReporter(&textReporter{runner: r})

	return result
}

// Run executes test and prints the summary.
func (r *TextRunner) Run(test Test) *Result {
	hooks := r.session.hooks

	result := r.makeResult()

	r.session.interrupts.Reset()
	r.session.interrupts.Register(result)

	start := time.Now()

	event := &StartTestRunEvent{
		Runner:    r,
		Suite:     test,
		Result:    result,
		StartTime: start,
		ExecuteTests: func(t Test, res *Result) {
			t.Run(res)
		},
	}

	hooks.Dispatch(HookStartTestRun, event)

	var stop time.Time

	func() {
		metric.TestRunsRunning.Inc()

		defer func() {
			metric.TestRunsRunning.Dec()

			stop = time.Now()

			hooks.Dispatch(HookStopTestRun, &StopTestRunEvent{
				Runner:    r,
				Result:    result,
				StopTime:  stop,
				TimeTaken: stop.Sub(start),
			})

			result.StopTestRun()
		}()

		if !event.Handled() && event.Suite != nil {
			event.ExecuteTests(event.Suite, result)
		}
	}()

	report := &ReportEvent{Runner: r, Result: result, StopTime: stop, TimeTaken: stop.Sub(start)}

	hooks.Dispatch(HookBeforeSummaryReport, report)

	r.printSummary(result, stop.Sub(start))

	hooks.Dispatch(HookAfterSummaryReport, &ReportEvent{Runner: r, Result: result, StopTime: stop, TimeTaken: stop.Sub(start)})

	metric.TestRunsTotal.WithLabelValues(metric.RunResult(result.WasSuccessful())).Inc()

	return result
}

func (r *TextRunner) printSummary(result *Result, took time.Duration) {
	r.Message(separator2+"\n", allVerbosities...)

	plural := "s"
	if result.TestsRun == 1 {
		plural = ""
	}

	r.Message(fmt.Sprintf("Ran %d test%s in %.3fs\n", result.TestsRun, plural, took.Seconds()), allVerbosities...)
	r.Message("\n", allVerbosities...)

	infos := []string{}

	if !result.WasSuccessful() {
		r.Message(failedColor("FAILED"), allVerbosities...)

		if n := len(result.Failures); n > 0 {
			infos = append(infos, fmt.Sprintf("failures=%d", n))
		}
		if n := len(result.Errors); n > 0 {
			infos = append(infos, fmt.Sprintf("errors=%d", n))
		}
	} else {
		r.Message(okColor("OK"), allVerbosities...)
	}

	if n := len(result.Skipped); n > 0 {
		infos = append(infos, fmt.Sprintf("skipped=%d", n))
	}
	if n := len(result.ExpectedFailures); n > 0 {
		infos = append(infos, fmt.Sprintf("expected failures=%d", n))
	}
	if n := len(result.UnexpectedSuccesses); n > 0 {
		infos = append(infos, fmt.Sprintf("unexpected successes=%d", n))
	}

	if len(infos) > 0 {
		r.Message(fmt.Sprintf(" (%s)\n", strings.Join(infos, ", ")), allVerbosities...)
	} else {
		r.Message("\n", allVerbosities...)
	}
}

// textReporter prints a character per test at verbosity 1 and a line
// per test at verbosity 2.
type textReporter struct {
	runner *TextRunner
}

func (t *textReporter) showAll() bool {
	return t.runner.Verbosity > 1
}

func (t *textReporter) dots() bool {
	return t.runner.Verbosity == 1
}

func (t *textReporter) StartTest(test Reportable) {
	if t.showAll() {
		t.runner.Message(test.Description()+" ... ", 2)
	}
}

func (t *textReporter) AddOutcome(_ Reportable, outcome Outcome, details string) {
	switch {
	case t.showAll():
		t.runner.Message(outcomeWord(outcome, details)+"\n", 2)
	case t.dots():
		t.runner.Message(outcomeLetter(outcome), 1)
	}
}

func (t *textReporter) PrintErrors(result *Result) {
	if t.dots() || t.showAll() {
		t.runner.Message("\n", 1, 2)
	}

	t.printErrorList("ERROR", result.Errors)
	t.printErrorList("FAIL", result.Failures)
}

func (t *textReporter) printErrorList(flavour string, failures []TestFailure) {
	for _, f := range failures {
		t.runner.Message(separator1+"\n", allVerbosities...)
		t.runner.Message(fmt.Sprintf("%s: %s\n", flavour, f.Test.Description()), allVerbosities...)
		t.runner.Message(separator2+"\n", allVerbosities...)
		t.runner.Message(f.Details+"\n", allVerbosities...)
	}
}

func outcomeWord(outcome Outcome, details string) string {
	switch outcome {
	case OutcomePassed:
		return okColor("ok")
	case OutcomeFailed:
		return failedColor("FAIL")
	case OutcomeError:
		return failedColor("ERROR")
	case OutcomeSkipped:
		return skippedColor("skipped '" + details + "'")
	case OutcomeExpectedFailure:
		return "expected failure"
	case OutcomeUnexpectedSuccess:
		return "unexpected success"
	}
	return string(outcome)
}

func outcomeLetter(outcome Outcome) string {
	switch outcome {
	case OutcomePassed:
		return "."
	case OutcomeFailed:
		return "F"
	case OutcomeError:
		return "E"
	case OutcomeSkipped:
		return "s"
	case OutcomeExpectedFailure:
		return "x"
	case OutcomeUnexpectedSuccess:
		return "u"
	}
	return "?"
}
