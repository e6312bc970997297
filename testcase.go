package hookrun

import (
	"fmt"
	"slices"
	"time"
)

// Stage is the part of a test that was executing when it failed.
type Stage string

const (
	StageSetUp    Stage = "setUp"
	StageCall     Stage = "call"
	StageTearDown Stage = "tearDown"
	StageCleanup  Stage = "cleanup"
)

// TestCase is a single runnable test: a test function of a class, or a
// standalone function of a module.
type TestCase struct {
	class         *Class
	module        *Module
	name          string
	fn            TestFunc
	expectFailure bool
}

// NewTestCase returns the test of class with the given name.
func NewTestCase(class *Class, name string) (*TestCase, error) {
	fn, ok := class.test(name)
	if !ok {
		return nil, fmt.Errorf("class %s has no test %q: %w", class, name, ErrInvalidTest)
	}

	return &TestCase{
		class:         class,
		module:        class.module,
		name:          name,
		fn:            fn,
		expectFailure: slices.Contains(class.ExpectedFailures, name),
	}, nil
}

// NewFunctionTest wraps a standalone function. module may be nil.
func NewFunctionTest(module *Module, name string, fn TestFunc) *TestCase {
	if name == "" {
		name = getFunctionName(fn)
	}

	return &TestCase{module: module, name: name, fn: fn}
}

func (tc *TestCase) isTest() {}

func (tc *TestCase) Name() string {
	return tc.name
}

func (tc *TestCase) Class() *Class {
	return tc.class
}

func (tc *TestCase) Module() *Module {
	return tc.module
}

// ID returns the dotted path of the test, e.g. `module.Class.TestName`.
func (tc *TestCase) ID() string {
	switch {
	case tc.class != nil:
		return tc.class.String() + "." + tc.name
	case tc.module != nil:
		return tc.module.Name + "." + tc.name
	}
	return tc.name
}

// Description returns `TestName (module.Class)`.
func (tc *TestCase) Description() string {
	switch {
	case tc.class != nil:
		return fmt.Sprintf("%s (%s)", tc.name, tc.class)
	case tc.module != nil:
		return fmt.Sprintf("%s (%s)", tc.name, tc.module.Name)
	}
	return tc.name
}

func (tc *TestCase) String() string {
	return tc.Description()
}

func (tc *TestCase) CountTestCases() int {
	return 1
}

// Equal reports whether both refer to the same test function.
func (tc *TestCase) Equal(other *TestCase) bool {
	if tc == nil || other == nil {
		return tc == other
	}
	return tc.class == other.class && tc.module == other.module && tc.name == other.name
}

// Run executes the test with its per-test set up, tear down and cleanups
// and reports the outcome to result. Class and module fixtures are
// handled by the suite.
func (tc *TestCase) Run(result *Result) {
	result.prepare()

	log := result.log.With("test-id", tc.ID())

	var output = result.Output
	if result.Buffer {
		output = nil
	}

	t := newT(tc.ID(), output, log)

	start := time.Now()

	result.hooks.Dispatch(HookStartTest, &StartTestEvent{Test: tc, Result: result, StartTime: start})
	result.StartTest(tc)

	res, stage := tc.execute(t, result)

	if res.outcome == OutcomeFailed || res.outcome == OutcomeError || res.outcome == OutcomeExpectedFailure {
		result.hooks.Dispatch(HookOnTestFail, &OnTestFailEvent{
			Test:     tc,
			Result:   result,
			Stage:    stage,
			Err:      res.err,
			Details:  res.details,
			Expected: res.outcome == OutcomeExpectedFailure,
		})
	}

	details := res.details
	if result.Buffer && res.outcome.Failing() && t.Logs() != "" {
		details += "\n\nLogs:\n" + t.Logs()
	}

	stop := time.Now()

	result.addOutcome(tc, res.outcome, details, t.Logs(), start, stop.Sub(start))

	result.hooks.Dispatch(HookStopTest, &StopTestEvent{
		Test:      tc,
		Result:    result,
		StopTime:  stop,
		TimeTaken: stop.Sub(start),
		Outcome:   res.outcome,
		Details:   res.details,
		Err:       res.err,
	})

	result.StopTest(tc)
}

func (tc *TestCase) execute(t *T, result *Result) (stageResult, Stage) {
	if tc.class != nil && tc.class.Skip != "" {
		return stageResult{outcome: OutcomeSkipped, details: tc.class.Skip}, StageSetUp
	}

	res, stage := tc.executeStages(t, result)

	if err := t.runCleanups(); err != nil {
		switch res.outcome {
		case OutcomePassed, OutcomeSkipped, OutcomeUnexpectedSuccess:
			res = stageResult{outcome: OutcomeError, details: err.Error(), err: err}
			stage = StageCleanup
		default:
			res.details += "\n" + err.Error()
		}
	}

	return res, stage
}

func (tc *TestCase) executeStages(t *T, result *Result) (stageResult, Stage) {
	if tc.class != nil && tc.class.SetUp != nil {
		if res := t.runStage(func() { tc.class.SetUp(t) }); res.outcome != OutcomePassed {
			return res, StageSetUp
		}
	}

	result.hooks.Dispatch(HookAfterSetUp, &AfterSetUpEvent{Test: tc, Result: result, Time: time.Now()})

	res := t.runStage(func() { tc.fn(t) })

	if tc.expectFailure {
		switch res.outcome {
		case OutcomeFailed, OutcomeError:
			res.outcome = OutcomeExpectedFailure
		case OutcomePassed:
			res.outcome = OutcomeUnexpectedSuccess
		}
	}

	result.hooks.Dispatch(HookBeforeTearDown, &BeforeTearDownEvent{Test: tc, Result: result, Time: time.Now()})

	if tc.class != nil && tc.class.TearDown != nil {
		tearDown := t.runStage(func() { tc.class.TearDown(t) })

		if tearDown.outcome == OutcomeFailed || tearDown.outcome == OutcomeError {
			switch res.outcome {
			case OutcomePassed, OutcomeUnexpectedSuccess, OutcomeExpectedFailure:
				return tearDown, StageTearDown
			}
		}
	}

	return res, StageCall
}
