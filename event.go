package hookrun

import (
	"time"
)

// Event is passed to every handler of a hook. Handlers must tolerate
// fields being added to event types over time.
type Event interface {
	Handled() bool
	SetHandled()
}

// BaseEvent carries the handled flag and is embedded by all events.
type BaseEvent struct {
	handled bool
}

func (e *BaseEvent) Handled() bool {
	return e.handled
}

// SetHandled stops the dispatch after the current handler returns.
func (e *BaseEvent) SetHandled() {
	e.handled = true
}

// PluginsLoadedEvent is fired once all plugins are loaded and the
// command line has been parsed.
type PluginsLoadedEvent struct {
	BaseEvent
	Session *Session
	Plugins []Plugin
}

// HandleFileEvent is fired for every file found during discovery.
// Handlers can return a Test or append to ExtraTests.
type HandleFileEvent struct {
	BaseEvent
	Loader            *Loader
	Name              string
	Path              string
	Pattern           string
	TopLevelDirectory string
	ExtraTests        []Test
}

// MatchPathEvent decides whether a file matches the discovery pattern.
// Handlers that claim the event return a bool.
type MatchPathEvent struct {
	BaseEvent
	Name    string
	Path    string
	Pattern string
}

type LoadFromModuleEvent struct {
	BaseEvent
	Loader     *Loader
	Module     *Module
	ExtraTests []Test
}

type LoadFromTestCaseEvent struct {
	BaseEvent
	Loader     *Loader
	Class      *Class
	ExtraTests []Test
}

type LoadFromNameEvent struct {
	BaseEvent
	Loader     *Loader
	Name       string
	Module     *Module
	ExtraTests []Test
}

type LoadFromNamesEvent struct {
	BaseEvent
	Loader     *Loader
	Names      []string
	Module     *Module
	ExtraTests []Test
}

// GetTestCaseNamesEvent is fired when the test names of a class are
// collected. Handlers that claim the event return a []string.
type GetTestCaseNamesEvent struct {
	BaseEvent
	Loader        *Loader
	Class         *Class
	ExtraNames    []string
	ExcludedNames []string
}

type RunnerCreatedEvent struct {
	BaseEvent
	Runner *TextRunner
}

// ExecuteFunc runs a test tree against a result.
type ExecuteFunc func(test Test, result *Result)

// StartTestRunEvent is fired before the tests are executed. Handlers may
// replace Suite or ExecuteTests. A handler marking the event handled
// takes over running the tests.
type StartTestRunEvent struct {
	BaseEvent
	Runner       *TextRunner
	Suite        Test
	Result       *Result
	StartTime    time.Time
	ExecuteTests ExecuteFunc
}

type StartTestEvent struct {
	BaseEvent
	Test      *TestCase
	Result    *Result
	StartTime time.Time
}

type AfterSetUpEvent struct {
	BaseEvent
	Test   *TestCase
	Result *Result
	Time   time.Time
}

// OnTestFailEvent is fired when a test fails or errors in any stage.
type OnTestFailEvent struct {
	BaseEvent
	Test     *TestCase
	Result   *Result
	Stage    Stage
	Err      error
	Details  string
	Expected bool
}

// Clean drops the references to the test and error.
func (e *OnTestFailEvent) Clean() {
	e.Test = nil
	e.Err = nil
}

type BeforeTearDownEvent struct {
	BaseEvent
	Test   *TestCase
	Result *Result
	Time   time.Time
}

type StopTestEvent struct {
	BaseEvent
	Test      *TestCase
	Result    *Result
	StopTime  time.Time
	TimeTaken time.Duration
	Outcome   Outcome
	Details   string
	Err       error
}

// Clean drops the references to the test and error.
func (e *StopTestEvent) Clean() {
	e.Test = nil
	e.Err = nil
}

type StopTestRunEvent struct {
	BaseEvent
	Runner    *TextRunner
	Result    *Result
	StopTime  time.Time
	TimeTaken time.Duration
}

// MessageEvent is fired for every message written through the runner.
// A handler marking the event handled suppresses the default output.
type MessageEvent struct {
	BaseEvent
	Runner    *TextRunner
	Message   string
	Verbosity []int
}

// ReportEvent is used by the beforeSummaryReport and afterSummaryReport hooks.
type ReportEvent struct {
	BaseEvent
	Runner    *TextRunner
	Result    *Result
	StopTime  time.Time
	TimeTaken time.Duration
}
