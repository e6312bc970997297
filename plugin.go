package hookrun

// Plugin is a component that extends a session through hooks. Plugins
// must be pointer types since they are used as map keys.
type Plugin interface {
	Name() string
}

// ConfigSectioner binds a plugin to a section of the configuration.
// The `always-on` key of that section activates the plugin on construction.
type ConfigSectioner interface {
	ConfigSection() string
}

// Switch is a command line switch activating a dormant plugin.
type Switch struct {
	Short string
	Long  string
	Help  string
}

// Switcher binds a plugin to a command line switch.
type Switcher interface {
	CommandLineSwitch() Switch
}

// Activator is called when a plugin becomes active. Plugins with
// optional dependencies check for them here, so that dormant plugins
// never fail a run.
type Activator interface {
	Activate() error
}

// Deactivator is called after a plugin's handlers were removed.
type Deactivator interface {
	Deactivate()
}

type PluginsLoadedListener interface {
	PluginsLoaded(e *PluginsLoadedEvent)
}

type HandleFileListener interface {
	HandleFile(e *HandleFileEvent) Test
}

type MatchPathListener interface {
	MatchPath(e *MatchPathEvent) bool
}

type LoadTestsFromModuleListener interface {
	LoadTestsFromModule(e *LoadFromModuleEvent) Test
}

type LoadTestsFromTestCaseListener interface {
	LoadTestsFromTestCase(e *LoadFromTestCaseEvent) Test
}

type LoadTestsFromNameListener interface {
	LoadTestsFromName(e *LoadFromNameEvent) Test
}

type LoadTestsFromNamesListener interface {
	LoadTestsFromNames(e *LoadFromNamesEvent) Test
}

type GetTestCaseNamesListener interface {
	GetTestCaseNames(e *GetTestCaseNamesEvent) []string
}

type RunnerCreatedListener interface {
	RunnerCreated(e *RunnerCreatedEvent)
}

type StartTestRunListener interface {
	StartTestRun(e *StartTestRunEvent)
}

type StartTestListener interface {
	StartTest(e *StartTestEvent)
}

type AfterSetUpListener interface {
	AfterSetUp(e *AfterSetUpEvent)
}

type OnTestFailListener interface {
	OnTestFail(e *OnTestFailEvent)
}

type BeforeTearDownListener interface {
	BeforeTearDown(e *BeforeTearDownEvent)
}

type StopTestListener interface {
	StopTest(e *StopTestEvent)
}

type StopTestRunListener interface {
	StopTestRun(e *StopTestRunEvent)
}

type MessageListener interface {
	Message(e *MessageEvent)
}

type BeforeSummaryReportListener interface {
	BeforeSummaryReport(e *ReportEvent)
}

type AfterSummaryReportListener interface {
	AfterSummaryReport(e *ReportEvent)
}

// listenerBinding maps a hook to the listener interface handling it.
type listenerBinding struct {
	hook HookName
	bind func(p Plugin) (Handler, bool)
}

// listenerBindings is the declarative hook table used when a plugin
// is registered.
var listenerBindings = []listenerBinding{
	{HookPluginsLoaded, func(p Plugin) (Handler, bool) {
		l, ok := p.(PluginsLoadedListener)
		return func(e Event) any { l.PluginsLoaded(e.(*PluginsLoadedEvent)); return nil }, ok
	}},
	{HookHandleFile, func(p Plugin) (Handler, bool) {
		l, ok := p.(HandleFileListener)
		return func(e Event) any { return nilIfEmpty(l.HandleFile(e.(*HandleFileEvent))) }, ok
	}},
	{HookMatchPath, func(p Plugin) (Handler, bool) {
		l, ok := p.(MatchPathListener)
		return func(e Event) any { return l.MatchPath(e.(*MatchPathEvent)) }, ok
	}},
	{HookLoadTestsFromModule, func(p Plugin) (Handler, bool) {
		l, ok := p.(LoadTestsFromModuleListener)
		return func(e Event) any { return nilIfEmpty(l.LoadTestsFromModule(e.(*LoadFromModuleEvent))) }, ok
	}},
	{HookLoadTestsFromTestCase, func(p Plugin) (Handler, bool) {
		l, ok := p.(LoadTestsFromTestCaseListener)
		return func(e Event) any { return nilIfEmpty(l.LoadTestsFromTestCase(e.(*LoadFromTestCaseEvent))) }, ok
	}},
	{HookLoadTestsFromName, func(p Plugin) (Handler, bool) {
		l, ok := p.(LoadTestsFromNameListener)
		return func(e Event) any { return nilIfEmpty(l.LoadTestsFromName(e.(*LoadFromNameEvent))) }, ok
	}},
	{HookLoadTestsFromNames, func(p Plugin) (Handler, bool) {
		l, ok := p.(LoadTestsFromNamesListener)
		return func(e Event) any { return nilIfEmpty(l.LoadTestsFromNames(e.(*LoadFromNamesEvent))) }, ok
	}},
	{HookGetTestCaseNames, func(p Plugin) (Handler, bool) {
		l, ok := p.(GetTestCaseNamesListener)
		return func(e Event) any { return l.GetTestCaseNames(e.(*GetTestCaseNamesEvent)) }, ok
	}},
	{HookRunnerCreated, func(p Plugin) (Handler, bool) {
		l, ok := p.(RunnerCreatedListener)
		return func(e Event) any { l.RunnerCreated(e.(*RunnerCreatedEvent)); return nil }, ok
	}},
	{HookStartTestRun, func(p Plugin) (Handler, bool) {
		l, ok := p.(StartTestRunListener)
		return func(e Event) any { l.StartTestRun(e.(*StartTestRunEvent)); return nil }, ok
	}},
	{HookStartTest, func(p Plugin) (Handler, bool) {
		l, ok := p.(StartTestListener)
		return func(e Event) any { l.StartTest(e.(*StartTestEvent)); return nil }, ok
	}},
	{HookAfterSetUp, func(p Plugin) (Handler, bool) {
		l, ok := p.(AfterSetUpListener)
		return func(e Event) any { l.AfterSetUp(e.(*AfterSetUpEvent)); return nil }, ok
	}},
	{HookOnTestFail, func(p Plugin) (Handler, bool) {
		l, ok := p.(OnTestFailListener)
		return func(e Event) any { l.OnTestFail(e.(*OnTestFailEvent)); return nil }, ok
	}},
	{HookBeforeTearDown, func(p Plugin) (Handler, bool) {
		l, ok := p.(BeforeTearDownListener)
		return func(e Event) any { l.BeforeTearDown(e.(*BeforeTearDownEvent)); return nil }, ok
	}},
	{HookStopTest, func(p Plugin) (Handler, bool) {
		l, ok := p.(StopTestListener)
		return func(e Event) any { l.StopTest(e.(*StopTestEvent)); return nil }, ok
	}},
	{HookStopTestRun, func(p Plugin) (Handler, bool) {
		l, ok := p.(StopTestRunListener)
		return func(e Event) any { l.StopTestRun(e.(*StopTestRunEvent)); return nil }, ok
	}},
	{HookMessage, func(p Plugin) (Handler, bool) {
		l, ok := p.(MessageListener)
		return func(e Event) any { l.Message(e.(*MessageEvent)); return nil }, ok
	}},
	{HookBeforeSummaryReport, func(p Plugin) (Handler, bool) {
		l, ok := p.(BeforeSummaryReportListener)
		return func(e Event) any { l.BeforeSummaryReport(e.(*ReportEvent)); return nil }, ok
	}},
	{HookAfterSummaryReport, func(p Plugin) (Handler, bool) {
		l, ok := p.(AfterSummaryReportListener)
		return func(e Event) any { l.AfterSummaryReport(e.(*ReportEvent)); return nil }, ok
	}},
}

// nilIfEmpty turns a typed nil Test into an untyped nil so that callers
// can compare the dispatch result against nil.
func nilIfEmpty(t Test) any {
	if t == nil || isNilTest(t) {
		return nil
	}
	return t
}
