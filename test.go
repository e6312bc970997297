package hookrun

import (
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/raphi011/hookrun/internal/model"
)

// Reexport to allow library users to reference these types

type TestFunc = model.TestFunc
type TB = model.TB
type Outcome = model.Outcome
type RunRecord = model.RunRecord
type TestRecord = model.TestRecord

const (
	OutcomePassed            = model.OutcomePassed
	OutcomeFailed            = model.OutcomeFailed
	OutcomeError             = model.OutcomeError
	OutcomeSkipped           = model.OutcomeSkipped
	OutcomeExpectedFailure   = model.OutcomeExpectedFailure
	OutcomeUnexpectedSuccess = model.OutcomeUnexpectedSuccess
)

// Module groups classes and test functions that share the module
// fixture. It is the unit loaded by discovery.
type Module struct {
	// Name identifies the module in test ids, e.g. `mymodule.MyClass.TestX`.
	Name string
	// SetUpModule runs once before the first test of a contiguous run of
	// tests of this module.
	SetUpModule func() error
	// TearDownModule runs once after the last test of a contiguous run.
	TearDownModule func() error
	Classes        []*Class
	// Functions are standalone tests that only share the module fixture.
	Functions []TestFunc

	file string
}

// File is the source file the module was registered from.
func (m *Module) File() string {
	return m.file
}

func (m *Module) String() string {
	return m.Name
}

// Class returns the class with the given name.
func (m *Module) Class(name string) (*Class, bool) {
	for _, c := range m.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Function returns the standalone test function with the given name.
func (m *Module) Function(name string) (TestFunc, bool) {
	for _, fn := range m.Functions {
		if getFunctionName(fn) == name {
			return fn, true
		}
	}
	return nil, false
}

func (m *Module) link() {
	for _, c := range m.Classes {
		c.module = m
	}
}

// Class is a group of tests sharing per-test SetUp/TearDown and the class
// fixture.
type Class struct {
	Name string
	// Skip, if set, skips every test of the class with the given reason.
	// SetUpClass and TearDownClass of a skipped class are never called.
	Skip string
	// SetUpClass runs once before a contiguous run of tests of the class.
	SetUpClass func() error
	// TearDownClass runs once after a contiguous run of tests of the class.
	TearDownClass func() error
	// SetUp and TearDown run around each test.
	SetUp    func(t TB)
	TearDown func(t TB)
	// Tests are the test functions of the class, the name of each test
	// is the name of its function.
	Tests []TestFunc
	// ExpectedFailures lists the names of tests that are expected to fail.
	ExpectedFailures []string

	module *Module
}

// Module returns the module the class is declared in, nil for classes
// that were never registered.
func (c *Class) Module() *Module {
	return c.module
}

// String returns the qualified class name.
func (c *Class) String() string {
	if c.module == nil {
		return c.Name
	}
	return c.module.Name + "." + c.Name
}

// TestNames returns the test names in declaration order.
func (c *Class) TestNames() []string {
	names := make([]string, 0, len(c.Tests))
	for _, fn := range c.Tests {
		names = append(names, getFunctionName(fn))
	}
	return names
}

func (c *Class) test(name string) (TestFunc, bool) {
	for _, fn := range c.Tests {
		if getFunctionName(fn) == name {
			return fn, true
		}
	}
	return nil, false
}

func getFunctionName(fn any) string {
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()

	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	// methods values are suffixed with -fm
	return strings.TrimSuffix(name, "-fm")
}

// ModuleSet is an ordered collection of modules with unique names.
type ModuleSet struct {
	mu      sync.Mutex
	modules []*Module
}

// Add links the module's classes to it and appends it to the set.
// It panics if a module with the same name has already been added.
func (ms *ModuleSet) Add(m *Module) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if slices.ContainsFunc(ms.modules, func(o *Module) bool { return o.Name == m.Name }) {
		panic(fmt.Sprintf("hookrun: module %q registered twice", m.Name))
	}

	m.link()
	ms.modules = append(ms.modules, m)
}

func (ms *ModuleSet) All() []*Module {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return slices.Clone(ms.modules)
}

func (ms *ModuleSet) Lookup(name string) (*Module, bool) {
	for _, m := range ms.All() {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// DefaultModules holds all modules registered via RegisterModule.
var DefaultModules = &ModuleSet{}

// RegisterModule adds m to DefaultModules and records the file it was
// called from, which is used by discovery. It is meant to be called
// from a package level var declaration or init function of the file
// declaring the tests.
func RegisterModule(m *Module) *Module {
	if _, file, _, ok := runtime.Caller(1); ok {
		m.file = file
	}

	DefaultModules.Add(m)

	return m
}
