package hookrun

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/raphi011/hookrun/internal/metric"
)

var ErrInvalidTest = errors.New("invalid test")

// Reportable is the part of a test that a result needs to report it.
type Reportable interface {
	ID() string
	Description() string
	CountTestCases() int
}

// Test is a node of a test tree: either a *Suite or a leaf *TestCase.
type Test interface {
	Reportable
	Run(result *Result)
	isTest()
}

func isNilTest(t Test) bool {
	switch v := t.(type) {
	case nil:
		return true
	case *Suite:
		return v == nil
	case *TestCase:
		return v == nil
	}
	return false
}

// Suite is an ordered, mutable collection of tests and nested suites.
// Suites compare structurally with Equal.
type Suite struct {
	tests []Test
}

// NewSuite creates a suite of the given tests. It panics on nil tests.
func NewSuite(tests ...Test) *Suite {
	s := &Suite{tests: []Test{}}

	for _, t := range tests {
		if err := s.AddTest(t); err != nil {
			panic(err)
		}
	}

	return s
}

func (s *Suite) isTest() {}

// AddTest appends a test or suite.
func (s *Suite) AddTest(t Test) error {
	if isNilTest(t) {
		return fmt.Errorf("adding test: %w: nil is not runnable", ErrInvalidTest)
	}

	s.tests = append(s.tests, t)

	return nil
}

// AddTests adds every test of a collection. Accepted are *Suite,
// []Test, []*TestCase, []*Suite and iter.Seq[Test].
func (s *Suite) AddTests(tests any) error {
	switch v := tests.(type) {
	case string:
		return fmt.Errorf("adding tests: %w: tests must be a collection of tests, not a string", ErrInvalidTest)
	case *Class, Class:
		return fmt.Errorf("adding tests: %w: classes must be loaded into tests before being added", ErrInvalidTest)
	case *Suite:
		if v == nil {
			return fmt.Errorf("adding tests: %w: nil suite", ErrInvalidTest)
		}
		return s.addAll(slices.Values(v.Tests()))
	case []Test:
		return s.addAll(slices.Values(v))
	case []*TestCase:
		return s.addAll(func(yield func(Test) bool) {
			for _, t := range v {
				if !yield(t) {
					return
				}
			}
		})
	case []*Suite:
		return s.addAll(func(yield func(Test) bool) {
			for _, t := range v {
				if !yield(t) {
					return
				}
			}
		})
	case iter.Seq[Test]:
		return s.addAll(v)
	default:
		return fmt.Errorf("adding tests: %w: %T is not a collection of tests", ErrInvalidTest, tests)
	}
}

func (s *Suite) addAll(tests iter.Seq[Test]) error {
	for t := range tests {
		if err := s.AddTest(t); err != nil {
			return err
		}
	}
	return nil
}

// Tests returns a copy of the direct children of the suite.
func (s *Suite) Tests() []Test {
	out := make([]Test, len(s.tests))
	copy(out, s.tests)
	return out
}

// Leaves yields all test cases of the tree in execution order.
func (s *Suite) Leaves() iter.Seq[*TestCase] {
	return func(yield func(*TestCase) bool) {
		s.leaves(yield)
	}
}

// Flatten yields the test cases of any test.
func Flatten(t Test) iter.Seq[*TestCase] {
	return func(yield func(*TestCase) bool) {
		switch v := t.(type) {
		case *Suite:
			if v != nil {
				v.leaves(yield)
			}
		case *TestCase:
			if v != nil {
				yield(v)
			}
		}
	}
}

func (s *Suite) leaves(yield func(*TestCase) bool) bool {
	for _, t := range s.tests {
		switch v := t.(type) {
		case *Suite:
			if !v.leaves(yield) {
				return false
			}
		case *TestCase:
			if !yield(v) {
				return false
			}
		}
	}
	return true
}

// CountTestCases sums the test cases of all nested suites.
func (s *Suite) CountTestCases() int {
	count := 0
	for _, t := range s.tests {
		count += t.CountTestCases()
	}
	return count
}

// Equal compares two suites item by item.
func (s *Suite) Equal(other *Suite) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.tests) != len(other.tests) {
		return false
	}

	for i := range s.tests {
		if !testsEqual(s.tests[i], other.tests[i]) {
			return false
		}
	}

	return true
}

func testsEqual(a, b Test) bool {
	switch av := a.(type) {
	case *Suite:
		bv, ok := b.(*Suite)
		return ok && av.Equal(bv)
	case *TestCase:
		bv, ok := b.(*TestCase)
		return ok && av.Equal(bv)
	}
	return false
}

func (s *Suite) ID() string {
	return "suite"
}

func (s *Suite) Description() string {
	return s.String()
}

func (s *Suite) String() string {
	ids := make([]string, 0, len(s.tests))
	for _, t := range s.tests {
		ids = append(ids, t.ID())
	}
	return "Suite[" + strings.Join(ids, ", ") + "]"
}

// Run executes the tree against result. Class and module fixtures are
// tracked on the result so that they span nested suites. When the
// outermost suite finishes, the last class and module are torn down.
func (s *Suite) Run(result *Result) {
	result.prepare()

	topLevel := !result.fixtures.entered
	if topLevel {
		result.fixtures.entered = true
	}

	s.run(result)

	if topLevel {
		result.fixtures.tearDownPreviousClass(nil, result)
		result.fixtures.handleModuleTearDown(result)
		result.fixtures.reset()
	}
}

func (s *Suite) run(result *Result) {
	for _, t := range s.tests {
		if result.ShouldStop() {
			break
		}

		switch v := t.(type) {
		case *Suite:
			v.run(result)
		case *TestCase:
			f := &result.fixtures

			f.tearDownPreviousClass(v, result)
			f.handleModuleFixture(v, result)
			f.handleClassSetUp(v, result)

			f.previousClass = v.Class()
			f.previousModule = v.Module()
			f.started = true

			if f.moduleSetUpFailed || (v.Class() != nil && f.classSetupFailed[v.Class()]) {
				continue
			}

			v.Run(result)
		}
	}
}

// fixtureState tracks class and module fixture transitions of a run.
type fixtureState struct {
	entered           bool
	started           bool
	previousClass     *Class
	previousModule    *Module
	classSetupFailed  map[*Class]bool
	classTornDown     map[*Class]bool
	moduleSetUpFailed bool
}

func newFixtureState() fixtureState {
	return fixtureState{
		classSetupFailed: map[*Class]bool{},
		classTornDown:    map[*Class]bool{},
	}
}

func (f *fixtureState) reset() {
	f.entered = false
	f.started = false
	f.previousClass = nil
	f.previousModule = nil
	f.moduleSetUpFailed = false
}

func (f *fixtureState) tearDownPreviousClass(current *TestCase, result *Result) {
	previous := f.previousClass

	if previous == nil {
		return
	}
	if current != nil && current.Class() == previous {
		return
	}
	if f.classSetupFailed[previous] || f.classTornDown[previous] || f.moduleSetUpFailed || previous.Skip != "" {
		return
	}

	f.classTornDown[previous] = true

	if previous.TearDownClass == nil {
		return
	}

	if err := safeCall(previous.TearDownClass); err != nil {
		result.addFixtureError("class", fmt.Sprintf("classTearDown (%s)", previous), err)
	}
}

func (f *fixtureState) handleModuleFixture(current *TestCase, result *Result) {
	module := current.Module()

	if f.started && module == f.previousModule {
		return
	}

	f.handleModuleTearDown(result)

	f.moduleSetUpFailed = false

	if module == nil || module.SetUpModule == nil {
		return
	}

	if err := safeCall(module.SetUpModule); err != nil {
		f.moduleSetUpFailed = true
		result.addFixtureError("module", fmt.Sprintf("moduleSetUp (%s)", module.Name), err)
	}
}

func (f *fixtureState) handleModuleTearDown(result *Result) {
	module := f.previousModule

	if !f.started || module == nil || f.moduleSetUpFailed || module.TearDownModule == nil {
		return
	}

	if err := safeCall(module.TearDownModule); err != nil {
		result.addFixtureError("module", fmt.Sprintf("moduleTearDown (%s)", module.Name), err)
	}
}

func (f *fixtureState) handleClassSetUp(current *TestCase, result *Result) {
	class := current.Class()

	if class == nil || class == f.previousClass {
		return
	}
	if f.moduleSetUpFailed || class.Skip != "" {
		return
	}

	f.classSetupFailed[class] = false
	f.classTornDown[class] = false

	if class.SetUpClass == nil {
		return
	}

	if err := safeCall(class.SetUpClass); err != nil {
		f.classSetupFailed[class] = true
		result.addFixtureError("class", fmt.Sprintf("classSetUp (%s)", class), err)
	}
}

// safeCall runs a fixture function and turns panics into errors.
func safeCall(fn func() error) (err error) {
	defer func() {
		r := recover()

		if r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	err = fn()
	return
}

// fixtureError stands in for a test in results when a class or module
// fixture failed.
type fixtureError struct {
	description string
}

func (e fixtureError) ID() string {
	return e.description
}

func (e fixtureError) Description() string {
	return e.description
}

func (e fixtureError) CountTestCases() int {
	return 0
}

func (r *Result) addFixtureError(scope, description string, err error) {
	metric.FixtureErrorsTotal.WithLabelValues(scope).Inc()

	r.log.Warn("fixture failed", "fixture", description, "error", err)

	r.AddError(fixtureError{description: description}, err.Error())
}
