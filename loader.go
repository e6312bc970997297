package hookrun

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/raphi011/hookrun/internal/model"
)

// DefaultPattern is the discovery pattern used when none is given.
const DefaultPattern = "*.go"

// Loader builds test trees from registered modules. Every load step can
// be taken over by plugins through the loading hooks.
type Loader struct {
	session *Session
}

// Loader returns a loader for the modules of the session.
func (s *Session) Loader() *Loader {
	return &Loader{session: s}
}

func (l *Loader) hooks() *Hooks {
	return l.session.hooks
}

// dispatchTest dispatches a loading event and returns the test of the
// handler that claimed it, or nil if none did.
func (l *Loader) dispatchTest(name HookName, e Event) (Test, bool) {
	res := l.hooks().Dispatch(name, e)
	if !e.Handled() {
		return nil, false
	}

	t, _ := res.(Test)
	return t, true
}

func withExtraTests(t Test, extra []Test) *Suite {
	suite := NewSuite()

	if !isNilTest(t) {
		if s, ok := t.(*Suite); ok {
			_ = suite.AddTests(s)
		} else {
			_ = suite.AddTest(t)
		}
	}

	for _, e := range extra {
		_ = suite.AddTest(e)
	}

	return suite
}

// LoadAll loads every module of the session.
func (l *Loader) LoadAll() *Suite {
	suite := NewSuite()

	for _, m := range l.session.modules.All() {
		_ = suite.AddTest(l.LoadTestsFromModule(m))
	}

	return suite
}

// LoadTestsFromModule loads all classes and functions of a module.
func (l *Loader) LoadTestsFromModule(m *Module) *Suite {
	event := &LoadFromModuleEvent{Loader: l, Module: m}

	t, handled := l.dispatchTest(HookLoadTestsFromModule, event)
	if !handled {
		suite := NewSuite()

		for _, c := range m.Classes {
			_ = suite.AddTest(l.LoadTestsFromClass(c))
		}
		for _, fn := range m.Functions {
			_ = suite.AddTest(NewFunctionTest(m, "", fn))
		}

		t = suite
	}

	return withExtraTests(t, event.ExtraTests)
}

// LoadTestsFromClass loads the tests of a class.
func (l *Loader) LoadTestsFromClass(c *Class) *Suite {
	event := &LoadFromTestCaseEvent{Loader: l, Class: c}

	t, handled := l.dispatchTest(HookLoadTestsFromTestCase, event)
	if !handled {
		suite := NewSuite()

		for _, name := range l.GetTestCaseNames(c) {
			tc, err := NewTestCase(c, name)
			if err != nil {
				l.session.log.Warn("ignoring unknown test name", "class", c.String(), "test-name", name)
				continue
			}
			_ = suite.AddTest(tc)
		}

		t = suite
	}

	return withExtraTests(t, event.ExtraTests)
}

// GetTestCaseNames returns the names of the tests of a class to load.
func (l *Loader) GetTestCaseNames(c *Class) []string {
	event := &GetTestCaseNamesEvent{Loader: l, Class: c}

	res := l.hooks().Dispatch(HookGetTestCaseNames, event)
	if event.Handled() {
		names, _ := res.([]string)
		return names
	}

	names := []string{}

	for _, name := range c.TestNames() {
		if !slices.Contains(event.ExcludedNames, name) {
			names = append(names, name)
		}
	}

	for _, name := range event.ExtraNames {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	return names
}

// LoadTestsFromName resolves a dotted name: `module`, `module.Class`,
// `module.Class.Test` or `module.Function`. If module is given the name
// is resolved relative to it.
func (l *Loader) LoadTestsFromName(name string, module *Module) (Test, error) {
	event := &LoadFromNameEvent{Loader: l, Name: name, Module: module}

	t, handled := l.dispatchTest(HookLoadTestsFromName, event)
	if !handled {
		var err error
		if t, err = l.resolveName(name, module); err != nil {
			return nil, err
		}
	}

	if len(event.ExtraTests) == 0 && !isNilTest(t) {
		return t, nil
	}

	return withExtraTests(t, event.ExtraTests), nil
}

func (l *Loader) resolveName(name string, module *Module) (Test, error) {
	parts := strings.Split(name, ".")

	if module == nil {
		for i := len(parts); i > 0; i-- {
			if m, ok := l.session.modules.Lookup(strings.Join(parts[:i], ".")); ok {
				module = m
				parts = parts[i:]
				break
			}
		}

		if module == nil {
			return nil, fmt.Errorf("loading %q: module %w", name, model.NotFoundError{})
		}
	}

	switch len(parts) {
	case 0:
		return l.LoadTestsFromModule(module), nil
	case 1:
		if c, ok := module.Class(parts[0]); ok {
			return l.LoadTestsFromClass(c), nil
		}
		if fn, ok := module.Function(parts[0]); ok {
			return NewFunctionTest(module, parts[0], fn), nil
		}
	case 2:
		if c, ok := module.Class(parts[0]); ok {
			if tc, err := NewTestCase(c, parts[1]); err == nil {
				return tc, nil
			}
		}
	}

	return nil, fmt.Errorf("loading %q: %w", name, model.NotFoundError{})
}

// LoadTestsFromNames loads every name into a single suite.
func (l *Loader) LoadTestsFromNames(names []string, module *Module) (*Suite, error) {
	event := &LoadFromNamesEvent{Loader: l, Names: names, Module: module}

	t, handled := l.dispatchTest(HookLoadTestsFromNames, event)
	if !handled {
		suite := NewSuite()

		for _, name := range names {
			test, err := l.LoadTestsFromName(name, module)
			if err != nil {
				return nil, err
			}
			_ = suite.AddTest(test)
		}

		t = suite
	}

	return withExtraTests(t, event.ExtraTests), nil
}

// Discover walks startDir and loads the modules declared in files
// matching pattern. Plugins can turn any file into tests through the
// handleFile hook and change the matching through matchPath.
func (l *Loader) Discover(startDir, pattern, topLevelDir string) (*Suite, error) {
	if startDir == "" {
		startDir = "."
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	if topLevelDir == "" {
		topLevelDir = startDir
	}

	start, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving start directory: %w", err)
	}
	top, err := filepath.Abs(topLevelDir)
	if err != nil {
		return nil, fmt.Errorf("resolving top level directory: %w", err)
	}

	suite := NewSuite()

	err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != start && (strings.HasPrefix(d.Name(), ".") || d.Name() == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}

		for _, t := range l.handleFile(path, pattern, top) {
			_ = suite.AddTest(t)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering tests in %s: %w", startDir, err)
	}

	return suite, nil
}

func (l *Loader) handleFile(path, pattern, top string) []Test {
	name := filepath.Base(path)

	event := &HandleFileEvent{
		Loader:            l,
		Name:              name,
		Path:              path,
		Pattern:           pattern,
		TopLevelDirectory: top,
	}

	tests := []Test{}

	t, handled := l.dispatchTest(HookHandleFile, event)
	tests = append(tests, event.ExtraTests...)

	if handled {
		if !isNilTest(t) {
			tests = append(tests, t)
		}
		return tests
	}

	if !l.matchPath(name, path, pattern) {
		return tests
	}

	for _, m := range l.session.modules.All() {
		if moduleDeclaredIn(m, path) {
			tests = append(tests, l.LoadTestsFromModule(m))
		}
	}

	return tests
}

func (l *Loader) matchPath(name, path, pattern string) bool {
	event := &MatchPathEvent{Name: name, Path: path, Pattern: pattern}

	res := l.hooks().Dispatch(HookMatchPath, event)
	if event.Handled() {
		matched, _ := res.(bool)
		return matched
	}

	matched, err := doublestar.Match(pattern, name)
	if err != nil {
		l.session.log.Warn("invalid discovery pattern", "pattern", pattern, "error", err)
		return false
	}

	return matched
}

// moduleDeclaredIn compares the registration file of a module with path.
// Binaries built with -trimpath only know module relative file names.
func moduleDeclaredIn(m *Module, path string) bool {
	if m.file == "" {
		return false
	}

	file := filepath.FromSlash(m.file)

	if filepath.IsAbs(file) {
		return filepath.Clean(file) == filepath.Clean(path)
	}

	return strings.HasSuffix(path, string(filepath.Separator)+file)
}
