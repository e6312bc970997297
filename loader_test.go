package hookrun_test

import (
	"slices"
	"testing"

	"github.com/raphi011/hookrun"
	"github.com/raphi011/hookrun/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaderModules() []*hookrun.Module {
	return []*hookrun.Module{
		{
			Name:      "pkg.sub",
			Classes:   []*hookrun.Class{{Name: "A", Tests: []hookrun.TestFunc{passes, alsoPasses}}},
			Functions: []hookrun.TestFunc{fails},
		},
		{
			Name:      "pkg",
			Functions: []hookrun.TestFunc{passes},
		},
	}
}

func ids(t hookrun.Test) []string {
	out := []string{}
	for tc := range hookrun.Flatten(t) {
		out = append(out, tc.ID())
	}
	return out
}

func TestLoadTestsFromName(t *testing.T) {
	t.Parallel()

	s := session(t, nil, loaderModules()...)
	l := s.Loader()

	cases := map[string][]string{
		"pkg.sub":            {"pkg.sub.A.passes", "pkg.sub.A.alsoPasses", "pkg.sub.fails"},
		"pkg.sub.A":          {"pkg.sub.A.passes", "pkg.sub.A.alsoPasses"},
		"pkg.sub.A.passes":   {"pkg.sub.A.passes"},
		"pkg.sub.fails":      {"pkg.sub.fails"},
		"pkg":                {"pkg.passes"},
		"pkg.passes":         {"pkg.passes"},
		"pkg.sub.A.missing":  nil,
		"pkg.sub.Missing":    nil,
		"unknown.module.XYZ": nil,
	}

	for name, expected := range cases {
		test, err := l.LoadTestsFromName(name, nil)

		if expected == nil {
			assert.ErrorAs(t, err, &model.NotFoundError{}, name)
			continue
		}

		require.NoError(t, err, name)
		assert.Equal(t, expected, ids(test), name)
	}
}

func TestLoadTestsFromNameRelativeToAModule(t *testing.T) {
	t.Parallel()

	modules := loaderModules()
	s := session(t, nil, modules...)

	test, err := s.Loader().LoadTestsFromName("A.alsoPasses", modules[0])
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg.sub.A.alsoPasses"}, ids(test))
}

func TestLoadTestsFromNames(t *testing.T) {
	t.Parallel()

	s := session(t, nil, loaderModules()...)

	suite, err := s.Loader().LoadTestsFromNames([]string{"pkg", "pkg.sub.A.passes"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg.passes", "pkg.sub.A.passes"}, ids(suite))

	_, err = s.Loader().LoadTestsFromNames([]string{"pkg", "nope"}, nil)
	assert.Error(t, err)
}

func TestLoadTestsFromModuleCanBeTakenOver(t *testing.T) {
	t.Parallel()

	modules := loaderModules()
	s := session(t, nil, modules...)

	_, err := s.Hooks().Register(hookrun.HookLoadTestsFromModule, func(e hookrun.Event) any {
		load := e.(*hookrun.LoadFromModuleEvent)
		if load.Module.Name != "pkg" {
			return nil
		}

		extra, err := hookrun.NewTestCase(modules[0].Classes[0], "passes")
		require.NoError(t, err)

		load.ExtraTests = append(load.ExtraTests, extra)
		load.SetHandled()
		return hookrun.NewSuite()
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pkg.sub.A.passes", "pkg.sub.A.alsoPasses", "pkg.sub.fails",
		"pkg.sub.A.passes",
	}, ids(s.Loader().LoadAll()))
}

func TestGetTestCaseNamesCanExcludeAndAddNames(t *testing.T) {
	t.Parallel()

	modules := loaderModules()
	modules[0].Classes[0].Tests = append(modules[0].Classes[0].Tests, skips)
	s := session(t, nil, modules...)

	_, err := s.Hooks().Register(hookrun.HookGetTestCaseNames, func(e hookrun.Event) any {
		names := e.(*hookrun.GetTestCaseNamesEvent)
		names.ExcludedNames = append(names.ExcludedNames, "passes", "skips")
		names.ExtraNames = append(names.ExtraNames, "skips")
		return nil
	})
	require.NoError(t, err)

	class := modules[0].Classes[0]

	assert.Equal(t, []string{"alsoPasses", "skips"}, s.Loader().GetTestCaseNames(class))
	assert.Equal(t, []string{"pkg.sub.A.alsoPasses", "pkg.sub.A.skips"}, ids(s.Loader().LoadTestsFromClass(class)))
}

func TestHandleFileCanTurnAnyFileIntoTests(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "cases.txt", "")
	writeFile(t, dir, "notes.md", "")
	writeFile(t, dir, ".hidden/cases.txt", "")

	modules := loaderModules()
	s := session(t, nil, modules...)

	seen := []string{}
	_, err := s.Hooks().Register(hookrun.HookHandleFile, func(e hookrun.Event) any {
		file := e.(*hookrun.HandleFileEvent)
		seen = append(seen, file.Name)

		if file.Name != "cases.txt" {
			return nil
		}

		file.SetHandled()
		return hookrun.NewFunctionTest(modules[1], "fromFile", passes)
	})
	require.NoError(t, err)

	suite, err := s.Loader().Discover(dir, "", "")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"cases.txt", "notes.md"}, seen)
	assert.Equal(t, []string{"pkg.fromFile"}, ids(suite))
}

func TestMatchPathCanOverrideTheDefaultGlob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.go", "")
	writeFile(t, dir, "b.go", "")

	s := session(t, nil)

	matched := []string{}
	_, err := s.Hooks().Register(hookrun.HookMatchPath, func(e hookrun.Event) any {
		match := e.(*hookrun.MatchPathEvent)
		matched = append(matched, match.Name)
		match.SetHandled()
		return false
	})
	require.NoError(t, err)

	suite, err := s.Loader().Discover(dir, "", "")
	require.NoError(t, err)

	slices.Sort(matched)
	assert.Equal(t, []string{"a.go", "b.go"}, matched)
	assert.Zero(t, suite.CountTestCases())
}
