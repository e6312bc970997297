package hookrun_test

import (
	"slices"
	"testing"

	"github.com/raphi011/hookrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureModule(j *journal, name string) *hookrun.Module {
	return &hookrun.Module{
		Name:           name,
		SetUpModule:    j.add("setUpModule " + name),
		TearDownModule: j.add("tearDownModule " + name),
		Classes: []*hookrun.Class{
			{
				Name:          "A",
				SetUpClass:    j.add("setUpClass A"),
				TearDownClass: j.add("tearDownClass A"),
				Tests:         []hookrun.TestFunc{passes, alsoPasses},
			},
			{
				Name:          "B",
				SetUpClass:    j.add("setUpClass B"),
				TearDownClass: j.add("tearDownClass B"),
				Tests:         []hookrun.TestFunc{passes},
			},
		},
	}
}

func TestFixturesRunOncePerContiguousClassAndModule(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	s := session(t, nil, m)

	result := run(t, s, j, s.Loader().LoadAll())

	assert.Equal(t, []string{
		"setUpModule m",
		"setUpClass A",
		"m.A.passes",
		"m.A.alsoPasses",
		"tearDownClass A",
		"setUpClass B",
		"m.B.passes",
		"tearDownClass B",
		"tearDownModule m",
	}, j.entries)

	assert.Equal(t, 3, result.TestsRun)
	assert.True(t, result.WasSuccessful())
}

func TestModuleTransitionsTearDownTheClassBeforeTheModule(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m1 := &hookrun.Module{
		Name:           "m1",
		SetUpModule:    j.add("setUpModule m1"),
		TearDownModule: j.add("tearDownModule m1"),
		Classes:        []*hookrun.Class{{Name: "A", TearDownClass: j.add("tearDownClass A"), Tests: []hookrun.TestFunc{passes}}},
	}
	m2 := &hookrun.Module{
		Name:        "m2",
		SetUpModule: j.add("setUpModule m2"),
		Functions:   []hookrun.TestFunc{passes},
	}
	s := session(t, nil, m1, m2)

	run(t, s, j, s.Loader().LoadAll())

	assert.Equal(t, []string{
		"setUpModule m1",
		"m1.A.passes",
		"tearDownClass A",
		"tearDownModule m1",
		"setUpModule m2",
		"m2.passes",
	}, j.entries)
}

func TestClassSetUpFailureOnlyAffectsThatClass(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	m.Classes[0].SetUpClass = j.fail("setUpClass A")
	s := session(t, nil, m)

	result := run(t, s, j, s.Loader().LoadAll())

	assert.Equal(t, []string{
		"setUpModule m",
		"setUpClass A",
		"setUpClass B",
		"m.B.passes",
		"tearDownClass B",
		"tearDownModule m",
	}, j.entries)

	assert.Equal(t, []string{"classSetUp (m.A)"}, failureDescriptions(result.Errors))
	assert.Contains(t, result.Errors[0].Details, "setUpClass A failed")
	assert.Equal(t, 1, result.TestsRun)
	assert.False(t, result.WasSuccessful())
}

func TestPanickingClassSetUpIsReportedAsError(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	m.Classes[1].SetUpClass = func() error { panic("no database") }
	s := session(t, nil, m)

	result := run(t, s, j, s.Loader().LoadAll())

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "classSetUp (m.B)", result.Errors[0].Test.Description())
	assert.Contains(t, result.Errors[0].Details, "no database")
	assert.NotContains(t, j.entries, "tearDownClass B")
}

func TestModuleSetUpFailureSkipsTheWholeModule(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m1 := fixtureModule(j, "m1")
	m1.SetUpModule = j.fail("setUpModule m1")
	m2 := &hookrun.Module{Name: "m2", Functions: []hookrun.TestFunc{passes}}
	s := session(t, nil, m1, m2)

	result := run(t, s, j, s.Loader().LoadAll())

	assert.Equal(t, []string{"setUpModule m1", "m2.passes"}, j.entries)
	assert.Equal(t, []string{"moduleSetUp (m1)"}, failureDescriptions(result.Errors))
	assert.Equal(t, 1, result.TestsRun)
}

func TestModuleTearDownFailureIsReported(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	m.TearDownModule = j.fail("tearDownModule m")
	s := session(t, nil, m)

	result := run(t, s, j, s.Loader().LoadAll())

	assert.Equal(t, []string{"moduleTearDown (m)"}, failureDescriptions(result.Errors))
	assert.Equal(t, 3, result.TestsRun)
}

func TestClassTearDownFailureIsReported(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	m.Classes[0].TearDownClass = j.fail("tearDownClass A")
	s := session(t, nil, m)

	result := run(t, s, j, s.Loader().LoadAll())

	assert.Equal(t, []string{"classTearDown (m.A)"}, failureDescriptions(result.Errors))
	assert.Contains(t, j.entries, "tearDownModule m")
}

func TestClassFixturesSpanNestedSuites(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	s := session(t, nil, m)

	a := m.Classes[0]
	first, err := hookrun.NewTestCase(a, "passes")
	require.NoError(t, err)
	second, err := hookrun.NewTestCase(a, "alsoPasses")
	require.NoError(t, err)

	suite := hookrun.NewSuite(hookrun.NewSuite(first), hookrun.NewSuite(hookrun.NewSuite(second)))

	run(t, s, j, suite)

	assert.Equal(t, []string{
		"setUpModule m",
		"setUpClass A",
		"m.A.passes",
		"m.A.alsoPasses",
		"tearDownClass A",
		"tearDownModule m",
	}, j.entries)
}

func TestInterleavedClassesAreSetUpAgain(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	s := session(t, nil, m)

	a1, _ := hookrun.NewTestCase(m.Classes[0], "passes")
	b, _ := hookrun.NewTestCase(m.Classes[1], "passes")
	a2, _ := hookrun.NewTestCase(m.Classes[0], "alsoPasses")

	run(t, s, j, hookrun.NewSuite(a1, b, a2))

	setUps := slices.DeleteFunc(slices.Clone(j.entries), func(e string) bool { return e != "setUpClass A" })
	assert.Len(t, setUps, 2)
}

func TestSkippedClassNeverRunsItsFixtures(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	m.Classes[0].Skip = "not on this platform"
	s := session(t, nil, m)

	result := run(t, s, j, s.Loader().LoadAll())

	assert.NotContains(t, j.entries, "setUpClass A")
	assert.NotContains(t, j.entries, "tearDownClass A")

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "not on this platform", result.Skipped[0].Reason)
	assert.True(t, result.WasSuccessful())
}

func TestEmptySuiteRunsNothing(t *testing.T) {
	t.Parallel()

	j := &journal{}
	s := session(t, nil)

	result := run(t, s, j, hookrun.NewSuite())

	assert.Empty(t, j.entries)
	assert.Zero(t, result.TestsRun)
	assert.True(t, result.WasSuccessful())
}

func TestStoppedResultRunsNoFurtherTests(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	s := session(t, nil, m)

	result := hookrun.NewResult(s.Hooks(), nil)
	result.Stop()

	s.Loader().LoadAll().Run(result)

	assert.Empty(t, j.entries)
	assert.Zero(t, result.TestsRun)
}

func TestFailfastStopsAfterTheFirstFailureAndTearsDown(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := &hookrun.Module{
		Name:           "m",
		TearDownModule: j.add("tearDownModule m"),
		Classes: []*hookrun.Class{{
			Name:          "A",
			TearDownClass: j.add("tearDownClass A"),
			Tests:         []hookrun.TestFunc{fails, passes},
		}},
	}
	s := session(t, nil, m)

	result := hookrun.NewResult(s.Hooks(), nil)
	result.Failfast = true

	s.Loader().LoadAll().Run(result)

	assert.Equal(t, 1, result.TestsRun)
	assert.Equal(t, []string{"tearDownClass A", "tearDownModule m"}, j.entries)
}

func TestFixtureStateIsResetAfterEachTopLevelRun(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	s := session(t, nil, m)

	suite := s.Loader().LoadAll()
	result := hookrun.NewResult(s.Hooks(), nil)

	suite.Run(result)
	suite.Run(result)

	count := 0
	for _, e := range j.entries {
		if e == "setUpModule m" {
			count++
		}
	}
	assert.Equal(t, 2, count)
	assert.Equal(t, 6, result.TestsRun)
}

func TestCountTestCasesSumsNestedSuites(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	m.Functions = []hookrun.TestFunc{passes, fails}
	s := session(t, nil, m)

	suite := s.Loader().LoadAll()

	assert.Equal(t, 5, suite.CountTestCases())
	assert.Equal(t, 5, len(slices.Collect(suite.Leaves())))
}

func TestSuitesCompareStructurally(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	s := session(t, nil, m)

	assert.True(t, s.Loader().LoadAll().Equal(s.Loader().LoadAll()))

	a, _ := hookrun.NewTestCase(m.Classes[0], "passes")
	b, _ := hookrun.NewTestCase(m.Classes[0], "alsoPasses")

	assert.True(t, hookrun.NewSuite(a, b).Equal(hookrun.NewSuite(a, b)))
	assert.False(t, hookrun.NewSuite(a, b).Equal(hookrun.NewSuite(b, a)))
	assert.False(t, hookrun.NewSuite(a).Equal(hookrun.NewSuite(hookrun.NewSuite(a))))
}

func TestAddTestsRejectsNonTests(t *testing.T) {
	t.Parallel()

	m := &hookrun.Module{Name: "m", Classes: []*hookrun.Class{{Name: "A", Tests: []hookrun.TestFunc{passes}}}}
	session(t, nil, m)

	suite := hookrun.NewSuite()

	assert.ErrorIs(t, suite.AddTests("m.A.passes"), hookrun.ErrInvalidTest)
	assert.ErrorIs(t, suite.AddTests(m.Classes[0]), hookrun.ErrInvalidTest)
	assert.ErrorIs(t, suite.AddTests(42), hookrun.ErrInvalidTest)
	assert.ErrorIs(t, suite.AddTest(nil), hookrun.ErrInvalidTest)

	var nilCase *hookrun.TestCase
	assert.ErrorIs(t, suite.AddTest(nilCase), hookrun.ErrInvalidTest)

	tc, err := hookrun.NewTestCase(m.Classes[0], "passes")
	require.NoError(t, err)

	require.NoError(t, suite.AddTests([]*hookrun.TestCase{tc}))
	require.NoError(t, suite.AddTests(hookrun.NewSuite(tc, tc)))
	require.NoError(t, suite.AddTests(slices.Values([]hookrun.Test{tc})))

	assert.Equal(t, 4, suite.CountTestCases())

	_, err = hookrun.NewTestCase(m.Classes[0], "missing")
	assert.ErrorIs(t, err, hookrun.ErrInvalidTest)
}

func TestZeroResultCanBeRunAgainst(t *testing.T) {
	t.Parallel()

	j := &journal{}
	m := fixtureModule(j, "m")
	s := session(t, nil, m)

	var result hookrun.Result
	s.Loader().LoadAll().Run(&result)

	assert.Equal(t, 3, result.TestsRun)
	assert.True(t, result.WasSuccessful())
	assert.Equal(t, []string{
		"setUpModule m",
		"setUpClass A",
		"tearDownClass A",
		"setUpClass B",
		"tearDownClass B",
		"tearDownModule m",
	}, j.entries)

	failing := classModule(&hookrun.Class{Name: "A", Tests: []hookrun.TestFunc{fails}})
	session(t, nil, failing)

	tc, err := hookrun.NewTestCase(failing.Classes[0], "fails")
	require.NoError(t, err)

	single := &hookrun.Result{}
	tc.Run(single)

	assert.Equal(t, 1, single.TestsRun)
	require.Len(t, single.Failures, 1)
	assert.Equal(t, "fails (m.A)", single.Failures[0].Test.Description())
}
