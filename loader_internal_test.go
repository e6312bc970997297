package hookrun

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(t TB) {}

func TestDiscoverLoadsModulesDeclaredInMatchingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "testdata"), 0o700))

	for _, f := range []string{"a.go", "sub/b.go", "sub/notes.txt", "sub/testdata/c.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o600))
	}

	a := &Module{Name: "a", Functions: []TestFunc{passing}, file: filepath.Join(dir, "a.go")}
	b := &Module{Name: "b", Functions: []TestFunc{passing}, file: "sub/b.go"}
	c := &Module{Name: "c", Functions: []TestFunc{passing}, file: filepath.Join(dir, "sub", "testdata", "c.go")}
	other := &Module{Name: "other", Functions: []TestFunc{passing}}

	s := New(WithModules(a, b, c, other), WithCatalog(NewCatalog()), WithStdout(&bytes.Buffer{}))

	suite, err := s.Loader().Discover(dir, "", "")
	require.NoError(t, err)

	found := []string{}
	for tc := range suite.Leaves() {
		found = append(found, tc.ID())
	}

	assert.Equal(t, []string{"a.passing", "b.passing"}, found)

	suite, err = s.Loader().Discover(dir, "b.*", "")
	require.NoError(t, err)
	assert.Equal(t, 1, suite.CountTestCases())
}

func TestRegisterModuleRecordsTheCallingFile(t *testing.T) {
	m := RegisterModule(&Module{Name: "registered-from-loader-test"})

	assert.Equal(t, "loader_internal_test.go", filepath.Base(m.File()))
	assert.True(t, moduleDeclaredIn(m, m.File()))
	assert.False(t, moduleDeclaredIn(m, m.File()+".bak"))

	found, ok := DefaultModules.Lookup("registered-from-loader-test")
	require.True(t, ok)
	assert.Same(t, m, found)
}
