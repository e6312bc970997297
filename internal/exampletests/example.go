// Package exampletests registers test modules used by the example binary.
package exampletests

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphi011/hookrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workDir string

var _ = hookrun.RegisterModule(&hookrun.Module{
	Name: "files",
	SetUpModule: func() error {
		dir, err := os.MkdirTemp("", "hookrun-example")
		workDir = dir
		return err
	},
	TearDownModule: func() error {
		return os.RemoveAll(workDir)
	},
	Classes: []*hookrun.Class{
		{
			Name: "Files",
			SetUp: func(t hookrun.TB) {
				require.NoError(t, os.WriteFile(filepath.Join(workDir, "greeting"), []byte("hello"), 0o600))
			},
			TearDown: func(t hookrun.TB) {
				_ = os.Remove(filepath.Join(workDir, "greeting"))
			},
			Tests:            []hookrun.TestFunc{TestRead, TestUpperCase, TestMissing},
			ExpectedFailures: []string{"TestMissing"},
		},
		{
			Name:  "Network",
			Skip:  "needs network access",
			Tests: []hookrun.TestFunc{TestDownload},
		},
	},
	Functions: []hookrun.TestFunc{TestTempDir},
})

func TestRead(t hookrun.TB) {
	b, err := os.ReadFile(filepath.Join(workDir, "greeting"))
	require.NoError(t, err)

	assert.Equal(t, "hello", string(b))
}

func TestUpperCase(t hookrun.TB) {
	b, err := os.ReadFile(filepath.Join(workDir, "greeting"))
	require.NoError(t, err)

	t.Logf("read %d bytes", len(b))

	assert.Equal(t, "HELLO", strings.ToUpper(string(b)))
}

func TestMissing(t hookrun.TB) {
	_, err := os.Stat(filepath.Join(workDir, "missing"))

	require.NoError(t, err)
}

func TestDownload(t hookrun.TB) {
	t.Fatal("never runs")
}

func TestTempDir(t hookrun.TB) {
	dir := t.TempDir()

	t.Cleanup(func() {
		if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
			t.Log("temp dir is removed after the cleanup")
		}
	})

	require.DirExists(t, dir)
}
