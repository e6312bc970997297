package hookrun_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/raphi011/hookrun"
	"github.com/stretchr/testify/require"
)

func passes(t hookrun.TB) {}

func alsoPasses(t hookrun.TB) {}

func fails(t hookrun.TB) {
	t.Fatal("boom")
}

func panics(t hookrun.TB) {
	panic("kaboom")
}

func skips(t hookrun.TB) {
	t.Skip("not today")
}

func logsAndFails(t hookrun.TB) {
	t.Log("some context")
	t.Error("bad value")
}

// journal records fixture calls and started tests in order.
type journal struct {
	entries []string
}

func (j *journal) add(entry string) func() error {
	return func() error {
		j.entries = append(j.entries, entry)
		return nil
	}
}

func (j *journal) fail(entry string) func() error {
	return func() error {
		j.entries = append(j.entries, entry)
		return errors.New(entry + " failed")
	}
}

// session creates an isolated session containing modules that writes
// its report to out.
func session(t *testing.T, out *bytes.Buffer, modules ...*hookrun.Module) *hookrun.Session {
	t.Helper()

	if out == nil {
		out = &bytes.Buffer{}
	}

	return hookrun.New(
		hookrun.WithCatalog(hookrun.NewCatalog()),
		hookrun.WithModules(modules...),
		hookrun.WithStdout(out),
		hookrun.WithStderr(out),
		hookrun.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
}

// run executes test against a fresh result and journals started tests.
func run(t *testing.T, s *hookrun.Session, j *journal, test hookrun.Test) *hookrun.Result {
	t.Helper()

	_, err := s.Hooks().Register(hookrun.HookStartTest, func(e hookrun.Event) any {
		j.entries = append(j.entries, e.(*hookrun.StartTestEvent).Test.ID())
		return nil
	})
	require.NoError(t, err)

	result := hookrun.NewResult(s.Hooks(), s.Log())
	test.Run(result)

	return result
}

func failureDescriptions(failures []hookrun.TestFailure) []string {
	out := []string{}
	for _, f := range failures {
		out = append(out, f.Test.Description())
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
