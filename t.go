package hookrun

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/raphi011/hookrun/internal/model"
)

// make sure we adhere to the TB interface
var _ model.TB = &T{}

type T struct {
	testName   string
	logs       strings.Builder
	errors     []string
	failed     bool
	skipped    bool
	skipReason string
	cleanups   []func()
	// output receives log lines as they are written, nil when buffered.
	output io.Writer
	log    *slog.Logger
}

func newT(name string, output io.Writer, log *slog.Logger) *T {
	return &T{testName: name, output: output, log: log}
}

// Cleanup registers a function that is called after the test and its
// tear down finished. Cleanups run in last added, first called order.
func (t *T) Cleanup(c func()) {
	t.cleanups = append(t.cleanups, c)
}

func (t *T) Error(args ...any) {
	t.errors = append(t.errors, fmt.Sprint(args...))
	t.Fail()
}

func (t *T) Errorf(format string, args ...any) {
	t.errors = append(t.errors, fmt.Sprintf(format, args...))
	t.Fail()
}

func (t *T) Fail() {
	t.failed = true
}

func (t *T) FailNow() {
	t.Fail()
	panic(failTestErr{})
}

func (t *T) Failed() bool {
	return t.failed
}

func (t *T) Fatal(args ...any) {
	t.Error(args...)
	panic(failTestErr{})
}

func (t *T) Fatalf(format string, args ...any) {
	t.Errorf(format, args...)
	panic(failTestErr{})
}

func (t *T) Helper() {}

func (t *T) Log(args ...any) {
	t.writeLog(fmt.Sprint(args...) + "\n")
}

func (t *T) Logf(format string, args ...any) {
	t.writeLog(fmt.Sprintf(format, args...) + "\n")
}

func (t *T) writeLog(line string) {
	t.logs.WriteString(line)

	if t.output != nil {
		_, _ = io.WriteString(t.output, line)
	}
}

func (t *T) Name() string {
	return t.testName
}

// Setenv sets an environment variable for the duration of the test.
func (t *T) Setenv(key, value string) {
	prev, ok := os.LookupEnv(key)

	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s: %v", key, err)
	}

	t.Cleanup(func() {
		if ok {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func (t *T) Skip(args ...any) {
	t.skipReason = fmt.Sprint(args...)
	t.SkipNow()
}

func (t *T) SkipNow() {
	t.skipped = true
	panic(skipTestErr{})
}

func (t *T) Skipf(format string, args ...any) {
	t.skipReason = fmt.Sprintf(format, args...)
	t.SkipNow()
}

func (t *T) Skipped() bool {
	return t.skipped
}

// TempDir returns a new temporary directory that is removed during cleanup.
func (t *T) TempDir() string {
	dir, err := os.MkdirTemp("", strings.NewReplacer("/", "_", " ", "_").Replace(t.testName)+"-")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}

	t.Cleanup(func() {
		if err := os.RemoveAll(dir); err != nil {
			t.log.Warn("removing temp dir failed", "error", err, "test-name", t.testName)
		}
	})

	return dir
}

// Logs returns everything the test logged so far.
func (t *T) Logs() string {
	return t.logs.String()
}

// stageResult is the outcome of running a single stage of a test.
type stageResult struct {
	outcome Outcome
	details string
	err     error
}

// runStage executes fn and converts panics into an outcome. Skips and
// FailNow are signalled via panics with the private sentinel types.
func (t *T) runStage(fn func()) (res stageResult) {
	failedBefore := len(t.errors)
	wasFailed := t.failed

	defer func() {
		r := recover()

		switch r.(type) {
		case nil:
			if t.failed && !wasFailed {
				res = t.failure(failedBefore)
			}
		case skipTestErr:
			res = stageResult{outcome: OutcomeSkipped, details: t.skipReason}
		case failTestErr:
			res = t.failure(failedBefore)
		default:
			// this is an unexpected panic (does not originate from hookrun)
			err := fmt.Errorf("panic: %v", r)
			res = stageResult{
				outcome: OutcomeError,
				err:     err,
				details: fmt.Sprintf("%v\n\n%s", err, debug.Stack()),
			}
		}
	}()

	res = stageResult{outcome: OutcomePassed}

	fn()

	return
}

func (t *T) failure(from int) stageResult {
	msgs := t.errors[from:]
	if len(msgs) == 0 {
		msgs = t.errors
	}

	details := strings.Join(msgs, "\n")
	if details == "" {
		details = "test failed"
	}

	return stageResult{outcome: OutcomeFailed, details: details, err: errors.New(details)}
}

// runCleanups calls all cleanup functions, most recently added first.
// Panics are recovered and collected.
func (t *T) runCleanups() error {
	var errs *multierror.Error

	for len(t.cleanups) > 0 {
		c := t.cleanups[len(t.cleanups)-1]
		t.cleanups = t.cleanups[:len(t.cleanups)-1]

		if err := t.runCleanup(c); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

func (t *T) runCleanup(c func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case failTestErr, skipTestErr:
				err = fmt.Errorf("cleanup stopped the test")
			default:
				err = fmt.Errorf("cleanup func panic'd: %v", r)
			}

			t.log.Warn("cleanup func panic'd", "error", r, "test-name", t.testName)
		}
	}()

	c()

	return nil
}

// skipTestErr is passed to panic() to signal
// that a test was skipped.
type skipTestErr struct{}

// failTestErr is passed to panic() to signal
// that a test has failed.
type failTestErr struct{}
