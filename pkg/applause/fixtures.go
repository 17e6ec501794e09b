package applause

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TB is the part of testing.TB the per-test fixture uses.
type TB interface {
	Name() string
	Failed() bool
	Cleanup(func())
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// Runner runs the tests of a session.  *testing.M implements it.
type Runner interface {
	Run() int
}

// Main wraps the run of a test binary in a remote run and returns the exit
// code.  The remote run is ended on every path once it has started, and a
// failure to end it turns a passing exit code into 1.
//
// The remote run announces tests, or the registered case names when tests is
// nil.  A test binary cannot list its own tests, so callers must pass the
// names of the tests it runs or register a case for each of them.
func (p *Plugin) Main(ctx context.Context, m Runner, tests []string) (code int) {
	announced := tests
	if announced == nil {
		announced = p.cases.Names()
	}
	if len(announced) == 0 {
		fmt.Fprintf(os.Stderr,
			"[DEBUG] applause run announces no tests; pass test names to Main or register cases\n")
	}
	if err := p.StartSession(ctx, tests); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] failed to start applause run: %s\n", err)
		return 1
	}
	defer func() {
		if err := p.EndSession(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] failed to end applause run: %s\n", err)
			if code == 0 {
				code = 1
			}
		}
	}()
	return m.Run()
}

// Result creates the remote result of the running test and submits it when
// the test finishes.  Reporting failures are reported as test errors.
func (p *Plugin) Result(t TB) *Result {
	t.Helper()
	ctx := context.Background()
	r, err := p.StartTest(ctx, TestCase{
		ID:    t.Name(),
		Name:  t.Name(),
		Cases: p.cases.Lookup(t.Name()),
	})
	if err != nil {
		t.Fatalf("failed to create applause result: %s", err)
		return nil
	}
	r.t = t
	t.Cleanup(func() {
		if err := p.FinishTest(ctx, r, r.outcome()); err != nil {
			t.Errorf("failed to submit applause result: %s", err)
		}
	})
	return r
}

func (r *Result) outcome() Outcome {
	if r.t == nil || !r.t.Failed() {
		return Outcome{}
	}
	o := Outcome{Failed: true, CrashMessage: "test failed"}
	if len(r.failures) > 0 {
		o.CrashMessage = r.failures[0]
		o.LongText = strings.Join(r.failures, "\n")
	}
	return o
}
