package gotest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Executor executes a command, passing each line of its stdout to onLine.
type Executor func(
	ctx context.Context, args []string, deadline time.Duration, env []string,
	onLine func([]byte),
) (*Execution, error)

// Gotest represents go test invocations over a set of packages.
type Gotest struct {
	GoCmd    string
	Packages []string
	// Run is passed as -run when it is not empty.
	Run      string
	Env      []string
	Deadline time.Duration
	Executor Executor
}

// NewGotest creates a new Gotest object.
func NewGotest(goCmd string) *Gotest {
	return &Gotest{GoCmd: goCmd, Executor: Execute}
}

// Test names one test function of a package.
type Test struct {
	Package string
	Name    string
}

// ID returns the package-qualified test id.
func (t Test) ID() string {
	return t.Package + "/" + t.Name
}

func (g *Gotest) check() error {
	if len(g.Packages) == 0 {
		return errors.New("Gotest.Packages must not be empty")
	}
	if g.Deadline <= 0 {
		return fmt.Errorf("Gotest.Deadline must be positive value")
	}
	return nil
}

// List lists the tests that a run would execute without running them.
func (g *Gotest) List(ctx context.Context) ([]Test, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	pattern := g.Run
	if pattern == "" {
		pattern = "."
	}
	args := []string{g.GoCmd, "test", "-list", pattern}
	args = append(args, g.Packages...)

	tests := []Test{}
	pending := []string{}
	r, err := g.Executor(ctx, args, g.Deadline, g.Env, func(line []byte) {
		s := strings.TrimSpace(string(line))
		fields := strings.Fields(s)
		switch {
		case len(fields) >= 2 && fields[0] == "ok":
			for _, name := range pending {
				tests = append(tests, Test{Package: fields[1], Name: name})
			}
			pending = pending[:0]
		case isTestName(s):
			pending = append(pending, s)
		}
	})
	if err != nil {
		return nil, err
	}
	if r.Status != StatusSuccess {
		return nil, fmt.Errorf("failed to list tests (%s): %s",
			r.Status, strings.TrimSpace(r.Stderr))
	}
	return tests, nil
}

// Stream runs the tests with -json and passes every decoded event to handle.
// Lines that are not test2json events are passed as output events without a
// test.
func (g *Gotest) Stream(
	ctx context.Context, handle func(Event),
) (*Execution, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	args := []string{g.GoCmd, "test", "-json"}
	if g.Run != "" {
		args = append(args, "-run", g.Run)
	}
	args = append(args, g.Packages...)

	return g.Executor(ctx, args, g.Deadline, g.Env, func(line []byte) {
		ev, err := ParseEvent(line)
		if err != nil {
			ev = Event{Action: ActionOutput, Output: string(line) + "\n"}
		}
		handle(ev)
	})
}

func isTestName(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	for _, prefix := range []string{"Test", "Example", "Fuzz"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
