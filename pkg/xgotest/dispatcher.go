package xgotest

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/acarl005/stripansi"

	"github.com/applause/applause-gotest/pkg/applause"
	"github.com/applause/applause-gotest/pkg/autoapi"
	"github.com/applause/applause-gotest/pkg/gotest"
	"github.com/applause/applause-gotest/pkg/reporter"
)

// noOutcome is the failure reason of a test whose process exited before it
// reported pass, fail or skip.
const noOutcome = "test did not report an outcome"

// TestResult is the outcome of one test case of a session.
type TestResult struct {
	Test    gotest.Test
	Failed  bool
	Skipped bool
	Elapsed float64
	// Failure is the short failure message of a failed test.
	Failure string
	// Err is set when the result could not be reported.
	Err error
}

// Status returns the status submitted for the test case.
func (r *TestResult) Status() autoapi.TestResultStatus {
	if r.Failed {
		return autoapi.StatusFailed
	}
	return autoapi.StatusPassed
}

// Label returns the status shown in summaries.
func (r *TestResult) Label() string {
	switch {
	case r.Err != nil:
		return "ERROR"
	case r.Skipped:
		return "SKIPPED"
	}
	return string(r.Status())
}

// Detail returns the failure message or the reporting error, without ANSI
// escape sequences.
func (r *TestResult) Detail() string {
	if r.Err != nil {
		return stripansi.Strip(r.Err.Error())
	}
	return stripansi.Strip(r.Failure)
}

func (r *TestResult) String() string {
	return strings.Join([]string{
		r.Label(), r.Test.ID(), fmt.Sprintf("%.2f", r.Elapsed), r.Detail(),
	}, "\t")
}

type openTest struct {
	test   gotest.Test
	result *applause.Result
	output []string
}

// dispatcher turns test2json events into plugin calls.  It is driven by a
// single goroutine.
type dispatcher struct {
	ctx             context.Context
	plugin          *applause.Plugin
	sink            reporter.Reporter
	open            map[string]*openTest
	results         []*TestResult
	packageFailures []string
	// Packages with at least one failed test.
	failed map[string]bool
}

func (d *dispatcher) handle(ev gotest.Event) {
	if ev.Test == "" || ev.Package == "" {
		return
	}
	name := ev.Test
	if i := strings.Index(name, "/"); i >= 0 {
		// Subtests are reported as part of their top-level test.
		name = name[:i]
		if ev.Action != gotest.ActionOutput {
			return
		}
	}
	test := gotest.Test{Package: ev.Package, Name: name}
	id := test.ID()

	switch {
	case ev.Action == gotest.ActionRun:
		if _, ok := d.open[id]; ok {
			return
		}
		r, err := d.plugin.StartTest(d.ctx, applause.TestCase{
			ID:    id,
			Name:  name,
			Cases: d.plugin.Cases().Lookup(id),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] failed to start %s: %s\n", id, err)
			d.record(&TestResult{Test: test, Err: err})
			return
		}
		d.open[id] = &openTest{test: test, result: r}
	case ev.Action == gotest.ActionOutput:
		o, ok := d.open[id]
		if !ok {
			return
		}
		o.output = append(o.output, ev.Output)
		o.result.Log(strings.TrimRight(ev.Output, "\r\n"))
	case ev.Done():
		o, ok := d.open[id]
		if !ok {
			return
		}
		tr := &TestResult{
			Test:    test,
			Failed:  ev.Action == gotest.ActionFail,
			Skipped: ev.Action == gotest.ActionSkip,
			Elapsed: ev.Elapsed,
		}
		if tr.Failed {
			tr.Failure = gotest.FailureMessage(o.output)
		}
		d.finish(o, tr, strings.TrimRight(strings.Join(o.output, ""), "\n"))
	}
}

func (d *dispatcher) finish(o *openTest, tr *TestResult, longText string) {
	delete(d.open, o.test.ID())
	if err := d.plugin.FinishTest(d.ctx, o.result, applause.Outcome{
		Failed:       tr.Failed,
		CrashMessage: tr.Failure,
		LongText:     longText,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] failed to report %s: %s\n",
			o.test.ID(), err)
		tr.Err = err
	}
	d.record(tr)
}

// finishPackage finishes the results left open by the exited go test process
// of m.pkg.
func (d *dispatcher) finishPackage(m *message) {
	ids := []string{}
	for id, o := range d.open {
		if m.seen[o.test.Package] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		o := d.open[id]
		d.finish(o, &TestResult{
			Test: o.test, Failed: true, Failure: noOutcome,
		}, noOutcome)
	}

	switch {
	case m.err != nil:
		fmt.Fprintf(os.Stderr, "[ERROR] failed to run %s: %s\n", m.pkg, m.err)
		d.packageFailures = append(d.packageFailures,
			fmt.Sprintf("%s: %s", m.pkg, m.err))
	case m.execution.Status == gotest.StatusFailed && d.anyFailed(m.seen):
		// Already reported through its failed tests.
	case m.execution.Status != gotest.StatusSuccess:
		msg := fmt.Sprintf("%s: %s", m.pkg, m.execution.Status)
		if stderr := strings.TrimSpace(m.execution.Stderr); stderr != "" {
			msg += "\n" + stderr
		}
		d.packageFailures = append(d.packageFailures, msg)
	default:
		fmt.Fprintf(os.Stderr, "[DEBUG] %s finished in %.1f seconds\n",
			m.pkg, m.execution.Time)
	}
}

func (d *dispatcher) anyFailed(packages map[string]bool) bool {
	for pkg := range packages {
		if d.failed[pkg] {
			return true
		}
	}
	return false
}

func (d *dispatcher) record(tr *TestResult) {
	d.results = append(d.results, tr)
	if tr.Failed {
		d.failed[tr.Test.Package] = true
	}
	if d.sink != nil {
		d.sink.Log(d.ctx, tr.String())
	}
}

func (d *dispatcher) status() Status {
	status := StatusSuccess
	if len(d.packageFailures) > 0 {
		status = StatusFailed
	}
	for _, r := range d.results {
		if r.Err != nil {
			return StatusError
		}
		if r.Failed {
			status = StatusFailed
		}
	}
	return status
}
