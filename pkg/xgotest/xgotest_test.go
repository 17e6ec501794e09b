package xgotest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applause/applause-gotest/pkg/applause"
	"github.com/applause/applause-gotest/pkg/autoapi"
	"github.com/applause/applause-gotest/pkg/gotest"
	"github.com/applause/applause-gotest/pkg/xgotest"
)

// fakeReporter records the calls made by a plugin, keyed by test id.
type fakeReporter struct {
	mu       sync.Mutex
	runs     [][]string
	ends     int
	starts   []string
	statuses map[string]autoapi.TestResultStatus
	params   map[string]autoapi.SubmitParams
	assets   map[string]string
	failIDs  map[string]bool
	startErr error
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{
		statuses: map[string]autoapi.TestResultStatus{},
		params:   map[string]autoapi.SubmitParams{},
		assets:   map[string]string{},
		failIDs:  map[string]bool{},
	}
}

func (r *fakeReporter) RunnerStart(ctx context.Context, tests []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, tests)
	return r.startErr
}

func (r *fakeReporter) RunnerEnd(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends++
	return nil
}

func (r *fakeReporter) StartTestCase(
	ctx context.Context, id, testCaseName string, providerSessionIDs []string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[id] {
		return errors.Errorf("failed to create result for %s", id)
	}
	r.starts = append(r.starts, id)
	return nil
}

func (r *fakeReporter) SubmitTestCaseResult(
	ctx context.Context, id string, status autoapi.TestResultStatus,
	params autoapi.SubmitParams,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
	r.params[id] = params
	return nil
}

func (r *fakeReporter) AttachTestCaseAsset(
	ctx context.Context, id, assetName string, asset []byte,
	assetType autoapi.AssetType, providerSessionGUID string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[id] = string(asset)
	return nil
}

type fakeSink struct {
	lines []string
}

func (s *fakeSink) Log(ctx context.Context, line string) {
	s.lines = append(s.lines, line)
}

func (s *fakeSink) Flush(ctx context.Context) error {
	return nil
}

// fakePackage is the go test behavior of one package directory.
type fakePackage struct {
	importPath string
	tests      []string
	events     []gotest.Event
	status     gotest.Status
}

func eventLine(t *testing.T, ev gotest.Event) []byte {
	buf, err := json.Marshal(ev)
	require.NoError(t, err)
	return buf
}

func newExecutor(
	t *testing.T, packages map[string]*fakePackage,
) gotest.Executor {
	return func(
		ctx context.Context, args []string, d time.Duration, env []string,
		onLine func([]byte),
	) (*gotest.Execution, error) {
		switch args[2] {
		case "-list":
			for _, dir := range args[4:] {
				p := packages[dir]
				for _, name := range p.tests {
					onLine([]byte(name))
				}
				onLine([]byte("ok  \t" + p.importPath + "\t0.01s"))
			}
			return &gotest.Execution{Status: gotest.StatusSuccess}, nil
		case "-json":
			p := packages[args[len(args)-1]]
			for _, ev := range p.events {
				ev.Package = p.importPath
				onLine(eventLine(t, ev))
			}
			status := p.status
			if status == "" {
				status = gotest.StatusSuccess
			}
			return &gotest.Execution{Status: status}, nil
		}
		t.Fatalf("unexpected args: %v", args)
		return nil, nil
	}
}

func run(name string) gotest.Event {
	return gotest.Event{Action: gotest.ActionRun, Test: name}
}

func output(name, text string) gotest.Event {
	return gotest.Event{Action: gotest.ActionOutput, Test: name, Output: text}
}

func done(name string, action gotest.Action) gotest.Event {
	return gotest.Event{Action: action, Test: name, Elapsed: 0.5}
}

func samplePackages() map[string]*fakePackage {
	return map[string]*fakePackage{
		"./a": {
			importPath: "example.com/a",
			tests:      []string{"TestOne", "TestTwo", "TestSkip"},
			events: []gotest.Event{
				run("TestOne"),
				output("TestOne", "=== RUN   TestOne\n"),
				run("TestOne/sub"),
				output("TestOne/sub", "    a_test.go:5: from subtest\n"),
				done("TestOne/sub", gotest.ActionPass),
				done("TestOne", gotest.ActionPass),
				run("TestTwo"),
				output("TestTwo", "=== RUN   TestTwo\n"),
				output("TestTwo", "    a_test.go:12: boom\n"),
				output("TestTwo", "--- FAIL: TestTwo (0.50s)\n"),
				done("TestTwo", gotest.ActionFail),
				run("TestSkip"),
				done("TestSkip", gotest.ActionSkip),
				{Action: gotest.ActionFail},
			},
			status: gotest.StatusFailed,
		},
		"./b": {
			importPath: "example.com/b",
			tests:      []string{"TestHang"},
			events: []gotest.Event{
				run("TestHang"),
				output("TestHang", "=== RUN   TestHang\n"),
			},
			status: gotest.StatusTimeout,
		},
	}
}

func newSession(
	t *testing.T, packages map[string]*fakePackage,
) (*xgotest.Xgotest, *bytes.Buffer) {
	base := gotest.NewGotest("go")
	base.Deadline = time.Minute
	base.Executor = newExecutor(t, packages)
	xgt := xgotest.NewXgotest(base)
	for dir := range packages {
		xgt.Packages = append(xgt.GetPackages(), dir)
	}
	out := &bytes.Buffer{}
	xgt.Output = out
	return xgt, out
}

func TestXgotestReportsEveryTest(t *testing.T) {
	ctx := context.Background()
	rec := newFakeReporter()
	cases := applause.NewCases()
	cases.Register("example.com/a/TestOne", applause.CaseIDs{ApplauseTestCaseID: "11"})
	cases.Register("TestTwo", applause.CaseIDs{TestRailCaseID: "22"})
	plugin := applause.NewWithReporter(rec,
		applause.WithoutConsole(), applause.WithCases(cases))
	sink := &fakeSink{}

	xgt, out := newSession(t, samplePackages())
	require.NoError(t, xgt.Execute(ctx, plugin, 2, sink))

	assert.Equal(t, [][]string{{"TestOne", "TestTwo", "TestSkip", "TestHang"}}, rec.runs)
	assert.Equal(t, 1, rec.ends)
	assert.ElementsMatch(t, []string{
		"example.com/a/TestOne", "example.com/a/TestTwo",
		"example.com/a/TestSkip", "example.com/b/TestHang",
	}, rec.starts)
	assert.Equal(t, map[string]autoapi.TestResultStatus{
		"example.com/a/TestOne":  autoapi.StatusPassed,
		"example.com/a/TestTwo":  autoapi.StatusFailed,
		"example.com/a/TestSkip": autoapi.StatusPassed,
		"example.com/b/TestHang": autoapi.StatusFailed,
	}, rec.statuses)

	one := rec.params["example.com/a/TestOne"]
	assert.Equal(t, "11", *one.ApplauseTestCaseID)
	assert.Nil(t, one.FailureReason)
	two := rec.params["example.com/a/TestTwo"]
	assert.Equal(t, "22", *two.TestRailCaseID)
	assert.Equal(t, "a_test.go:12: boom", *two.FailureReason)
	assert.Equal(t, "test did not report an outcome",
		*rec.params["example.com/b/TestHang"].FailureReason)

	assert.Contains(t, rec.assets["example.com/a/TestOne"], "a_test.go:5: from subtest")
	assert.True(t, strings.HasPrefix(rec.assets["example.com/a/TestTwo"],
		"Starting test case TestTwo\n=== RUN   TestTwo\n"))

	assert.Equal(t, xgotest.StatusFailed, xgt.Status)
	assert.Len(t, xgt.Results, 4)
	assert.Len(t, sink.lines, 4)
	assert.Contains(t, sink.lines, "FAILED\texample.com/a/TestTwo\t0.50\ta_test.go:12: boom")
	assert.Contains(t, sink.lines, "SKIPPED\texample.com/a/TestSkip\t0.50\t")

	assert.Contains(t, out.String(), "FAILED PACKAGES")
	assert.Contains(t, out.String(), "./b: TIMEOUT")
	assert.NotContains(t, out.String(), "./a: FAILED")
	assert.Contains(t, out.String(), "2 failed, 1 skipped, 1 passed, 0 not reported")
}

func TestXgotestStripsANSIFromSummaryOnly(t *testing.T) {
	ctx := context.Background()
	rec := newFakeReporter()
	plugin := applause.NewWithReporter(rec, applause.WithoutConsole())
	sink := &fakeSink{}

	packages := map[string]*fakePackage{
		"./c": {
			importPath: "example.com/c",
			tests:      []string{"TestColor"},
			events: []gotest.Event{
				run("TestColor"),
				output("TestColor", "    c_test.go:3: \x1b[31mboom\x1b[0m\n"),
				done("TestColor", gotest.ActionFail),
			},
			status: gotest.StatusFailed,
		},
	}
	xgt, out := newSession(t, packages)
	require.NoError(t, xgt.Execute(ctx, plugin, 1, sink))

	assert.Equal(t, "c_test.go:3: \x1b[31mboom\x1b[0m",
		*rec.params["example.com/c/TestColor"].FailureReason)
	assert.Contains(t, rec.assets["example.com/c/TestColor"], "\x1b[31mboom\x1b[0m")
	assert.Equal(t, []string{
		"FAILED\texample.com/c/TestColor\t0.50\tc_test.go:3: boom",
	}, sink.lines)
	assert.NotContains(t, out.String(), "\x1b[31m")
}

func TestXgotestContinuesAfterReportingErrors(t *testing.T) {
	ctx := context.Background()
	rec := newFakeReporter()
	rec.failIDs["example.com/a/TestOne"] = true
	plugin := applause.NewWithReporter(rec,
		applause.WithoutConsole(), applause.WithConsoleAsset(false))

	packages := samplePackages()
	delete(packages, "./b")
	xgt, out := newSession(t, packages)
	require.NoError(t, xgt.Execute(ctx, plugin, 1, nil))

	assert.Equal(t, []string{"example.com/a/TestTwo", "example.com/a/TestSkip"}, rec.starts)
	assert.Len(t, rec.statuses, 2)
	assert.Equal(t, 1, rec.ends)
	assert.Equal(t, xgotest.StatusError, xgt.Status)
	assert.Equal(t, "ERROR", xgt.Results[0].Label())
	assert.Contains(t, out.String(), "1 failed, 1 skipped, 0 passed, 1 not reported")
}

func TestXgotestDoesNotStartTestsWhenSessionFails(t *testing.T) {
	ctx := context.Background()
	rec := newFakeReporter()
	rec.startErr = errors.New("unauthorized")
	plugin := applause.NewWithReporter(rec, applause.WithoutConsole())

	xgt, _ := newSession(t, samplePackages())
	err := xgt.Execute(ctx, plugin, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Empty(t, rec.starts)
	assert.Equal(t, 0, rec.ends)
}

func TestXgotestRequiresPackages(t *testing.T) {
	ctx := context.Background()
	plugin := applause.NewWithReporter(newFakeReporter(), applause.WithoutConsole())
	xgt := xgotest.NewXgotest(gotest.NewGotest("go"))
	assert.Error(t, xgt.Execute(ctx, plugin, 1, nil))
}

func TestXgotestLimitsParallelPackages(t *testing.T) {
	ctx := context.Background()

	lock := sync.WaitGroup{}
	total := int64(0)
	running := int64(0)
	lock.Add(1)
	base := gotest.NewGotest("go")
	base.Deadline = time.Minute
	base.Executor = func(
		ctx context.Context, args []string, d time.Duration, x []string,
		onLine func([]byte),
	) (*gotest.Execution, error) {
		if args[2] == "-list" {
			return &gotest.Execution{Status: gotest.StatusSuccess}, nil
		}
		defer atomic.AddInt64(&running, -1)
		defer atomic.AddInt64(&total, 1)
		atomic.AddInt64(&running, 1)
		lock.Wait()
		return &gotest.Execution{Status: gotest.StatusSuccess}, nil
	}
	xgt := xgotest.NewXgotest(base)
	xgt.Output = ioutil.Discard
	for i := 0; i < 20; i++ {
		xgt.Packages = append(xgt.GetPackages(), "./pkg"+string(rune('a'+i)))
	}
	plugin := applause.NewWithReporter(newFakeReporter(), applause.WithoutConsole())

	testGroup := sync.WaitGroup{}
	testGroup.Add(1)
	go func() {
		defer testGroup.Done()
		if err := xgt.Execute(ctx, plugin, 4, nil); err != nil {
			t.Errorf("failed to execute: %s", err)
		}
	}()

	for atomic.LoadInt64(&running) < 4 {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt64(&running); n != 4 {
		t.Fatalf("# of running packages is unexpected: %d", n)
	}

	lock.Done()
	testGroup.Wait()

	if total != 20 {
		t.Fatalf("# of packages is unexpected: %d", total)
	}
	assert.Equal(t, xgotest.StatusSuccess, xgt.Status)
}

func TestAddPackagesWithFilePattern(t *testing.T) {
	dir, err := ioutil.TempDir("", "xgotest")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	for _, f := range []string{
		"a/a_test.go",
		"a/b_test.go",
		"b/c/c_test.go",
		"b/testdata/x_test.go",
		"d/d.go",
	} {
		p := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, ioutil.WriteFile(p, []byte("package x\n"), 0644))
	}

	xgt := xgotest.NewXgotest(gotest.NewGotest("go"))
	require.NoError(t, xgt.AddPackagesWithFilePattern(
		filepath.Join(dir, "**", "*_test.go")))
	require.NoError(t, xgt.AddPackagesWithFilePattern(
		filepath.Join(dir, "a", "*.go")))
	assert.ElementsMatch(t, []string{
		filepath.ToSlash(filepath.Join(dir, "a")),
		filepath.ToSlash(filepath.Join(dir, "b", "c")),
	}, xgt.GetPackages())
}
