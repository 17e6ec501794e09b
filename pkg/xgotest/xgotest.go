package xgotest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"

	"github.com/applause/applause-gotest/pkg/applause"
	"github.com/applause/applause-gotest/pkg/gotest"
	"github.com/applause/applause-gotest/pkg/reporter"
	"github.com/applause/applause-gotest/pkg/resourcebuckets"
)

// Status is the overall status of a session.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	// StatusFailed means a test or a package failed.
	StatusFailed Status = "FAILED"
	// StatusError means results could not be reported.
	StatusError Status = "ERROR"
)

// Xgotest runs go test over a set of packages and reports every test case
// through an applause.Plugin.
type Xgotest struct {
	GotestBase *gotest.Gotest
	Packages   []string
	Results    []*TestResult
	Status     Status
	// Output receives the summary.  It defaults to os.Stdout.
	Output io.Writer
}

// NewXgotest creates a new Xgotest.
func NewXgotest(base *gotest.Gotest) *Xgotest {
	return &Xgotest{GotestBase: base, Output: os.Stdout}
}

// GetPackages returns the packages to test.
func (x *Xgotest) GetPackages() []string {
	if x.Packages == nil {
		return []string{}
	}
	return x.Packages
}

// AddPackagesWithFilePattern adds the directories of the test files matching
// the given pattern as packages.
func (x *Xgotest) AddPackagesWithFilePattern(pattern string) error {
	files, err := doublestar.Glob(pattern)
	if err != nil {
		return fmt.Errorf(
			"failed to find files with pattern: %s: %s", pattern, err)
	}
	seen := map[string]bool{}
	for _, p := range x.GetPackages() {
		seen[p] = true
	}
	for _, f := range files {
		if !strings.HasSuffix(path.Base(filepath.ToSlash(f)), "_test.go") {
			continue
		}
		pkg := packagePath(filepath.Dir(f))
		if pkg == "" || seen[pkg] {
			continue
		}
		seen[pkg] = true
		x.Packages = append(x.GetPackages(), pkg)
	}
	return nil
}

func packagePath(dir string) string {
	dir = filepath.ToSlash(dir)
	for _, elem := range strings.Split(dir, "/") {
		if elem == "testdata" || elem == "vendor" {
			return ""
		}
	}
	if dir == "." || strings.HasPrefix(dir, "/") || strings.HasPrefix(dir, ".") {
		return dir
	}
	return "./" + dir
}

type message struct {
	event *gotest.Event

	// Set once the go test process of pkg has exited.
	pkg       string
	seen      map[string]bool
	execution *gotest.Execution
	err       error
}

// Execute lists the tests of all packages, starts the session of the plugin,
// runs up to parallel go test processes at a time and reports their test
// cases one event at a time.  The session is ended on every path once it has
// started.
func (x *Xgotest) Execute(
	ctx context.Context, plugin *applause.Plugin, parallel int,
	sink reporter.Reporter,
) (err error) {
	packages := append([]string{}, x.GetPackages()...)
	sort.Strings(packages)
	if len(packages) == 0 {
		return errors.New("no test packages")
	}

	lister := *x.GotestBase
	lister.Packages = packages
	tests, err := lister.List(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list tests")
	}
	names := make([]string, 0, len(tests))
	for _, t := range tests {
		names = append(names, t.Name)
	}

	if err := plugin.StartSession(ctx, names); err != nil {
		return errors.Wrap(err, "failed to start session")
	}
	defer func() {
		if endErr := plugin.EndSession(ctx); endErr != nil {
			x.Status = StatusError
			if err == nil {
				err = errors.Wrap(endErr, "failed to end session")
			}
		}
	}()

	if parallel <= 0 {
		parallel = 1
	}
	rb := resourcebuckets.NewResourceBuckets(1, parallel)
	messages := make(chan *message, parallel)

	wg := sync.WaitGroup{}
	for _, pkg := range packages {
		pkg := pkg
		wg.Add(1)
		go func() {
			defer wg.Done()
			usage, err := rb.Acquire(ctx, 1)
			if err != nil {
				messages <- &message{pkg: pkg, err: err}
				return
			}
			defer rb.Release(usage)
			gt := *x.GotestBase
			gt.Packages = []string{pkg}
			seen := map[string]bool{}
			r, err := gt.Stream(ctx, func(ev gotest.Event) {
				if ev.Package != "" {
					seen[ev.Package] = true
				}
				messages <- &message{event: &ev}
			})
			messages <- &message{pkg: pkg, seen: seen, execution: r, err: err}
		}()
	}
	go func() {
		wg.Wait()
		close(messages)
	}()

	d := &dispatcher{
		ctx:    ctx,
		plugin: plugin,
		sink:   sink,
		open:   map[string]*openTest{},
		failed: map[string]bool{},
	}
	for m := range messages {
		if m.event != nil {
			d.handle(*m.event)
		} else {
			d.finishPackage(m)
		}
	}
	x.Results = d.results
	x.Status = d.status()
	x.printSummary(d)
	return nil
}

func (x *Xgotest) printSummary(d *dispatcher) {
	out := x.Output
	if out == nil {
		out = os.Stdout
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("Applause Test Results")
	t.AppendHeader(table.Row{"Status", "Test", "Elapsed", "Result"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Elapsed", Align: text.AlignRight},
		{Name: "Result", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	passed, failed, skipped, errored := 0, 0, 0, 0
	for _, r := range d.results {
		t.AppendRow(table.Row{
			r.Label(), r.Test.ID(), fmt.Sprintf("%.2fs", r.Elapsed), r.Detail(),
		})
		switch {
		case r.Err != nil:
			errored++
		case r.Failed:
			failed++
		case r.Skipped:
			skipped++
		default:
			passed++
		}
	}
	t.Render()

	if len(d.packageFailures) > 0 {
		fmt.Fprintf(out, "\n%s\n", horizon("FAILED PACKAGES"))
		for _, f := range d.packageFailures {
			fmt.Fprintf(out, "%s\n", f)
		}
	}
	fmt.Fprintf(out, "\n%s\n", horizon("TEST SUMMARY"))
	fmt.Fprintf(out, "%d failed, %d skipped, %d passed, %d not reported\n",
		failed, skipped, passed, errored)
}

func horizon(title string) string {
	if title == "" {
		return strings.Repeat("=", 70)
	}
	title = " " + strings.TrimSpace(title) + " "
	s := strings.Repeat("=", (70-len(title))/2) + title
	return s + strings.Repeat("=", 70-len(s))
}
