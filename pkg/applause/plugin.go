// Package applause reports Go test cases to the Applause automation API.
//
// A Plugin owns one reporter for a whole test session.  The session starts a
// remote run, each test case gets a remote result through a Result tracker,
// and the run is closed when the session ends:
//
//	var plugin *applause.Plugin
//
//	func TestMain(m *testing.M) {
//		cfg, _ := autoapi.LoadConfig("")
//		p, err := applause.New(cfg)
//		if err != nil {
//			panic(err)
//		}
//		plugin = p
//		os.Exit(plugin.Main(context.Background(), m, []string{"TestSomething"}))
//	}
//
//	func TestSomething(t *testing.T) {
//		r := plugin.Result(t)
//		r.Log("hello")
//	}
package applause

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/applause/applause-gotest/pkg/autoapi"
)

// ConsoleLogAsset is the name of the asset holding the lines a test logged.
const ConsoleLogAsset = "console_log.txt"

var (
	// ErrSessionState is returned when a hook is called out of order.
	ErrSessionState = errors.New("invalid session state")
	// ErrDuplicateResult is returned when a test id already has an active
	// result.
	ErrDuplicateResult = errors.New("result already active")
	// ErrUnknownResult is returned when finishing a result that is not active.
	ErrUnknownResult = errors.New("result not active")
)

// Reporter is the reporting client the plugin drives.  *autoapi.Reporter
// implements it.
type Reporter interface {
	RunnerStart(ctx context.Context, tests []string) error
	RunnerEnd(ctx context.Context) error
	StartTestCase(ctx context.Context, id, testCaseName string, providerSessionIDs []string) error
	SubmitTestCaseResult(ctx context.Context, id string, status autoapi.TestResultStatus, params autoapi.SubmitParams) error
	AttachTestCaseAsset(ctx context.Context, id, assetName string, asset []byte, assetType autoapi.AssetType, providerSessionGUID string) error
}

// TestCase identifies a test case about to run.
type TestCase struct {
	ID    string
	Name  string
	Cases CaseIDs
}

// Outcome is the captured outcome of a finished test case.
type Outcome struct {
	Failed bool
	// CrashMessage is the short failure message, sent as the failure reason.
	CrashMessage string
	// LongText is the full failure report, kept in the console log.
	LongText string
}

type sessionState int

const (
	sessionConstructed sessionState = iota
	sessionStarted
	sessionEnded
)

// Plugin drives a Reporter through the lifecycle of a test session.  It is
// not safe for concurrent use: test cases are reported one at a time.
type Plugin struct {
	reporter     Reporter
	cases        *Cases
	console      io.Writer
	consoleAsset bool
	state        sessionState
	active       map[string]*Result
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithConsole echoes result logs to w.
func WithConsole(w io.Writer) Option {
	return func(p *Plugin) {
		p.console = w
	}
}

// WithoutConsole disables echoing result logs.
func WithoutConsole() Option {
	return WithConsole(nil)
}

// WithConsoleAsset enables or disables uploading the result logs as
// console_log.txt when a test finishes.
func WithConsoleAsset(enabled bool) Option {
	return func(p *Plugin) {
		p.consoleAsset = enabled
	}
}

// WithCases sets the registry of external case ids.
func WithCases(cases *Cases) Option {
	return func(p *Plugin) {
		p.cases = cases
	}
}

// New creates a Plugin reporting to the Applause automation API.
func New(cfg autoapi.Config, opts ...Option) (*Plugin, error) {
	r, err := autoapi.NewReporter(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithReporter(r, opts...), nil
}

// NewWithReporter creates a Plugin driving the given reporter.
func NewWithReporter(r Reporter, opts ...Option) *Plugin {
	p := &Plugin{
		reporter:     r,
		console:      os.Stdout,
		consoleAsset: true,
		active:       map[string]*Result{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reporter returns the reporter shared by all results of the session.
func (p *Plugin) Reporter() Reporter {
	return p.reporter
}

// Cases returns the registry of external case ids.
func (p *Plugin) Cases() *Cases {
	return p.cases
}

// StartSession starts the remote run.  A nil tests list announces the
// registered case names.
func (p *Plugin) StartSession(ctx context.Context, tests []string) error {
	if p.state != sessionConstructed {
		return errors.Wrap(ErrSessionState, "session already started")
	}
	if tests == nil {
		tests = p.cases.Names()
	}
	if err := p.reporter.RunnerStart(ctx, tests); err != nil {
		return err
	}
	p.state = sessionStarted
	return nil
}

// EndSession ends the remote run.
func (p *Plugin) EndSession(ctx context.Context) error {
	if p.state != sessionStarted {
		return errors.Wrap(ErrSessionState, "session is not running")
	}
	p.state = sessionEnded
	return p.reporter.RunnerEnd(ctx)
}

// StartTest creates the remote result of a test case and returns its
// tracker.
func (p *Plugin) StartTest(ctx context.Context, tc TestCase) (*Result, error) {
	if p.state != sessionStarted {
		return nil, errors.Wrapf(ErrSessionState,
			"cannot start %s outside of a session", tc.ID)
	}
	if _, ok := p.active[tc.ID]; ok {
		return nil, errors.Wrap(ErrDuplicateResult, tc.ID)
	}
	if err := p.reporter.StartTestCase(ctx, tc.ID, tc.Name, []string{}); err != nil {
		return nil, err
	}
	r := &Result{
		ID:       tc.ID,
		Name:     tc.Name,
		Cases:    tc.Cases,
		reporter: p.reporter,
		console:  p.console,
	}
	p.active[tc.ID] = r
	if p.capturesConsole() {
		r.Logf("Starting test case %s", tc.Name)
	}
	return r, nil
}

// FinishTest submits the result of a test case.  The result stops being
// active even when reporting fails.
func (p *Plugin) FinishTest(ctx context.Context, r *Result, outcome Outcome) error {
	if p.active[r.ID] != r {
		return errors.Wrap(ErrUnknownResult, r.ID)
	}
	defer delete(p.active, r.ID)

	status := autoapi.StatusPassed
	if outcome.Failed {
		status = autoapi.StatusFailed
	}
	if p.capturesConsole() {
		r.Logf("Test case %s has completed with status: %s", r.Name, status)
		if outcome.Failed && outcome.LongText != "" {
			r.Log(outcome.LongText)
		}
	}
	if p.consoleAsset {
		log := strings.Join(r.logs, "\n")
		if err := r.AttachAsset(ctx, ConsoleLogAsset, []byte(log),
			autoapi.AssetConsoleLog, ""); err != nil {
			return err
		}
	}

	params := autoapi.SubmitParams{
		ProviderSessionGUIDs: r.SessionIDs(),
		ApplauseTestCaseID:   optional(r.Cases.ApplauseTestCaseID),
		TestRailCaseID:       optional(r.Cases.TestRailCaseID),
	}
	if params.ProviderSessionGUIDs == nil {
		params.ProviderSessionGUIDs = []string{}
	}
	if outcome.Failed {
		reason := outcome.CrashMessage
		params.FailureReason = &reason
	}
	return p.reporter.SubmitTestCaseResult(ctx, r.ID, status, params)
}

func (p *Plugin) capturesConsole() bool {
	return p.console != nil || p.consoleAsset
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
