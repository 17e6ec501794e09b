package applause_test

import (
	"context"
	"fmt"

	"github.com/applause/applause-gotest/pkg/autoapi"
)

type startCall struct {
	ID                 string
	Name               string
	ProviderSessionIDs []string
}

type submitCall struct {
	ID     string
	Status autoapi.TestResultStatus
	Params autoapi.SubmitParams
}

type assetCall struct {
	ID                  string
	Name                string
	Asset               string
	Type                autoapi.AssetType
	ProviderSessionGUID string
}

// recorder is a Reporter that records every call.
type recorder struct {
	calls   []string
	runs    [][]string
	starts  []startCall
	submits []submitCall
	assets  []assetCall
	errs    map[string]error
}

func newRecorder() *recorder {
	return &recorder{errs: map[string]error{}}
}

func (r *recorder) count(method string) int {
	n := 0
	for _, c := range r.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (r *recorder) RunnerStart(ctx context.Context, tests []string) error {
	r.calls = append(r.calls, "RunnerStart")
	r.runs = append(r.runs, tests)
	return r.errs["RunnerStart"]
}

func (r *recorder) RunnerEnd(ctx context.Context) error {
	r.calls = append(r.calls, "RunnerEnd")
	return r.errs["RunnerEnd"]
}

func (r *recorder) StartTestCase(
	ctx context.Context, id, testCaseName string, providerSessionIDs []string,
) error {
	r.calls = append(r.calls, "StartTestCase")
	r.starts = append(r.starts, startCall{id, testCaseName, providerSessionIDs})
	return r.errs["StartTestCase"]
}

func (r *recorder) SubmitTestCaseResult(
	ctx context.Context, id string, status autoapi.TestResultStatus,
	params autoapi.SubmitParams,
) error {
	r.calls = append(r.calls, "SubmitTestCaseResult")
	r.submits = append(r.submits, submitCall{id, status, params})
	return r.errs["SubmitTestCaseResult"]
}

func (r *recorder) AttachTestCaseAsset(
	ctx context.Context, id, assetName string, asset []byte,
	assetType autoapi.AssetType, providerSessionGUID string,
) error {
	r.calls = append(r.calls, "AttachTestCaseAsset")
	r.assets = append(r.assets,
		assetCall{id, assetName, string(asset), assetType, providerSessionGUID})
	return r.errs["AttachTestCaseAsset"]
}

// fakeTB stands in for *testing.T where a test must fail without failing the
// enclosing test.
type fakeTB struct {
	name     string
	failed   bool
	cleanups []func()
	errors   []string
	fatals   []string
}

func (f *fakeTB) Name() string { return f.name }
func (f *fakeTB) Failed() bool { return f.failed }
func (f *fakeTB) Cleanup(fn func()) { f.cleanups = append(f.cleanups, fn) }
func (f *fakeTB) Helper() {}
func (f *fakeTB) Errorf(format string, args ...interface{}) {
	f.failed = true
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}
func (f *fakeTB) Fatalf(format string, args ...interface{}) {
	f.failed = true
	f.fatals = append(f.fatals, fmt.Sprintf(format, args...))
}

func (f *fakeTB) finish() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

func strp(s string) *string {
	return &s
}
