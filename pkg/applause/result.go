package applause

import (
	"context"
	"fmt"
	"io"

	"github.com/applause/applause-gotest/pkg/autoapi"
)

// Result tracks one test case while it runs: the lines it logged and the
// provider sessions it ran on.  It is created by Plugin.StartTest and must not
// be used after Plugin.FinishTest.
type Result struct {
	// ID is the test id the remote result is keyed by.
	ID string
	// Name is the test case name sent to the backend.
	Name  string
	Cases CaseIDs

	reporter   Reporter
	console    io.Writer
	logs       []string
	sessionIDs []string

	t        TB
	failures []string
}

// RegisterSessionID links a provider session (a device or browser session) to
// the result.  Duplicates are kept.
func (r *Result) RegisterSessionID(providerSessionGUID string) {
	r.sessionIDs = append(r.sessionIDs, providerSessionGUID)
}

// Log stores a message in the result logs and echoes it to the console when
// console output is enabled.
func (r *Result) Log(message string) {
	if r.console != nil {
		fmt.Fprintln(r.console, message)
	}
	r.logs = append(r.logs, message)
}

// Logf is Log with formatting.
func (r *Result) Logf(format string, args ...interface{}) {
	r.Log(fmt.Sprintf(format, args...))
}

// AttachAsset uploads a named asset to the result.  A non-empty
// providerSessionGUID is registered on the result first.
func (r *Result) AttachAsset(
	ctx context.Context, name string, asset []byte, assetType autoapi.AssetType,
	providerSessionGUID string,
) error {
	if providerSessionGUID != "" {
		r.RegisterSessionID(providerSessionGUID)
	}
	return r.reporter.AttachTestCaseAsset(
		ctx, r.ID, name, asset, assetType, providerSessionGUID)
}

// Logs returns a copy of the logged lines.
func (r *Result) Logs() []string {
	return append([]string(nil), r.logs...)
}

// SessionIDs returns a copy of the registered provider session ids in
// registration order.
func (r *Result) SessionIDs() []string {
	return append([]string(nil), r.sessionIDs...)
}

// Errorf records a failure reason and reports the failure to the test it is
// bound to.
func (r *Result) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
	if r.t != nil {
		r.t.Helper()
		r.t.Errorf(format, args...)
	}
}

// Fatalf is Errorf followed by stopping the bound test.
func (r *Result) Fatalf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
	if r.t != nil {
		r.t.Helper()
		r.t.Fatalf(format, args...)
	}
}
