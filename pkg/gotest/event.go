package gotest

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Action is the action of a test2json event.
type Action string

const (
	ActionStart  Action = "start"
	ActionRun    Action = "run"
	ActionPause  Action = "pause"
	ActionCont   Action = "cont"
	ActionOutput Action = "output"
	ActionPass   Action = "pass"
	ActionFail   Action = "fail"
	ActionSkip   Action = "skip"
	ActionBench  Action = "bench"
)

// Event is one line of `go test -json` output.
type Event struct {
	Time    time.Time `json:",omitempty"`
	Action  Action
	Package string  `json:",omitempty"`
	Test    string  `json:",omitempty"`
	Elapsed float64 `json:",omitempty"`
	Output  string  `json:",omitempty"`
}

// ParseEvent decodes one line of test2json output.
func ParseEvent(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// TestID returns the package-qualified id of the test of the event.
func (e Event) TestID() string {
	return Test{Package: e.Package, Name: e.Test}.ID()
}

// Done reports whether the event carries the final outcome of a test or a
// package.
func (e Event) Done() bool {
	return e.Action == ActionPass || e.Action == ActionFail || e.Action == ActionSkip
}

var (
	fileLine = regexp.MustCompile(`^\s*\S+\.go:\d+: `)
	marker   = regexp.MustCompile(`^(=== (RUN|PAUSE|CONT|NAME)|--- (PASS|FAIL|SKIP):)`)
)

// FailureMessage picks the short failure message out of the output of a
// failed test: the first "file.go:N: message" line, or else the first line
// that is not a test2json framing line.
func FailureMessage(output []string) string {
	for _, line := range output {
		if fileLine.MatchString(line) {
			return strings.TrimSpace(line)
		}
	}
	for _, line := range output {
		s := strings.TrimSpace(line)
		if s != "" && !marker.MatchString(s) {
			return s
		}
	}
	return ""
}
