package applause

import (
	"io/ioutil"
	"strings"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"

	applause_proto "github.com/applause/applause-gotest/proto"
)

// CaseIDs are the external test case identifiers linked to a test.  An empty
// string means the identifier is not declared.
type CaseIDs struct {
	ApplauseTestCaseID string
	TestRailCaseID     string
}

// Cases maps tests to their external case identifiers.  Registration order is
// kept and used as the list of tests announced when a run starts.
type Cases struct {
	names []string
	ids   map[string]CaseIDs
}

// NewCases creates an empty registry.
func NewCases() *Cases {
	return &Cases{ids: map[string]CaseIDs{}}
}

// Register declares a test.  Registering the same name again replaces its
// identifiers but keeps its position.
func (c *Cases) Register(name string, ids CaseIDs) {
	if _, ok := c.ids[name]; !ok {
		c.names = append(c.names, name)
	}
	c.ids[name] = ids
}

// Names returns the registered test names in registration order.
func (c *Cases) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Lookup returns the identifiers registered for a test id.  A registered name
// matches the id itself or any "/"-separated suffix of it; the longest match
// wins.
func (c *Cases) Lookup(id string) CaseIDs {
	if c == nil {
		return CaseIDs{}
	}
	if ids, ok := c.ids[id]; ok {
		return ids
	}
	best := ""
	for _, name := range c.names {
		if strings.HasSuffix(id, "/"+name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return CaseIDs{}
	}
	return c.ids[best]
}

// LoadCaseFile reads a case registry from a protobuf text file.
func LoadCaseFile(file string) (*Cases, error) {
	buf, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read case file")
	}
	cf := &applause_proto.CaseFile{}
	if err := proto.UnmarshalText(string(buf), cf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse case file: %s", file)
	}
	c := NewCases()
	for i, tc := range cf.GetCases() {
		if tc.GetName() == "" {
			return nil, errors.Errorf("case #%d in %s has no name", i, file)
		}
		c.Register(tc.GetName(), CaseIDs{
			ApplauseTestCaseID: tc.GetApplauseTestCaseId(),
			TestRailCaseID:     tc.GetTestRailCaseId(),
		})
	}
	return c, nil
}
