// Package applause_proto holds the messages of the case metadata file.
//
// The messages are plain structs carrying protobuf struct tags so that
// github.com/golang/protobuf can read and write them in text format.
package applause_proto

import (
	"github.com/golang/protobuf/proto"
)

// CaseFile is the root message of a case metadata file.
type CaseFile struct {
	Cases []*Case `protobuf:"bytes,1,rep,name=cases" json:"cases,omitempty"`
}

func (m *CaseFile) Reset()         { *m = CaseFile{} }
func (m *CaseFile) String() string { return proto.CompactTextString(m) }
func (*CaseFile) ProtoMessage()    {}

// GetCases returns the declared cases.
func (m *CaseFile) GetCases() []*Case {
	if m != nil {
		return m.Cases
	}
	return nil
}

// Case links a Go test to its external test case identifiers.
type Case struct {
	// Name is a test name ("TestLogin") or a package-qualified test id
	// ("example.com/pkg/auth/TestLogin").
	Name               string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	ApplauseTestCaseId string `protobuf:"bytes,2,opt,name=applause_test_case_id,json=applauseTestCaseId,proto3" json:"applause_test_case_id,omitempty"`
	TestRailCaseId     string `protobuf:"bytes,3,opt,name=test_rail_case_id,json=testRailCaseId,proto3" json:"test_rail_case_id,omitempty"`
}

func (m *Case) Reset()         { *m = Case{} }
func (m *Case) String() string { return proto.CompactTextString(m) }
func (*Case) ProtoMessage()    {}

func (m *Case) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

func (m *Case) GetApplauseTestCaseId() string {
	if m != nil {
		return m.ApplauseTestCaseId
	}
	return ""
}

func (m *Case) GetTestRailCaseId() string {
	if m != nil {
		return m.TestRailCaseId
	}
	return ""
}
