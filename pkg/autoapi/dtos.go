package autoapi

// TestResultStatus is the status of a remote result record.
type TestResultStatus string

const (
	StatusNotRun     TestResultStatus = "NOT_RUN"
	StatusInProgress TestResultStatus = "IN_PROGRESS"
	StatusPassed     TestResultStatus = "PASSED"
	StatusFailed     TestResultStatus = "FAILED"
	StatusSkipped    TestResultStatus = "SKIPPED"
	StatusCanceled   TestResultStatus = "CANCELED"
	StatusErrored    TestResultStatus = "ERROR"
)

// AssetType tags an uploaded asset.
type AssetType string

const (
	AssetScreenshot        AssetType = "SCREENSHOT"
	AssetFailureScreenshot AssetType = "FAILURE_SCREENSHOT"
	AssetVideo             AssetType = "VIDEO"
	AssetNetworkHAR        AssetType = "NETWORK_HAR"
	AssetVitalsLog         AssetType = "VITALS_LOG"
	AssetConsoleLog        AssetType = "CONSOLE_LOG"
	AssetNetworkLog        AssetType = "NETWORK_LOG"
	AssetDeviceLog         AssetType = "DEVICE_LOG"
	AssetSeleniumLog       AssetType = "SELENIUM_LOG"
	AssetSeleniumLogFile   AssetType = "SELENIUM_LOG_FILE"
	AssetBrowserLog        AssetType = "BROWSER_LOG"
	AssetFrameworkLog      AssetType = "FRAMEWORK_LOG"
	AssetEmail             AssetType = "EMAIL"
	AssetPageSource        AssetType = "PAGE_SOURCE"
	AssetCodeBundle        AssetType = "CODE_BUNDLE"
	AssetResultsZip        AssetType = "RESULTS_ZIP"
	AssetSessionDetails    AssetType = "SESSION_DETAILS"
	AssetDeviceDetails     AssetType = "DEVICE_DETAILS"
	AssetUnknown           AssetType = "UNKNOWN"
)

// SubmitParams carries the optional parts of a result submission.  Nil
// pointers are sent as null.
type SubmitParams struct {
	ProviderSessionGUIDs []string
	ApplauseTestCaseID   *string
	TestRailCaseID       *string
	FailureReason        *string
}

type createRunRequest struct {
	Tests      []string `json:"tests"`
	ProductID  int64    `json:"productId"`
	SdkVersion string   `json:"sdkVersion"`
}

type createRunResponse struct {
	RunID int64 `json:"runId"`
}

type createResultRequest struct {
	TestRunID          int64    `json:"testRunId"`
	TestCaseName       string   `json:"testCaseName"`
	ProviderSessionIDs []string `json:"providerSessionIds"`
}

type createResultResponse struct {
	TestResultID int64 `json:"testResultId"`
}

type submitResultRequest struct {
	TestResultID         int64            `json:"testResultId"`
	Status               TestResultStatus `json:"status"`
	FailureReason        *string          `json:"failureReason"`
	ProviderSessionGUIDs []string         `json:"providerSessionGuids"`
	ItwCaseID            *string          `json:"itwCaseId"`
	TestRailCaseID       *string          `json:"testRailCaseId"`
}
