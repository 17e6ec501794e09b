package autoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"
)

// SdkVersion is sent with every run so the backend can tell reporters apart.
const SdkVersion = "go:0.1.0"

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s",
		e.Method, e.Path, e.StatusCode, e.Body)
}

// Reporter reports a test run to the Applause automation API.  It keeps the
// remote run id and maps test ids to remote result ids.  Calls are not
// retried.  Reporter is not safe for concurrent use.
type Reporter struct {
	config    Config
	client    *http.Client
	runID     int64
	results   map[string]int64
	resultIDs []int64
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Reporter) {
		r.client = client
	}
}

// NewReporter creates a reporter.  It returns a *ConfigError when the config
// is unusable.
func NewReporter(config Config, opts ...Option) (*Reporter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	r := &Reporter{
		config:  config,
		client:  http.DefaultClient,
		results: map[string]int64{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunID returns the id of the current remote run, or 0 when no run is open.
func (r *Reporter) RunID() int64 {
	return r.runID
}

// ResultID returns the remote result id created for the given test id.
func (r *Reporter) ResultID(id string) (int64, bool) {
	resultID, ok := r.results[id]
	return resultID, ok
}

// RunnerStart opens a remote run listing the given tests.
func (r *Reporter) RunnerStart(ctx context.Context, tests []string) error {
	if r.runID != 0 {
		return errors.Errorf("run %d is already started", r.runID)
	}
	if tests == nil {
		tests = []string{}
	}
	resp := &createRunResponse{}
	if err := r.doJSON(ctx, http.MethodPost, "/api/v1.0/test-run/create",
		&createRunRequest{
			Tests:      tests,
			ProductID:  r.config.ProductID,
			SdkVersion: SdkVersion,
		}, resp); err != nil {
		return errors.Wrap(err, "failed to create test run")
	}
	if resp.RunID == 0 {
		return errors.New("failed to create test run: no run id in response")
	}
	r.runID = resp.RunID
	r.results = map[string]int64{}
	r.resultIDs = nil
	return nil
}

// RunnerEnd fetches the provider session links of all results of the run and
// closes the run.
func (r *Reporter) RunnerEnd(ctx context.Context) error {
	if r.runID == 0 {
		return errors.New("no test run is started")
	}
	if len(r.resultIDs) > 0 {
		if err := r.doJSON(ctx, http.MethodPost,
			"/api/v1.0/test-result/provider-info", r.resultIDs, nil); err != nil {
			return errors.Wrap(err, "failed to get provider session info")
		}
	}
	path := fmt.Sprintf("/api/v1.0/test-run/%d?endingStatus=COMPLETE", r.runID)
	if err := r.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return errors.Wrapf(err, "failed to end test run %d", r.runID)
	}
	r.runID = 0
	return nil
}

// StartTestCase creates a remote result for the test id.
func (r *Reporter) StartTestCase(
	ctx context.Context, id, testCaseName string, providerSessionIDs []string,
) error {
	if r.runID == 0 {
		return errors.New("no test run is started")
	}
	if providerSessionIDs == nil {
		providerSessionIDs = []string{}
	}
	resp := &createResultResponse{}
	if err := r.doJSON(ctx, http.MethodPost,
		"/api/v1.0/test-result/create-result", &createResultRequest{
			TestRunID:          r.runID,
			TestCaseName:       testCaseName,
			ProviderSessionIDs: providerSessionIDs,
		}, resp); err != nil {
		return errors.Wrapf(err, "failed to create result for %s", id)
	}
	r.results[id] = resp.TestResultID
	r.resultIDs = append(r.resultIDs, resp.TestResultID)
	return nil
}

// SubmitTestCaseResult submits the final status of the result of a test id.
func (r *Reporter) SubmitTestCaseResult(
	ctx context.Context, id string, status TestResultStatus, params SubmitParams,
) error {
	resultID, ok := r.results[id]
	if !ok {
		return errors.Errorf("no result is started for %s", id)
	}
	guids := params.ProviderSessionGUIDs
	if guids == nil {
		guids = []string{}
	}
	if err := r.doJSON(ctx, http.MethodPost, "/api/v1.0/test-result",
		&submitResultRequest{
			TestResultID:         resultID,
			Status:               status,
			FailureReason:        params.FailureReason,
			ProviderSessionGUIDs: guids,
			ItwCaseID:            params.ApplauseTestCaseID,
			TestRailCaseID:       params.TestRailCaseID,
		}, nil); err != nil {
		return errors.Wrapf(err, "failed to submit result for %s", id)
	}
	return nil
}

// AttachTestCaseAsset uploads a named asset to the result of a test id.
func (r *Reporter) AttachTestCaseAsset(
	ctx context.Context, id, assetName string, asset []byte,
	assetType AssetType, providerSessionGUID string,
) error {
	resultID, ok := r.results[id]
	if !ok {
		return errors.Errorf("no result is started for %s", id)
	}
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := [][2]string{
		{"assetName", assetName},
		{"assetType", string(assetType)},
	}
	if providerSessionGUID != "" {
		fields = append(fields, [2]string{"providerSessionGuid", providerSessionGUID})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return errors.Wrap(err, "failed to build asset form")
		}
	}
	part, err := w.CreateFormFile("file", assetName)
	if err != nil {
		return errors.Wrap(err, "failed to build asset form")
	}
	if _, err := part.Write(asset); err != nil {
		return errors.Wrap(err, "failed to build asset form")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "failed to build asset form")
	}

	path := fmt.Sprintf("/api/v1.0/test-result/%d/upload", resultID)
	req, err := r.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := r.send(req, nil); err != nil {
		return errors.Wrapf(err, "failed to upload asset %s for %s", assetName, id)
	}
	return nil
}

func (r *Reporter) newRequest(
	ctx context.Context, method, path string, body *bytes.Buffer,
) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequest(method, r.config.baseURL()+path, nil)
	} else {
		req, err = http.NewRequest(method, r.config.baseURL()+path, body)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request %s %s", method, path)
	}
	req = req.WithContext(ctx)
	req.Header.Set("X-Api-Key", r.config.APIKey)
	return req, nil
}

func (r *Reporter) doJSON(
	ctx context.Context, method, path string, in, out interface{},
) error {
	var body *bytes.Buffer
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		body = bytes.NewBuffer(buf)
	}
	req, err := r.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return r.send(req, out)
}

func (r *Reporter) send(req *http.Request, out interface{}) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()
	buf, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read response of %s %s",
			req.Method, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(buf)),
		}
	}
	if out == nil || len(bytes.TrimSpace(buf)) == 0 {
		return nil
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return errors.Wrapf(err, "failed to decode response of %s %s",
			req.Method, req.URL.Path)
	}
	return nil
}
