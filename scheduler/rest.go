package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/spec"
)

// restAPIVersion pins the slurmrestd OpenAPI plugin version
const restAPIVersion = "v0.0.38"

// RestOptions configures the slurmrestd client
type RestOptions struct {
	BaseURL  string // e.g. "http://localhost:6820"
	UserName string // X-SLURM-USER-NAME header
	Token    string // X-SLURM-USER-TOKEN header
	Timeout  time.Duration
}

// RestClient submits jobs through the slurmrestd REST API
type RestClient struct {
	opts       RestOptions
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewRestClient creates a client for the slurmrestd daemon
func NewRestClient(opts RestOptions, logger *zap.SugaredLogger) (*RestClient, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("slurmrestd base URL is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &RestClient{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}, nil
}

// Name identifies the backend
func (c *RestClient) Name() string {
	return "slurmrestd"
}

// restJobProperties is the job description section of a submit request
type restJobProperties struct {
	Name           string   `json:"name,omitempty"`
	Partition      string   `json:"partition,omitempty"`
	Account        string   `json:"account,omitempty"`
	TimeLimit      string   `json:"time_limit,omitempty"`
	StandardOutput string   `json:"standard_output,omitempty"`
	Environment    []string `json:"environment"`
}

// restSubmitRequest is the request format for /slurm/vX/job/submit
type restSubmitRequest struct {
	Script string            `json:"script"`
	Job    restJobProperties `json:"job"`
}

// restError is a single error entry in a slurmrestd response
type restError struct {
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_number,omitempty"`
}

// restSubmitResponse is the response format from /slurm/vX/job/submit
type restSubmitResponse struct {
	JobID  int64       `json:"job_id"`
	Errors []restError `json:"errors,omitempty"`
}

// restJobInfo is a single job entry from /slurm/vX/job/{id}
type restJobInfo struct {
	JobID    int64  `json:"job_id"`
	JobState string `json:"job_state"`
}

// restJobResponse is the response format from /slurm/vX/job/{id}
type restJobResponse struct {
	Jobs   []restJobInfo `json:"jobs"`
	Errors []restError   `json:"errors,omitempty"`
}

// Submit posts the job script to slurmrestd and returns the assigned job ID
func (c *RestClient) Submit(ctx context.Context, js spec.JobSpec) (string, error) {
	script, err := os.ReadFile(js.Path)
	if err != nil {
		return "", errors.WrapSubmission(err, js.Name)
	}

	submitReq := restSubmitRequest{
		Script: string(script),
		Job: restJobProperties{
			Name:           js.Name,
			Partition:      js.Partition,
			Account:        js.Account,
			TimeLimit:      js.TimeLimit,
			StandardOutput: js.Output,
			Environment:    []string{"SLURM_GET_USER_ENV=1"},
		},
	}

	reqBody, err := json.Marshal(submitReq)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal submit request")
	}

	url := fmt.Sprintf("%s/slurm/%s/job/submit", c.opts.BaseURL, restAPIVersion)
	body, status, err := c.do(ctx, "POST", url, reqBody)
	if err != nil {
		return "", errors.WrapSubmission(err, js.Name)
	}

	var submitResp restSubmitResponse
	if err := json.Unmarshal(body, &submitResp); err != nil {
		return "", errors.WrapSubmission(
			errors.Wrapf(err, "failed to parse response: %s", string(body)), js.Name)
	}

	if status != http.StatusOK || len(submitResp.Errors) > 0 {
		return "", errors.NewSubmissionError("slurmrestd rejected %s: %s",
			js.Name, restErrorMessage(submitResp.Errors, status))
	}
	if submitResp.JobID == 0 {
		return "", errors.NewSubmissionError("slurmrestd reply for %s carried no job ID", js.Name)
	}

	jobID := strconv.FormatInt(submitResp.JobID, 10)
	c.logger.Infow("Job submitted",
		"spec", js.Name,
		"job_id", jobID)

	return jobID, nil
}

// QueryStatus fetches the job record and reports its state
func (c *RestClient) QueryStatus(ctx context.Context, jobID string) (JobState, error) {
	url := fmt.Sprintf("%s/slurm/%s/job/%s", c.opts.BaseURL, restAPIVersion, jobID)
	body, status, err := c.do(ctx, "GET", url, nil)
	if err != nil {
		return StateUnknown, err
	}
	if status == http.StatusNotFound {
		return StateCompleted, nil
	}

	var jobResp restJobResponse
	if err := json.Unmarshal(body, &jobResp); err != nil {
		return StateUnknown, errors.Wrapf(err, "failed to parse response: %s", string(body))
	}
	if len(jobResp.Errors) > 0 {
		return StateUnknown, errors.Newf("slurmrestd query failed for job %s: %s",
			jobID, restErrorMessage(jobResp.Errors, status))
	}
	if len(jobResp.Jobs) == 0 {
		return StateCompleted, nil
	}

	raw := jobResp.Jobs[0].JobState
	if fields := strings.Fields(raw); len(fields) > 0 {
		raw = fields[0]
	}
	return normalizeState(raw), nil
}

// Cancel deletes the job through the REST API
func (c *RestClient) Cancel(ctx context.Context, jobID string) error {
	state, err := c.QueryStatus(ctx, jobID)
	if err == nil && state.Terminal() {
		return errors.Wrapf(errors.ErrJobTerminal, "job %s", jobID)
	}

	url := fmt.Sprintf("%s/slurm/%s/job/%s", c.opts.BaseURL, restAPIVersion, jobID)
	body, status, err := c.do(ctx, "DELETE", url, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.Newf("slurmrestd cancel failed for job %s (HTTP %d): %s",
			jobID, status, strings.TrimSpace(string(body)))
	}

	c.logger.Infow("Job cancelled", "job_id", jobID)
	return nil
}

// do executes an authenticated request and returns the response body
func (c *RestClient) do(ctx context.Context, method, url string, reqBody []byte) ([]byte, int, error) {
	var reader io.Reader
	if reqBody != nil {
		reader = bytes.NewReader(reqBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.opts.UserName != "" {
		httpReq.Header.Set("X-SLURM-USER-NAME", c.opts.UserName)
	}
	if c.opts.Token != "" {
		httpReq.Header.Set("X-SLURM-USER-TOKEN", c.opts.Token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, errors.Wrap(err, "slurmrestd request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to read response body")
	}

	return body, resp.StatusCode, nil
}

// restErrorMessage flattens slurmrestd error entries into one string
func restErrorMessage(errs []restError, status int) string {
	if len(errs) == 0 {
		return fmt.Sprintf("HTTP %d", status)
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Error != "" {
			parts = append(parts, e.Error)
		} else if e.ErrorCode != 0 {
			parts = append(parts, fmt.Sprintf("error %d", e.ErrorCode))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("HTTP %d", status)
	}
	return strings.Join(parts, "; ")
}
