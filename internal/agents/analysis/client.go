// Package analysis implements agents.Analysis via the same submit-then-poll
// remote task pattern as internal/agents/literature, with dataset references
// attached to the submit payload and artifact references returned alongside
// the answer on success.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/researchlab/orchestrator/internal/agents"
)

// PollState is the remote task's lifecycle state.
type PollState string

const (
	StateQueued     PollState = "queued"
	StateInProgress PollState = "in-progress"
	StateSuccess    PollState = "success"
	StateFailed     PollState = "failed"
)

type submitRequest struct {
	Query    string   `json:"query"`
	Datasets []string `json:"refs"`
}

type submitResponse struct {
	TaskID string `json:"taskId"`
}

type pollResponse struct {
	State     PollState `json:"state"`
	Answer    string    `json:"answer"`
	Artifacts []string  `json:"artifacts"`
	Error     string    `json:"error"`
}

// Options configures Client.
type Options struct {
	BaseURL      string
	HTTP         *http.Client
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client implements agents.Analysis against one analysis source's
// submit/poll HTTP API.
type Client struct {
	source  agents.AnalysisSource
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a Client for the given source. Poll requests are paced by a
// token-bucket limiter at one per PollInterval rather than a bare ticker, for
// the same reason internal/agents/literature does: parallel tasks at the same
// plan level must not burst the remote analysis API beyond its cadence.
func New(source agents.AnalysisSource, opts Options) *Client {
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Minute
	}
	return &Client{source: source, baseURL: opts.BaseURL, http: httpClient, limiter: rate.NewLimiter(rate.Every(poll), 1), timeout: timeout}
}

// Invoke submits the objective with its dataset references and polls until
// the remote task reaches success or failed, or the configured timeout
// elapses.
func (c *Client) Invoke(ctx context.Context, params agents.AnalysisParams) (agents.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	taskID, err := c.submit(ctx, params.Objective, params.Datasets)
	if err != nil {
		return agents.AnalysisResult{}, fmt.Errorf("%s analysis submit: %w", c.source, err)
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return agents.AnalysisResult{}, err
		}
		resp, err := c.poll_(ctx, taskID)
		if err != nil {
			return agents.AnalysisResult{}, fmt.Errorf("%s analysis poll: %w", c.source, err)
		}
		switch resp.State {
		case StateSuccess:
			return agents.AnalysisResult{Output: resp.Answer, Artifacts: resp.Artifacts, JobID: taskID}, nil
		case StateFailed:
			return agents.AnalysisResult{}, fmt.Errorf("%s analysis task %s failed: %s", c.source, taskID, resp.Error)
		}
	}
}

func (c *Client) submit(ctx context.Context, query string, datasets []string) (string, error) {
	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/submit", submitRequest{Query: query, Datasets: datasets}, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (c *Client) poll_(ctx context.Context, taskID string) (pollResponse, error) {
	var resp pollResponse
	err := c.doJSON(ctx, http.MethodGet, "/poll/"+taskID, nil, &resp)
	return resp, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
