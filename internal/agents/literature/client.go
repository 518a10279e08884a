// Package literature implements agents.Literature via the remote
// submit-then-poll pattern: submit(query) -> taskId, poll(taskId) ->
// {state, answer?, error?}. Uses a plain *http.Client with small JSON
// envelopes rather than any particular literature provider's bespoke wire
// format, so swapping providers only means swapping BaseURL.
package literature

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
	Query string `json:"query"`
}

type submitResponse struct {
	TaskID string `json:"taskId"`
}

type pollResponse struct {
	State  PollState `json:"state"`
	Answer string    `json:"answer"`
	Error  string    `json:"error"`
}

// Options configures Client.
type Options struct {
	// BaseURL is the literature source's API root (e.g. an Edison or
	// BIOLITDEEP endpoint, or the OpenScholar/knowledge-base URL).
	BaseURL string
	HTTP    *http.Client
	// PollInterval between successive poll requests.
	PollInterval time.Duration
	// Timeout bounds the whole submit-to-terminal-state wait.
	Timeout time.Duration
}

// Client implements agents.Literature against one literature source's
// submit/poll HTTP API.
type Client struct {
	source  agents.LiteratureSource
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a Client for the given source. Poll requests are paced by a
// token-bucket limiter at one per PollInterval rather than a bare ticker, so
// fanning out across every enabled literature source for a task (internal/iteration
// runs them concurrently) doesn't burst the remote API beyond its cadence.
func New(source agents.LiteratureSource, opts Options) *Client {
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
		timeout = 30 * time.Minute
	}
	return &Client{source: source, baseURL: opts.BaseURL, http: httpClient, limiter: rate.NewLimiter(rate.Every(poll), 1), timeout: timeout}
}

// Invoke submits the objective as a query and polls until the remote task
// reaches success or failed, or the configured timeout elapses.
func (c *Client) Invoke(ctx context.Context, params agents.LiteratureParams) (agents.LiteratureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	taskID, err := c.submit(ctx, params.Objective)
	if err != nil {
		return agents.LiteratureResult{}, fmt.Errorf("%s literature submit: %w", c.source, err)
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return agents.LiteratureResult{}, err
		}
		resp, err := c.poll_(ctx, taskID)
		if err != nil {
			return agents.LiteratureResult{}, fmt.Errorf("%s literature poll: %w", c.source, err)
		}
		switch resp.State {
		case StateSuccess:
			return agents.LiteratureResult{Output: resp.Answer, JobID: taskID}, nil
		case StateFailed:
			return agents.LiteratureResult{}, fmt.Errorf("%s literature task %s failed: %s", c.source, taskID, resp.Error)
		}
	}
}

func (c *Client) submit(ctx context.Context, query string) (string, error) {
	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/submit", submitRequest{Query: query}, &resp); err != nil {
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
