package literature

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchlab/orchestrator/internal/agents"
)

func TestInvokeSubmitsAndPollsUntilSuccess(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/submit":
			json.NewEncoder(w).Encode(submitResponse{TaskID: "task-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/poll/task-1":
			polls++
			if polls < 2 {
				json.NewEncoder(w).Encode(pollResponse{State: StateInProgress})
				return
			}
			json.NewEncoder(w).Encode(pollResponse{State: StateSuccess, Answer: "found 3 papers"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(agents.LitEdison, Options{BaseURL: srv.URL, PollInterval: time.Millisecond, Timeout: time.Second})
	result, err := c.Invoke(context.Background(), agents.LiteratureParams{Objective: "find refs"})
	require.NoError(t, err)
	assert.Equal(t, "found 3 papers", result.Output)
	assert.Equal(t, "task-1", result.JobID)
	assert.GreaterOrEqual(t, polls, 2)
}

func TestInvokeReturnsErrorOnFailedTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/submit":
			json.NewEncoder(w).Encode(submitResponse{TaskID: "task-1"})
		case r.URL.Path == "/poll/task-1":
			json.NewEncoder(w).Encode(pollResponse{State: StateFailed, Error: "upstream timeout"})
		}
	}))
	defer srv.Close()

	c := New(agents.LitBioLit, Options{BaseURL: srv.URL, PollInterval: time.Millisecond, Timeout: time.Second})
	_, err := c.Invoke(context.Background(), agents.LiteratureParams{Objective: "find refs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream timeout")
}
