package iteration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/chain"
	"github.com/researchlab/orchestrator/internal/config"
	"github.com/researchlab/orchestrator/internal/domain"
	memnotify "github.com/researchlab/orchestrator/internal/notify/memory"
	"github.com/researchlab/orchestrator/internal/policy"
	"github.com/researchlab/orchestrator/internal/queue"
	"github.com/researchlab/orchestrator/internal/store"
	memstore "github.com/researchlab/orchestrator/internal/store/memory"
)

// --- fake agents ---

type planningFn func(agents.PlanningParams) (agents.PlanningResult, error)

type fakePlanning struct {
	initial planningFn
	next    planningFn
}

func (f fakePlanning) Invoke(_ context.Context, params agents.PlanningParams) (agents.PlanningResult, error) {
	if params.Mode == agents.PlanningInitial {
		return f.initial(params)
	}
	return f.next(params)
}

type fakeLiterature struct {
	output string
	err    error
}

func (f fakeLiterature) Invoke(context.Context, agents.LiteratureParams) (agents.LiteratureResult, error) {
	if f.err != nil {
		return agents.LiteratureResult{}, f.err
	}
	return agents.LiteratureResult{Output: f.output, JobID: "lit-job"}, nil
}

type fakeAnalysis struct {
	output string
	err    error
}

func (f fakeAnalysis) Invoke(context.Context, agents.AnalysisParams) (agents.AnalysisResult, error) {
	if f.err != nil {
		return agents.AnalysisResult{}, f.err
	}
	return agents.AnalysisResult{Output: f.output, Artifacts: []string{"chart-1"}, JobID: "ana-job"}, nil
}

type fakeHypothesis struct{ hyp string }

func (f fakeHypothesis) Invoke(context.Context, agents.HypothesisParams) (agents.HypothesisResult, error) {
	return agents.HypothesisResult{Hypothesis: f.hyp}, nil
}

type fakeReflection struct {
	result agents.ReflectionResult
	err    error
}

func (f fakeReflection) Invoke(context.Context, agents.ReflectionParams) (agents.ReflectionResult, error) {
	return f.result, f.err
}

type fakeDiscovery struct{ result agents.DiscoveryResult }

func (f fakeDiscovery) Invoke(context.Context, agents.DiscoveryParams) (agents.DiscoveryResult, error) {
	return f.result, nil
}

type fakeContinueDecision struct{ shouldContinue bool }

func (f fakeContinueDecision) Invoke(context.Context, agents.ContinueDecisionParams) (agents.ContinueDecisionResult, error) {
	return agents.ContinueDecisionResult{ShouldContinue: f.shouldContinue}, nil
}

type fakeReply struct{}

func (fakeReply) Invoke(_ context.Context, params agents.ReplyParams) (agents.ReplyResult, error) {
	if params.IsFinal {
		return agents.ReplyResult{Reply: "final reply", Summary: "final summary"}, nil
	}
	return agents.ReplyResult{Reply: "interim reply", Summary: "interim summary"}, nil
}

// --- fake queue ---

type fakeQueue struct {
	mu       sync.Mutex
	enqueued map[string]domain.DeepResearchJobData
	acked    map[string]bool
	failed   map[string]bool
	retried  map[string]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		enqueued: map[string]domain.DeepResearchJobData{},
		acked:    map[string]bool{},
		failed:   map[string]bool{},
		retried:  map[string]bool{},
	}
}

func (q *fakeQueue) Enqueue(_ context.Context, _ string, jobID string, payload domain.DeepResearchJobData, _ queue.EnqueueOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued[jobID] = payload
	return nil
}

func (q *fakeQueue) Reserve(context.Context, string, time.Duration) (*domain.Job, error) {
	return nil, nil
}

func (q *fakeQueue) RenewLease(context.Context, string, time.Duration) error { return nil }

func (q *fakeQueue) Ack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked[jobID] = true
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, jobID string, retryable bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[jobID] = true
	q.retried[jobID] = retryable
	return nil
}

func (q *fakeQueue) GetState(context.Context, string) (domain.JobState, error) {
	return domain.JobPending, nil
}

func (q *fakeQueue) StalledJobs(context.Context, string) ([]domain.Job, error) {
	return nil, nil
}

// --- fixtures ---

func seedFixtures(t *testing.T, st *memstore.Store) (conversationID, stateID, csID, msgID string) {
	t.Helper()
	conversationID, stateID, csID, msgID = "conv-1", "state-1", "cs-1", "msg-1"
	st.SeedConversation(store.Conversation{ID: conversationID, UserID: "user-1"})
	st.SeedIterationState(domain.IterationState{ID: stateID, MessageID: msgID, ConversationID: conversationID})
	st.SeedConversationState(*domain.NewConversationState(csID, conversationID))
	require.NoError(t, st.CreateMessage(context.Background(), domain.Message{ID: msgID, ConversationID: conversationID, Question: "what causes X?"}))
	return
}

func baseExecutor(st *memstore.Store, q *fakeQueue) *Executor {
	return &Executor{
		Store:     st,
		Queue:     q,
		QueueName: "deep-research",
		Notify:    memnotify.New(),
		Agents: Agents{
			Planning: fakePlanning{
				initial: func(agents.PlanningParams) (agents.PlanningResult, error) {
					return agents.PlanningResult{
						Plan: []domain.PlanTask{
							{Type: domain.TaskLiterature, Objective: "survey prior work"},
							{Type: domain.TaskAnalysis, Objective: "check dataset"},
						},
						CurrentObjective: "narrow down the cause",
					}, nil
				},
				next: func(agents.PlanningParams) (agents.PlanningResult, error) {
					return agents.PlanningResult{}, nil
				},
			},
			Literature: LiteratureSources{
				agents.LitEdison: fakeLiterature{output: "found 3 papers"},
			},
			Analysis: AnalysisSources{
				agents.AnaEdison: fakeAnalysis{output: "dataset checks out"},
			},
			Hypothesis:       fakeHypothesis{hyp: "X causes Y"},
			Reflection:       fakeReflection{result: agents.ReflectionResult{KeyInsights: "insight"}},
			Discovery:        nil,
			ContinueDecision: fakeContinueDecision{shouldContinue: false},
			Reply:            fakeReply{},
		},
		Credit: chain.NoopCredit{},
		Config: config.Defaults(),
		Gate:   policy.DefaultDiscoveryGate,
		Clock:  func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
}

func TestRunFinalIterationRepliesAndAcksWithoutChaining(t *testing.T) {
	st := memstore.New()
	conversationID, stateID, csID, msgID := seedFixtures(t, st)
	q := newFakeQueue()
	e := baseExecutor(st, q)

	job := domain.Job{
		ID: msgID,
		Payload: domain.DeepResearchJobData{
			ConversationID:      conversationID,
			MessageID:           msgID,
			StateID:             stateID,
			ConversationStateID: csID,
			IterationNumber:     1,
			IsInitialIteration:  true,
			RootJobID:           msgID,
		},
	}

	err := e.Run(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, q.acked[job.ID])
	assert.Empty(t, q.enqueued)

	msg, err := st.GetMessage(context.Background(), msgID)
	require.NoError(t, err)
	assert.Equal(t, "final reply", msg.Content)
	assert.NotNil(t, msg.ResponseTime)

	it, err := st.GetState(context.Background(), stateID)
	require.NoError(t, err)
	assert.True(t, it.IsDeepResearch)
	assert.Equal(t, domain.IterationDone, it.Status)

	cs, err := st.GetConversationState(context.Background(), csID)
	require.NoError(t, err)
	assert.Len(t, cs.Plan, 2)
	for _, task := range cs.Plan {
		assert.True(t, task.Done())
	}
}

func TestRunContinuingIterationChainsASuccessor(t *testing.T) {
	st := memstore.New()
	conversationID, stateID, csID, msgID := seedFixtures(t, st)
	q := newFakeQueue()
	e := baseExecutor(st, q)
	e.Agents.ContinueDecision = fakeContinueDecision{shouldContinue: true}
	e.Agents.Planning = fakePlanning{
		initial: e.Agents.Planning.(fakePlanning).initial,
		next: func(agents.PlanningParams) (agents.PlanningResult, error) {
			return agents.PlanningResult{
				Plan: []domain.PlanTask{{Type: domain.TaskLiterature, Objective: "go deeper"}},
			}, nil
		},
	}

	job := domain.Job{
		ID: msgID,
		Payload: domain.DeepResearchJobData{
			ConversationID:      conversationID,
			MessageID:           msgID,
			StateID:             stateID,
			ConversationStateID: csID,
			IterationNumber:     1,
			IsInitialIteration:  true,
			RootJobID:           msgID,
		},
	}

	err := e.Run(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, q.acked[job.ID])
	require.Len(t, q.enqueued, 1)

	var successorPayload domain.DeepResearchJobData
	var successorID string
	for id, payload := range q.enqueued {
		successorID, successorPayload = id, payload
	}
	assert.Equal(t, 2, successorPayload.IterationNumber)
	assert.False(t, successorPayload.IsInitialIteration)
	assert.Equal(t, msgID, successorPayload.RootJobID)

	successorMsg, err := st.GetMessage(context.Background(), successorID)
	require.NoError(t, err)
	assert.True(t, successorMsg.IsAgentInitiated())

	cs, err := st.GetConversationState(context.Background(), csID)
	require.NoError(t, err)
	assert.Empty(t, cs.SuggestedNextSteps)
}

func TestRunAbortsOnMissingMessage(t *testing.T) {
	st := memstore.New()
	_, stateID, csID, _ := seedFixtures(t, st)
	q := newFakeQueue()
	e := baseExecutor(st, q)

	job := domain.Job{
		ID: "orphan-job",
		Payload: domain.DeepResearchJobData{
			MessageID:           "does-not-exist",
			StateID:             stateID,
			ConversationStateID: csID,
			IsInitialIteration:  true,
		},
	}

	err := e.Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, q.failed[job.ID])
	assert.False(t, q.retried[job.ID], "data errors must not be retried")
}

func TestFanOutAbsorbsPerSourceLiteratureErrors(t *testing.T) {
	st := memstore.New()
	conversationID, stateID, csID, msgID := seedFixtures(t, st)
	q := newFakeQueue()
	e := baseExecutor(st, q)
	e.Agents.Literature = LiteratureSources{
		agents.LitEdison: fakeLiterature{err: assertError("provider unavailable")},
	}

	job := domain.Job{
		ID: msgID,
		Payload: domain.DeepResearchJobData{
			ConversationID:      conversationID,
			MessageID:           msgID,
			StateID:             stateID,
			ConversationStateID: csID,
			IterationNumber:     1,
			IsInitialIteration:  true,
			RootJobID:           msgID,
		},
	}

	err := e.Run(context.Background(), job)
	require.NoError(t, err, "a per-task agent error must not abort the iteration")

	cs, err := st.GetConversationState(context.Background(), csID)
	require.NoError(t, err)
	found := false
	for _, task := range cs.Plan {
		if task.Type == domain.TaskLiterature {
			found = true
			assert.Contains(t, task.Output, "provider unavailable")
			assert.True(t, task.Done())
		}
	}
	assert.True(t, found)
}

type assertError string

func (e assertError) Error() string { return string(e) }
