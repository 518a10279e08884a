// Package iteration implements the Iteration Executor: the S1-S9 state
// machine that performs exactly one pass over a deep-research job, fanning
// out literature/analysis tasks, synthesizing a hypothesis, reflecting,
// deciding whether to continue, replying, and either chaining a successor job
// or finalizing the conversation's research chain.
package iteration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/researchlab/orchestrator/internal/agents"
	"github.com/researchlab/orchestrator/internal/chain"
	"github.com/researchlab/orchestrator/internal/config"
	"github.com/researchlab/orchestrator/internal/domain"
	"github.com/researchlab/orchestrator/internal/filebarrier"
	"github.com/researchlab/orchestrator/internal/notify"
	"github.com/researchlab/orchestrator/internal/orcherr"
	"github.com/researchlab/orchestrator/internal/policy"
	"github.com/researchlab/orchestrator/internal/queue"
	"github.com/researchlab/orchestrator/internal/store"
	"github.com/researchlab/orchestrator/internal/telemetry"
)

// LiteratureSources maps every enabled literature source to its agent. The
// Executor invokes all of them in parallel for each LITERATURE task, per
// source-enablement policy resolved by the caller from config.Config.
type LiteratureSources map[agents.LiteratureSource]agents.Literature

// AnalysisSources maps every analysis source to its agent; the Executor looks
// up config.Config.PrimaryAnalysisAgent in it for every ANALYSIS task.
type AnalysisSources map[agents.AnalysisSource]agents.Analysis

// Agents collects every capability the Executor invokes.
type Agents struct {
	Planning         agents.Planning
	Literature       LiteratureSources
	Analysis         AnalysisSources
	Hypothesis       agents.Hypothesis
	Reflection       agents.Reflection
	Discovery        agents.Discovery
	ContinueDecision agents.ContinueDecision
	Reply            agents.Reply
}

// Executor runs one iteration per Run call.
type Executor struct {
	Store     store.Store
	Queue     queue.Queue
	QueueName string
	Notify    notify.Bus
	Ingest    filebarrier.IngestQueue
	Agents    Agents
	Credit    chain.Credit
	Config    config.Config
	Gate      policy.DiscoveryGate
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     func() time.Time
}

func (e *Executor) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// Run executes exactly one S1-S9 pass for job.
func (e *Executor) Run(ctx context.Context, job domain.Job) error {
	started := e.now()
	payload := job.Payload
	e.publish(ctx, payload, notify.Event{Type: notify.EventJobStarted, JobID: job.ID})

	bootstrapRes, err := e.bootstrap(ctx, payload)
	if err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}

	if payload.IsInitialIteration {
		if err := e.runFileBarrier(ctx, payload); err != nil {
			e.Logger.Warn(ctx, "file barrier error, continuing without full dataset refresh", "job_id", job.ID, "err", err)
		}
	}

	state, err := e.Store.GetConversationState(ctx, payload.ConversationStateID)
	if err != nil {
		return e.abort(ctx, job.ID, payload, orcherr.New(orcherr.Data, err))
	}

	newLevel, err := e.planning(ctx, payload, &state)
	if err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}
	e.publishProgress(ctx, payload, "planning", 5)

	completed, err := e.fanOut(ctx, payload, &state, newLevel)
	if err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}
	e.publishProgress(ctx, payload, "fan-out", 20)
	if err := e.persistState(ctx, payload, state); err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}

	hyp, err := e.Agents.Hypothesis.Invoke(ctx, agents.HypothesisParams{Objective: state.CurrentObjective, Plan: state.Plan})
	if err != nil {
		return e.abort(ctx, job.ID, payload, orcherr.New(orcherr.Agent, err))
	}
	state.CurrentHypothesis = hyp.Hypothesis
	e.publishProgress(ctx, payload, "hypothesis", 70)

	if err := e.reflectAndDiscover(ctx, payload, &state, completed); err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}
	e.publishProgress(ctx, payload, "reflection", 85)

	if err := e.planNext(ctx, payload, &state); err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}

	willContinue, isFinal := e.decideContinue(ctx, payload, state, bootstrapRes.maxAutoIterations)

	if err := e.persistState(ctx, payload, state); err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}

	sessionStart := bootstrapRes.sessionStartLevel
	if err := e.reply(ctx, payload, state, newLevel, sessionStart, isFinal, started); err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}
	e.publishProgress(ctx, payload, "reply", 95)

	if err := e.chainOrComplete(ctx, job, &state, newLevel, willContinue, isFinal); err != nil {
		return e.abort(ctx, job.ID, payload, err)
	}
	return nil
}

type bootstrapResult struct {
	maxAutoIterations int
	sessionStartLevel int
}

// bootstrap is S1: load records, validate, and compute the iteration's fixed
// parameters. Abort signals are always orcherr.Data (non-retryable).
func (e *Executor) bootstrap(ctx context.Context, payload domain.DeepResearchJobData) (bootstrapResult, error) {
	if _, err := e.Store.GetMessage(ctx, payload.MessageID); err != nil {
		return bootstrapResult{}, orcherr.New(orcherr.Data, fmt.Errorf("load message: %w", err))
	}
	if _, err := e.Store.GetState(ctx, payload.StateID); err != nil {
		return bootstrapResult{}, orcherr.New(orcherr.Data, fmt.Errorf("load iteration state: %w", err))
	}
	runningStatus := domain.IterationRunning
	isDeepResearch := true
	if err := e.Store.UpdateState(ctx, payload.StateID, store.StateUpdate{
		IsDeepResearch: &isDeepResearch,
		Status:         &runningStatus,
	}); err != nil {
		return bootstrapResult{}, orcherr.New(orcherr.Transient, err)
	}

	state, err := e.Store.GetConversationState(ctx, payload.ConversationStateID)
	if err != nil {
		return bootstrapResult{}, orcherr.New(orcherr.Data, fmt.Errorf("load conversation state: %w", err))
	}
	mode := payload.ResearchMode
	if mode == "" {
		mode = state.ResearchMode
	}
	if mode == "" {
		mode = domain.ModeSemiAutonomous
	}

	maxAuto := e.Config.MaxAutoIterations(string(mode))
	sessionStart := state.CurrentLevel - 2
	if sessionStart < 0 {
		sessionStart = 0
	}
	return bootstrapResult{maxAutoIterations: maxAuto, sessionStartLevel: sessionStart}, nil
}

func (e *Executor) runFileBarrier(ctx context.Context, payload domain.DeepResearchJobData) error {
	if e.Ingest == nil {
		return nil
	}
	_, err := filebarrier.Wait(ctx, e.Ingest, payload.ConversationStateID, filebarrier.Options{
		PollInterval: e.Config.FileBarrierPollInterval,
		Timeout:      e.Config.FileBarrierTimeout,
	})
	return err
}

// planning is S2.
func (e *Executor) planning(ctx context.Context, payload domain.DeepResearchJobData, state *domain.ConversationState) (int, error) {
	if payload.IsInitialIteration {
		result, err := e.Agents.Planning.Invoke(ctx, agents.PlanningParams{
			Mode:      agents.PlanningInitial,
			Objective: state.Objective,
			Datasets:  state.UploadedDatasets,
		})
		if err != nil {
			return 0, orcherr.New(orcherr.Agent, err)
		}
		newLevel := state.CurrentLevel + 1
		for i := range result.Plan {
			result.Plan[i].Level = newLevel
			result.Plan[i].ID = domain.TaskID(result.Plan[i].Type, newLevel)
		}
		state.Plan = append(state.Plan, result.Plan...)
		state.SuggestedNextSteps = nil
		if result.CurrentObjective != "" {
			state.CurrentObjective = result.CurrentObjective
		}
		state.CurrentLevel = newLevel
		return newLevel, nil
	}
	newLevel := -1
	for _, t := range state.Plan {
		if t.Level > newLevel {
			newLevel = t.Level
		}
	}
	return newLevel, nil
}

// fanOut is S3: invoke all current-level tasks concurrently, absorbing
// per-task failures into task.Output rather than aborting the iteration.
// Each task's completion is persisted to the conversation state as soon as
// it ends, not batched until every task finishes, so a worker crash
// mid-fan-out leaves already-completed tasks durably marked and a redelivered
// job skips them on retry instead of redoing the whole level.
func (e *Executor) fanOut(ctx context.Context, payload domain.DeepResearchJobData, state *domain.ConversationState, newLevel int) ([]domain.PlanTask, error) {
	tasks := state.TasksAtLevel(newLevel)
	var wg sync.WaitGroup
	var persistMu sync.Mutex
	now := e.now()

	for _, t := range tasks {
		if t.Done() {
			continue
		}
		t := t
		local := *t
		local.MarkStarted(now)
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch local.Type {
			case domain.TaskLiterature:
				e.runLiteratureTask(ctx, &local)
			case domain.TaskAnalysis:
				e.runAnalysisTask(ctx, payload, &local)
			}
			local.MarkEnded(e.now())

			persistMu.Lock()
			defer persistMu.Unlock()
			*t = local
			if err := e.persistState(ctx, payload, *state); err != nil {
				e.Logger.Warn(ctx, "persist state after task completion failed", "job_id", payload.MessageID, "task_id", local.ID, "err", err)
			}
		}()
	}
	wg.Wait()

	var completed []domain.PlanTask
	for _, t := range tasks {
		if t.Done() {
			completed = append(completed, *t)
		}
	}
	return completed, nil
}

func (e *Executor) runLiteratureTask(ctx context.Context, t *domain.PlanTask) {
	sources := e.enabledLiteratureSources()
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, source := range sources {
		provider, ok := e.Agents.Literature[source]
		if !ok {
			continue
		}
		source := source
		provider := provider
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := provider.Invoke(ctx, agents.LiteratureParams{Source: source, Objective: t.Objective})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				t.Output += fmt.Sprintf("\n[%s error] %v", source, err)
				return
			}
			t.Output += "\n" + result.Output
			if result.JobID != "" {
				t.JobID = result.JobID
			}
		}()
	}
	wg.Wait()
}

func (e *Executor) runAnalysisTask(ctx context.Context, payload domain.DeepResearchJobData, t *domain.PlanTask) {
	source := agents.AnalysisSource(e.Config.PrimaryAnalysisAgent)
	provider, ok := e.Agents.Analysis[source]
	if !ok {
		t.Output += "\n[analysis error] no provider configured for " + string(source)
		return
	}
	result, err := provider.Invoke(ctx, agents.AnalysisParams{Source: source, Objective: t.Objective, Datasets: t.Datasets})
	if err != nil {
		t.Output += fmt.Sprintf("\n[%s error] %v", source, err)
		return
	}
	t.Output += "\n" + result.Output
	t.Artifacts = append(t.Artifacts, result.Artifacts...)
	if result.JobID != "" {
		t.JobID = result.JobID
	}
}

func (e *Executor) enabledLiteratureSources() []agents.LiteratureSource {
	primary := agents.LiteratureSource(e.Config.PrimaryLiteratureAgent)
	sources := []agents.LiteratureSource{primary}
	if e.Config.OpenScholarEnabled() {
		sources = append(sources, agents.LitOpenScholar)
	}
	if e.Config.KnowledgeBaseEnabled() {
		sources = append(sources, agents.LitKnowledge)
	}
	return sources
}

// reflectAndDiscover is S5: reflection runs unconditionally, discovery runs
// behind the gate, both concurrently. When reflection overwrites the root
// objective, a state:updated event flags the mutation for observers since
// the source otherwise changes it silently.
func (e *Executor) reflectAndDiscover(ctx context.Context, payload domain.DeepResearchJobData, state *domain.ConversationState, completed []domain.PlanTask) error {
	var wg sync.WaitGroup
	var reflErr error
	var reflResult agents.ReflectionResult
	var discResult agents.DiscoveryResult
	var discoveryRan bool

	wg.Add(1)
	go func() {
		defer wg.Done()
		reflResult, reflErr = e.Agents.Reflection.Invoke(ctx, agents.ReflectionParams{
			Objective:  state.Objective,
			Hypothesis: state.CurrentHypothesis,
			Plan:       state.Plan,
		})
	}()

	if e.Gate != nil && e.Agents.Discovery != nil && e.Gate(policy.DiscoveryContext{
		Plan:          state.Plan,
		JustCompleted: completed,
	}) {
		discoveryRan = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := e.Agents.Discovery.Invoke(ctx, agents.DiscoveryParams{Objective: state.Objective, Plan: state.Plan})
			if err == nil {
				discResult = result
			}
		}()
	}

	wg.Wait()
	if reflErr != nil {
		return orcherr.New(orcherr.Agent, reflErr)
	}

	if reflResult.Objective != "" {
		state.Objective = reflResult.Objective
		e.publish(ctx, payload, notify.Event{Type: notify.EventStateUpdated, Description: "root objective changed"})
	}
	state.ConversationTitle = reflResult.ConversationTitle
	if reflResult.CurrentObjective != "" {
		state.CurrentObjective = reflResult.CurrentObjective
	}
	state.KeyInsights = reflResult.KeyInsights
	state.Methodology = reflResult.Methodology
	if discoveryRan {
		state.Discoveries = discResult.Discoveries
	}
	return nil
}

// planNext is S6.
func (e *Executor) planNext(ctx context.Context, payload domain.DeepResearchJobData, state *domain.ConversationState) error {
	result, err := e.Agents.Planning.Invoke(ctx, agents.PlanningParams{
		Mode:             agents.PlanningNext,
		Objective:        state.Objective,
		CurrentObjective: state.CurrentObjective,
		Plan:             state.Plan,
		Datasets:         state.UploadedDatasets,
	})
	if err != nil {
		return orcherr.New(orcherr.Agent, err)
	}
	if len(result.Plan) > 0 {
		state.SuggestedNextSteps = result.Plan
		if result.CurrentObjective != "" {
			state.CurrentObjective = result.CurrentObjective
		}
	}
	return nil
}

// decideContinue is S7.
func (e *Executor) decideContinue(ctx context.Context, payload domain.DeepResearchJobData, state domain.ConversationState, maxAuto int) (willContinue, isFinal bool) {
	if payload.IterationNumber >= maxAuto || len(state.SuggestedNextSteps) == 0 {
		return false, true
	}
	result, err := e.Agents.ContinueDecision.Invoke(ctx, agents.ContinueDecisionParams{
		Objective:          state.CurrentObjective,
		SuggestedNextSteps: state.SuggestedNextSteps,
		IterationNumber:    payload.IterationNumber,
		MaxAutoIterations:  maxAuto,
	})
	if err != nil {
		return false, true
	}
	return result.ShouldContinue, !result.ShouldContinue
}

// reply is S8.
func (e *Executor) reply(ctx context.Context, payload domain.DeepResearchJobData, state domain.ConversationState, newLevel, sessionStart int, isFinal bool, started time.Time) error {
	var sessionTasks []domain.PlanTask
	for _, t := range state.Plan {
		if t.Level >= sessionStart && t.Level <= newLevel && t.Done() {
			sessionTasks = append(sessionTasks, t)
		}
	}
	result, err := e.Agents.Reply.Invoke(ctx, agents.ReplyParams{
		Objective:    state.CurrentObjective,
		Hypothesis:   state.CurrentHypothesis,
		IsFinal:      isFinal,
		SessionTasks: sessionTasks,
	})
	if err != nil {
		return orcherr.New(orcherr.Agent, err)
	}
	elapsed := e.now().Sub(started)
	content, summary := result.Reply, result.Summary
	if err := e.Store.UpdateMessage(ctx, payload.MessageID, store.MessageUpdate{
		Content:      &content,
		Summary:      &summary,
		ResponseTime: &elapsed,
	}); err != nil {
		return orcherr.New(orcherr.Transient, err)
	}
	e.publish(ctx, payload, notify.Event{Type: notify.EventMessageUpdated, MessageID: payload.MessageID})
	return nil
}

// chainOrComplete is S9.
func (e *Executor) chainOrComplete(ctx context.Context, job domain.Job, state *domain.ConversationState, newLevel int, willContinue, isFinal bool) error {
	payload := job.Payload
	if willContinue {
		nextLevel := newLevel + 1
		state.PromoteSuggestions(nextLevel)
		if err := e.persistState(ctx, payload, *state); err != nil {
			return err
		}

		successorMessageID := nextMessageID(payload.MessageID, payload.IterationNumber+1)
		if err := e.Store.CreateMessage(ctx, domain.Message{
			ID:             successorMessageID,
			ConversationID: payload.ConversationID,
			UserID:         payload.UserID,
			Source:         "chain",
			StateID:        payload.StateID,
		}); err != nil {
			return orcherr.New(orcherr.Transient, err)
		}

		successor := chain.NextJob(payload, successorMessageID)
		if err := e.Queue.Enqueue(ctx, e.QueueName, successor.SuccessorJobID, successor.Job, queue.EnqueueOptions{
			MaxAttempts:      e.Config.DeepResearchQueue.MaxAttempts,
			BaseBackoff:      e.Config.DeepResearchQueue.BaseBackoff,
			SuccessRetention: e.Config.DeepResearchQueue.SuccessRetention,
			FailureRetention: e.Config.DeepResearchQueue.FailureRetention,
		}); err != nil {
			return orcherr.New(orcherr.Capacity, err)
		}
		if err := e.Queue.Ack(ctx, job.ID); err != nil {
			return orcherr.New(orcherr.Transient, err)
		}
		e.markDone(ctx, payload)
		e.publish(ctx, payload, notify.Event{Type: notify.EventJobCompleted, JobID: job.ID})
		return nil
	}

	if err := e.Queue.Ack(ctx, job.ID); err != nil {
		return orcherr.New(orcherr.Transient, err)
	}
	e.markDone(ctx, payload)
	e.publish(ctx, payload, notify.Event{Type: notify.EventJobCompleted, JobID: job.ID})
	if isFinal && e.Credit != nil {
		if err := e.Credit.Complete(ctx, payload.RootJobID, payload.IterationNumber); err != nil {
			e.Logger.Warn(ctx, "credit complete hook failed", "root_job_id", payload.RootJobID, "err", err)
		}
	}
	return nil
}

func (e *Executor) markDone(ctx context.Context, payload domain.DeepResearchJobData) {
	done := domain.IterationDone
	if err := e.Store.UpdateState(ctx, payload.StateID, store.StateUpdate{Status: &done}); err != nil && e.Logger != nil {
		e.Logger.Warn(ctx, "failed to mark iteration state done", "state_id", payload.StateID, "err", err)
	}
}

// persistState writes the iteration's in-memory state back to the store.
// UploadedDatasets is always preserved: the Executor only ever reads it
// (planning, analysis task inputs), never mutates it, so a concurrent
// dataset-ingest completion applied through internal/ingest must not be
// clobbered by a stale in-memory copy.
func (e *Executor) persistState(ctx context.Context, payload domain.DeepResearchJobData, state domain.ConversationState) error {
	if err := e.Store.UpdateConversationState(ctx, payload.ConversationStateID, store.ConversationStateUpdate{
		Values:                   state,
		PreserveUploadedDatasets: true,
	}); err != nil {
		return orcherr.New(orcherr.Transient, err)
	}
	return nil
}

func (e *Executor) publishProgress(ctx context.Context, payload domain.DeepResearchJobData, stage string, percent int) {
	e.publish(ctx, payload, notify.Event{
		Type:     notify.EventJobProgress,
		Progress: &notify.Progress{Stage: stage, Percent: percent},
	})
}

func (e *Executor) publish(ctx context.Context, payload domain.DeepResearchJobData, event notify.Event) {
	if e.Notify == nil {
		return
	}
	event.ConversationID = payload.ConversationID
	event.PublishedAt = e.now()
	if err := e.Notify.Publish(ctx, notify.Channel(payload.ConversationID), event); err != nil && e.Logger != nil {
		e.Logger.Warn(ctx, "notify publish failed", "err", err)
	}
}

// abort handles the failure semantics shared by every stage: log the failure,
// write {status:"failed", error} into IterationState, tell the queue whether
// to retry, and on final failure call the credit collaborator's refund hook.
func (e *Executor) abort(ctx context.Context, jobID string, payload domain.DeepResearchJobData, err error) error {
	retryable := orcherr.Retryable(err)
	if e.Logger != nil {
		e.Logger.Warn(ctx, "iteration failed", "job_id", jobID, "iteration", payload.IterationNumber, "message_id", payload.MessageID, "retryable", retryable, "err", err)
	}
	if failErr := e.Queue.Fail(ctx, jobID, retryable); failErr != nil && e.Logger != nil {
		e.Logger.Error(ctx, "queue fail failed", "err", failErr)
	}
	if !retryable {
		errStr := err.Error()
		status := domain.IterationFailed
		_ = e.Store.UpdateState(ctx, payload.StateID, store.StateUpdate{Status: &status, Error: &errStr})
		e.publish(ctx, payload, notify.Event{Type: notify.EventJobFailed, Error: errStr})
		if e.Credit != nil {
			if cErr := e.Credit.Refund(ctx, payload.RootJobID); cErr != nil && e.Logger != nil {
				e.Logger.Warn(ctx, "credit refund hook failed", "root_job_id", payload.RootJobID, "err", cErr)
			}
		}
	}
	return err
}

func nextMessageID(predecessorID string, iteration int) string {
	return fmt.Sprintf("%s-iter-%d", predecessorID, iteration)
}
