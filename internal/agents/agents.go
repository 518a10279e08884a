// Package agents defines the Agent Invoker: typed wrappers
// over every external agent the Iteration Executor calls, each with a
// bounded timeout and cancellation via ctx. Concrete providers live in
// sibling packages (anthropic, openai, bedrock for LLM-shaped capabilities;
// literature, analysis for the submit/poll external-task capabilities).
package agents

import (
	"context"

	"github.com/researchlab/orchestrator/internal/domain"
)

// PlanningMode selects initial plan creation vs. next-step suggestion.
type PlanningMode string

const (
	PlanningInitial PlanningMode = "initial"
	PlanningNext    PlanningMode = "next"
)

// PlanningParams is the input to the Planning agent.
type PlanningParams struct {
	Mode             PlanningMode
	Objective        string
	CurrentObjective string
	Plan             []domain.PlanTask
	Datasets         []domain.Dataset
}

// PlanningResult is the Planning agent's output.
type PlanningResult struct {
	Plan             []domain.PlanTask
	CurrentObjective string
}

// Planning produces a new plan cohort (initial) or candidate next steps (next).
type Planning interface {
	Invoke(ctx context.Context, params PlanningParams) (PlanningResult, error)
}

// LiteratureSource names one of the recognized literature providers.
type LiteratureSource string

const (
	LitEdison     LiteratureSource = "EDISON"
	LitBioLitDeep LiteratureSource = "BIOLITDEEP"
	LitBioLit     LiteratureSource = "BIOLIT"
	LitOpenScholar LiteratureSource = "OPENSCHOLAR"
	LitKnowledge  LiteratureSource = "KNOWLEDGE"
)

// LiteratureParams is the input to a single literature source invocation.
type LiteratureParams struct {
	Source    LiteratureSource
	Objective string
}

// LiteratureResult is one literature source's output.
type LiteratureResult struct {
	Output string
	JobID  string
}

// Literature retrieves sources for a research objective from one provider.
type Literature interface {
	Invoke(ctx context.Context, params LiteratureParams) (LiteratureResult, error)
}

// AnalysisSource names one of the recognized analysis providers.
type AnalysisSource string

const (
	AnaEdison AnalysisSource = "EDISON"
	AnaBio    AnalysisSource = "BIO"
)

// AnalysisParams is the input to the Analysis agent.
type AnalysisParams struct {
	Source    AnalysisSource
	Objective string
	Datasets  []string
}

// AnalysisResult is the Analysis agent's output.
type AnalysisResult struct {
	Output    string
	Artifacts []string
	JobID     string
}

// Analysis runs data analysis over one or more datasets.
type Analysis interface {
	Invoke(ctx context.Context, params AnalysisParams) (AnalysisResult, error)
}

// HypothesisParams is the input to the Hypothesis agent.
type HypothesisParams struct {
	Objective string
	Plan      []domain.PlanTask
}

// HypothesisResult is the Hypothesis agent's output.
type HypothesisResult struct {
	Hypothesis string
	Mode       string
}

// Hypothesis synthesizes a working hypothesis from completed task output.
type Hypothesis interface {
	Invoke(ctx context.Context, params HypothesisParams) (HypothesisResult, error)
}

// ReflectionParams is the input to the Reflection agent.
type ReflectionParams struct {
	Objective  string
	Hypothesis string
	Plan       []domain.PlanTask
}

// ReflectionResult is the Reflection agent's output. Objective is non-empty
// only when Reflection detects a fundamental re-framing of the research
// direction.
type ReflectionResult struct {
	Objective         string
	ConversationTitle string
	CurrentObjective  string
	KeyInsights       string
	Methodology       string
}

// Reflection synthesizes insights, methodology, and (rarely) a new root objective.
type Reflection interface {
	Invoke(ctx context.Context, params ReflectionParams) (ReflectionResult, error)
}

// DiscoveryParams is the input to the conditional Discovery agent.
type DiscoveryParams struct {
	Objective string
	Plan      []domain.PlanTask
}

// DiscoveryResult is the Discovery agent's output.
type DiscoveryResult struct {
	Discoveries string
}

// Discovery surfaces cross-cutting findings when the discovery gate admits it.
type Discovery interface {
	Invoke(ctx context.Context, params DiscoveryParams) (DiscoveryResult, error)
}

// ContinueDecisionParams is the input to the Continue-decision agent.
type ContinueDecisionParams struct {
	Objective          string
	SuggestedNextSteps []domain.PlanTask
	IterationNumber    int
	MaxAutoIterations  int
}

// ContinueDecisionResult is the Continue-decision agent's output.
type ContinueDecisionResult struct {
	ShouldContinue bool
	Confidence     float64
	Reasoning      string
	TriggerReason  string
}

// ContinueDecision decides whether the chain should continue to another iteration.
type ContinueDecision interface {
	Invoke(ctx context.Context, params ContinueDecisionParams) (ContinueDecisionResult, error)
}

// ReplyParams is the input to the Reply agent.
type ReplyParams struct {
	Objective    string
	Hypothesis   string
	IsFinal      bool
	SessionTasks []domain.PlanTask
}

// ReplyResult is the Reply agent's output.
type ReplyResult struct {
	Reply   string
	Summary string
}

// Reply composes the user-facing message content for the current iteration.
type Reply interface {
	Invoke(ctx context.Context, params ReplyParams) (ReplyResult, error)
}
