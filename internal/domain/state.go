package domain

// ResearchMode selects the iteration cap and continue-decision policy for a
// conversation.
type ResearchMode string

const (
	ModeSemiAutonomous ResearchMode = "semi-autonomous"
	ModeFullyAutonomous ResearchMode = "fully-autonomous"
	ModeSteering        ResearchMode = "steering"
)

// Dataset references an uploaded file usable by ANALYSIS tasks.
type Dataset struct {
	ID       string
	Filename string
}

// ConversationState is the mutable, research-scoped bag shared across every
// iteration of a conversation. Fields are enumerated explicitly; anything that
// must remain genuinely open-ended lives in FreeForm instead of a dynamic bag.
type ConversationState struct {
	ID             string
	ConversationID string

	Objective        string
	CurrentObjective string

	Plan               []PlanTask
	CurrentLevel       int // -1 when Plan is empty
	SuggestedNextSteps []PlanTask

	CurrentHypothesis string
	KeyInsights       string
	Discoveries       string
	Methodology       string
	ConversationTitle string

	UploadedDatasets []Dataset // most-recent-first, unique by Filename

	ResearchMode ResearchMode

	// FreeForm is an append-only sidebar for agent-produced fields that do not
	// warrant a first-class column.
	FreeForm map[string]string
}

// NewConversationState returns a zero-value state with CurrentLevel set to the
// empty-plan sentinel.
func NewConversationState(id, conversationID string) *ConversationState {
	return &ConversationState{
		ID:             id,
		ConversationID: conversationID,
		CurrentLevel:   -1,
		FreeForm:       map[string]string{},
	}
}

// RecomputeCurrentLevel restores the invariant CurrentLevel == max(task.Level)
// over Plan, or -1 if Plan is empty. Callers mutate Plan directly and then call
// this to keep the derived field consistent.
func (s *ConversationState) RecomputeCurrentLevel() {
	level := -1
	for _, t := range s.Plan {
		if t.Level > level {
			level = t.Level
		}
	}
	s.CurrentLevel = level
}

// TasksAtLevel returns the Plan entries at the given level, in Plan order.
func (s *ConversationState) TasksAtLevel(level int) []*PlanTask {
	var out []*PlanTask
	for i := range s.Plan {
		if s.Plan[i].Level == level {
			out = append(out, &s.Plan[i])
		}
	}
	return out
}

// AddDataset inserts or replaces a dataset, preserving most-recent-first order
// and the at-most-one-entry-per-filename invariant.
func (s *ConversationState) AddDataset(d Dataset) {
	filtered := s.UploadedDatasets[:0:0]
	for _, existing := range s.UploadedDatasets {
		if existing.Filename != d.Filename {
			filtered = append(filtered, existing)
		}
	}
	s.UploadedDatasets = append([]Dataset{d}, filtered...)
}

// PromoteSuggestions moves SuggestedNextSteps into Plan at newLevel with fresh
// ids, clearing the suggestion list. Used at the start of S9 when the
// iteration decides to continue (see internal/iteration).
func (s *ConversationState) PromoteSuggestions(newLevel int) {
	for _, t := range s.SuggestedNextSteps {
		t.Level = newLevel
		t.ID = TaskID(t.Type, newLevel)
		t.Start = nil
		t.End = nil
		s.Plan = append(s.Plan, t)
	}
	s.SuggestedNextSteps = nil
	s.CurrentLevel = newLevel
}
