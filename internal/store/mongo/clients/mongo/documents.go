package mongo

import (
	"time"

	"github.com/researchlab/orchestrator/internal/domain"
)

type planTaskDoc struct {
	ID        string    `bson:"id"`
	Type      string    `bson:"type"`
	Level     int       `bson:"level"`
	Objective string    `bson:"objective"`
	Datasets  []string  `bson:"datasets,omitempty"`
	Start     *time.Time `bson:"start,omitempty"`
	End       *time.Time `bson:"end,omitempty"`
	Output    string    `bson:"output"`
	Artifacts []string  `bson:"artifacts,omitempty"`
	JobID     string    `bson:"job_id,omitempty"`
}

func fromPlanTask(t domain.PlanTask) planTaskDoc {
	return planTaskDoc{
		ID: t.ID, Type: string(t.Type), Level: t.Level, Objective: t.Objective,
		Datasets: t.Datasets, Start: t.Start, End: t.End, Output: t.Output,
		Artifacts: t.Artifacts, JobID: t.JobID,
	}
}

func (d planTaskDoc) toDomain() domain.PlanTask {
	return domain.PlanTask{
		ID: d.ID, Type: domain.TaskType(d.Type), Level: d.Level, Objective: d.Objective,
		Datasets: d.Datasets, Start: d.Start, End: d.End, Output: d.Output,
		Artifacts: d.Artifacts, JobID: d.JobID,
	}
}

type datasetDoc struct {
	ID       string `bson:"id"`
	Filename string `bson:"filename"`
}

type conversationStateDoc struct {
	ID                 string        `bson:"_id"`
	ConversationID     string        `bson:"conversation_id"`
	Objective          string        `bson:"objective"`
	CurrentObjective   string        `bson:"current_objective"`
	Plan               []planTaskDoc `bson:"plan"`
	CurrentLevel       int           `bson:"current_level"`
	SuggestedNextSteps []planTaskDoc `bson:"suggested_next_steps"`
	CurrentHypothesis  string        `bson:"current_hypothesis"`
	KeyInsights        string        `bson:"key_insights"`
	Discoveries        string        `bson:"discoveries"`
	Methodology        string        `bson:"methodology"`
	ConversationTitle  string        `bson:"conversation_title"`
	UploadedDatasets   []datasetDoc  `bson:"uploaded_datasets"`
	ResearchMode       string        `bson:"research_mode"`
	FreeForm           map[string]string `bson:"free_form,omitempty"`
}

func fromConversationState(s domain.ConversationState) conversationStateDoc {
	plan := make([]planTaskDoc, len(s.Plan))
	for i, t := range s.Plan {
		plan[i] = fromPlanTask(t)
	}
	suggested := make([]planTaskDoc, len(s.SuggestedNextSteps))
	for i, t := range s.SuggestedNextSteps {
		suggested[i] = fromPlanTask(t)
	}
	datasets := make([]datasetDoc, len(s.UploadedDatasets))
	for i, d := range s.UploadedDatasets {
		datasets[i] = datasetDoc{ID: d.ID, Filename: d.Filename}
	}
	return conversationStateDoc{
		ID: s.ID, ConversationID: s.ConversationID, Objective: s.Objective,
		CurrentObjective: s.CurrentObjective, Plan: plan, CurrentLevel: s.CurrentLevel,
		SuggestedNextSteps: suggested, CurrentHypothesis: s.CurrentHypothesis,
		KeyInsights: s.KeyInsights, Discoveries: s.Discoveries, Methodology: s.Methodology,
		ConversationTitle: s.ConversationTitle, UploadedDatasets: datasets,
		ResearchMode: string(s.ResearchMode), FreeForm: s.FreeForm,
	}
}

func (d conversationStateDoc) toDomain() domain.ConversationState {
	plan := make([]domain.PlanTask, len(d.Plan))
	for i, t := range d.Plan {
		plan[i] = t.toDomain()
	}
	suggested := make([]domain.PlanTask, len(d.SuggestedNextSteps))
	for i, t := range d.SuggestedNextSteps {
		suggested[i] = t.toDomain()
	}
	datasets := make([]domain.Dataset, len(d.UploadedDatasets))
	for i, ds := range d.UploadedDatasets {
		datasets[i] = domain.Dataset{ID: ds.ID, Filename: ds.Filename}
	}
	return domain.ConversationState{
		ID: d.ID, ConversationID: d.ConversationID, Objective: d.Objective,
		CurrentObjective: d.CurrentObjective, Plan: plan, CurrentLevel: d.CurrentLevel,
		SuggestedNextSteps: suggested, CurrentHypothesis: d.CurrentHypothesis,
		KeyInsights: d.KeyInsights, Discoveries: d.Discoveries, Methodology: d.Methodology,
		ConversationTitle: d.ConversationTitle, UploadedDatasets: datasets,
		ResearchMode: domain.ResearchMode(d.ResearchMode), FreeForm: d.FreeForm,
	}
}

type messageDoc struct {
	ID             string         `bson:"_id"`
	ConversationID string         `bson:"conversation_id"`
	UserID         string         `bson:"user_id"`
	Question       string         `bson:"question"`
	Content        string         `bson:"content"`
	Summary        string         `bson:"summary"`
	Source         string         `bson:"source"`
	StateID        string         `bson:"state_id"`
	ResponseTimeNs *int64         `bson:"response_time_ns,omitempty"`
}

func fromMessage(m domain.Message) messageDoc {
	doc := messageDoc{
		ID: m.ID, ConversationID: m.ConversationID, UserID: m.UserID, Question: m.Question,
		Content: m.Content, Summary: m.Summary, Source: m.Source, StateID: m.StateID,
	}
	if m.ResponseTime != nil {
		ns := m.ResponseTime.Nanoseconds()
		doc.ResponseTimeNs = &ns
	}
	return doc
}

func (d messageDoc) toDomain() domain.Message {
	m := domain.Message{
		ID: d.ID, ConversationID: d.ConversationID, UserID: d.UserID, Question: d.Question,
		Content: d.Content, Summary: d.Summary, Source: d.Source, StateID: d.StateID,
	}
	if d.ResponseTimeNs != nil {
		rt := time.Duration(*d.ResponseTimeNs)
		m.ResponseTime = &rt
	}
	return m
}

type iterationStateDoc struct {
	ID             string `bson:"_id"`
	MessageID      string `bson:"message_id"`
	ConversationID string `bson:"conversation_id"`
	UserID         string `bson:"user_id"`
	Source         string `bson:"source"`
	IsDeepResearch bool   `bson:"is_deep_research"`
	Status         string `bson:"status"`
	Error          string `bson:"error,omitempty"`
}

func fromIterationState(it domain.IterationState) iterationStateDoc {
	return iterationStateDoc{
		ID: it.ID, MessageID: it.MessageID, ConversationID: it.ConversationID, UserID: it.UserID,
		Source: it.Source, IsDeepResearch: it.IsDeepResearch, Status: string(it.Status), Error: it.Error,
	}
}

func (d iterationStateDoc) toDomain() domain.IterationState {
	return domain.IterationState{
		ID: d.ID, MessageID: d.MessageID, ConversationID: d.ConversationID, UserID: d.UserID,
		Source: d.Source, IsDeepResearch: d.IsDeepResearch, Status: domain.IterationStatus(d.Status), Error: d.Error,
	}
}
